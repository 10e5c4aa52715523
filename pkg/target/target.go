// Package target models the spatial touch objectives ("rocks") a user is guided to.
package target

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultRadius is the detection radius used by the reference scene.
const DefaultRadius = 0.3

// Confirmer plays a one-shot confirmation cue when a target is touched.
// audioio.Device satisfies it.
type Confirmer interface {
	Play()
	IsPlaying() bool
}

// Target is a fixed point with a detection radius.
// It is immutable after construction.
type Target struct {
	name     string
	position r3.Vec
	radius   float64
	confirm  Confirmer
}

// Option configures a Target.
type Option func(*Target)

// WithConfirmation attaches a device that plays when the target is touched.
func WithConfirmation(c Confirmer) Option {
	return func(t *Target) {
		t.confirm = c
	}
}

// WithName labels the target for logs and the dashboard.
func WithName(name string) Option {
	return func(t *Target) {
		t.name = name
	}
}

// New creates a target at position with the given detection radius.
func New(position r3.Vec, radius float64, opts ...Option) (*Target, error) {
	if !(radius > 0) {
		return nil, fmt.Errorf("target at %v: %w (got %v)", position, ErrInvalidRadius, radius)
	}
	t := &Target{position: position, radius: radius}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Position returns the target's world position.
func (t *Target) Position() r3.Vec { return t.position }

// Radius returns the detection radius.
func (t *Target) Radius() float64 { return t.radius }

// Name returns the target label, which may be empty.
func (t *Target) Name() string { return t.name }

// Distance returns the euclidean distance from point to the target.
func (t *Target) Distance(point r3.Vec) float64 {
	return r3.Norm(r3.Sub(point, t.position))
}

// TestCollision reports whether point lies within the detection radius plus
// the tester's own tolerance. On a hit the confirmation cue is started unless
// it is already playing.
func (t *Target) TestCollision(point r3.Vec, sourceRadius float64) bool {
	if t.Distance(point) > t.radius+sourceRadius {
		return false
	}
	if t.confirm != nil && !t.confirm.IsPlaying() {
		t.confirm.Play()
	}
	return true
}

// String implements fmt.Stringer.
func (t *Target) String() string {
	if t.name != "" {
		return fmt.Sprintf("%s(%.2f,%.2f,%.2f r=%.2f)", t.name, t.position.X, t.position.Y, t.position.Z, t.radius)
	}
	return fmt.Sprintf("(%.2f,%.2f,%.2f r=%.2f)", t.position.X, t.position.Y, t.position.Z, t.radius)
}
