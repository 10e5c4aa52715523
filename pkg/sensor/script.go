package sensor

import (
	"sync"

	"gonum.org/v1/gonum/spatial/r3"
)

// Script replays a fixed list of frames, one per call. Once exhausted it
// reports no bodies.
type Script struct {
	mu     sync.Mutex
	frames [][]Body
	next   int
}

// NewScript creates a source that replays frames in order.
func NewScript(frames ...[]Body) *Script {
	return &Script{frames: frames}
}

// TrackedBodies returns the next frame.
func (s *Script) TrackedBodies() []Body {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.frames) {
		return nil
	}
	f := s.frames[s.next]
	s.next++
	return f
}

// Remaining returns how many frames are left.
func (s *Script) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames) - s.next
}

// Pose builds a tracked body from the three guidance joints.
func Pose(left, right, head r3.Vec) Body {
	return Body{
		Tracked: true,
		Joints: map[Joint]r3.Vec{
			JointHandLeft:  left,
			JointHandRight: right,
			JointHead:      head,
		},
	}
}

// Walker simulates a user sweeping the right hand through waypoints at a
// fixed step per frame. The left hand and head stay put.
type Walker struct {
	mu        sync.Mutex
	head      r3.Vec
	left      r3.Vec
	hand      r3.Vec
	waypoints []r3.Vec
	step      float64
	dropEvery int
	frame     int
}

// WalkerOption configures a Walker.
type WalkerOption func(*Walker)

// WithDropout makes every n-th frame report no bodies.
func WithDropout(n int) WalkerOption {
	return func(w *Walker) {
		w.dropEvery = n
	}
}

// WithRestingHand sets the fixed left hand position.
func WithRestingHand(p r3.Vec) WalkerOption {
	return func(w *Walker) {
		w.left = p
	}
}

// NewWalker creates a walker starting with the right hand at start.
func NewWalker(head, start r3.Vec, waypoints []r3.Vec, step float64, opts ...WalkerOption) *Walker {
	w := &Walker{
		head:      head,
		left:      start,
		hand:      start,
		waypoints: append([]r3.Vec(nil), waypoints...),
		step:      step,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// TrackedBodies advances the simulated hand one step and reports the pose.
func (w *Walker) TrackedBodies() []Body {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.frame++
	if w.dropEvery > 0 && w.frame%w.dropEvery == 0 {
		return nil
	}

	if len(w.waypoints) > 0 {
		goal := w.waypoints[0]
		delta := r3.Sub(goal, w.hand)
		if dist := r3.Norm(delta); dist <= w.step {
			w.hand = goal
			w.waypoints = w.waypoints[1:]
		} else {
			w.hand = r3.Add(w.hand, r3.Scale(w.step/dist, delta))
		}
	}

	return []Body{Pose(w.left, w.hand, w.head)}
}

// Done reports whether every waypoint has been visited.
func (w *Walker) Done() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.waypoints) == 0
}
