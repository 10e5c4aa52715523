// Package sensor provides body-tracking frame sources.
//
// A Source is polled once per tick and returns the bodies visible in the
// latest frame. Callers must not keep the returned slice past the tick.
package sensor

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Joint names a skeletal joint.
type Joint string

// Joints reported by the body-tracking bridge.
const (
	JointSpineBase     Joint = "spine_base"
	JointSpineMid      Joint = "spine_mid"
	JointNeck          Joint = "neck"
	JointHead          Joint = "head"
	JointShoulderLeft  Joint = "shoulder_left"
	JointElbowLeft     Joint = "elbow_left"
	JointWristLeft     Joint = "wrist_left"
	JointHandLeft      Joint = "hand_left"
	JointShoulderRight Joint = "shoulder_right"
	JointElbowRight    Joint = "elbow_right"
	JointWristRight    Joint = "wrist_right"
	JointHandRight     Joint = "hand_right"
)

// Body is one tracked person in a frame.
type Body struct {
	TrackingID uint64           `json:"tracking_id"`
	Tracked    bool             `json:"tracked"`
	Joints     map[Joint]r3.Vec `json:"-"`
}

// Joint returns the position of j and whether the frame carried it.
func (b Body) Joint(j Joint) (r3.Vec, bool) {
	p, ok := b.Joints[j]
	return p, ok
}

// HandsAndHead returns the three joints the guidance loop needs.
// ok is false if any of them is missing.
func (b Body) HandsAndHead() (left, right, head r3.Vec, ok bool) {
	var okL, okR, okH bool
	left, okL = b.Joints[JointHandLeft]
	right, okR = b.Joints[JointHandRight]
	head, okH = b.Joints[JointHead]
	return left, right, head, okL && okR && okH
}

// Source produces the bodies of the current frame.
type Source interface {
	TrackedBodies() []Body
}

// FirstTracked returns the first tracked body in bodies.
func FirstTracked(bodies []Body) (Body, bool) {
	for _, b := range bodies {
		if b.Tracked {
			return b, true
		}
	}
	return Body{}, false
}

// Transform converts sensor camera-space positions to world space:
// scale, then optional X mirroring, then offset.
type Transform struct {
	Scale  float64 `yaml:"scale" json:"scale"`
	Offset r3.Vec  `yaml:"offset" json:"offset"`
	Mirror bool    `yaml:"mirror" json:"mirror"`
}

// DefaultTransform matches the reference scene, which is ten times the
// sensor's metric space.
func DefaultTransform() Transform {
	return Transform{Scale: 10}
}

// Apply converts a single point.
func (t Transform) Apply(p r3.Vec) r3.Vec {
	scale := t.Scale
	if scale == 0 {
		scale = 1
	}
	w := r3.Scale(scale, p)
	if t.Mirror {
		w.X = -w.X
	}
	return r3.Add(w, t.Offset)
}

// ApplyBody returns a copy of b with every joint converted.
func (t Transform) ApplyBody(b Body) Body {
	out := Body{TrackingID: b.TrackingID, Tracked: b.Tracked, Joints: make(map[Joint]r3.Vec, len(b.Joints))}
	for j, p := range b.Joints {
		out.Joints[j] = t.Apply(p)
	}
	return out
}
