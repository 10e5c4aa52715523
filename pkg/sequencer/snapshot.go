package sequencer

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Snapshot is a read-only view of the sequencer for debugging. It carries
// the joints of the last tracked body alongside sequencing state.
type Snapshot struct {
	Index       int         `json:"index"`
	Len         int         `json:"len"`
	State       State       `json:"state"`
	Target      string      `json:"target,omitempty"`
	LastOutcome TickOutcome `json:"-"`
	Outcome     string      `json:"outcome"`

	BodyVisible bool    `json:"body_visible"`
	TrackingID  uint64  `json:"tracking_id,omitempty"`
	HandLeft    r3.Vec  `json:"hand_left"`
	HandRight   r3.Vec  `json:"hand_right"`
	Head        r3.Vec  `json:"head"`
	Distance    float64 `json:"distance"`
}

func (s *Snapshot) observe(id uint64, left, right, head r3.Vec) {
	s.BodyVisible = true
	s.TrackingID = id
	s.HandLeft = left
	s.HandRight = right
	s.Head = head
}

// Snapshot returns a copy of the latest debug view. It never changes
// sequencing state.
func (s *Sequencer) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.last
	snap.Outcome = snap.LastOutcome.String()
	return snap
}
