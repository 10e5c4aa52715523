// Package sequencer walks a user through an ordered list of targets.
//
// Each Tick reads one sensor frame, tests the current target for a touch
// and otherwise drives the feedback controller toward it. The index only
// ever moves forward; once every target is touched the sequence is
// Complete and stays there.
package sequencer

import (
	"fmt"
	"log/slog"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/rockguide/internal/log"
	"github.com/teslashibe/rockguide/pkg/feedback"
	"github.com/teslashibe/rockguide/pkg/sensor"
	"github.com/teslashibe/rockguide/pkg/target"
)

// Feedback is the part of the feedback controller the sequencer drives.
// *feedback.Controller satisfies it.
type Feedback interface {
	VolumeFeedback(hands feedback.Hands, target r3.Vec) bool
	TempoFeedback(hands feedback.Hands, target r3.Vec) bool
	PitchFeedback(hands feedback.Hands, target r3.Vec) bool
	PanFeedback(head, target r3.Vec) bool
	StopPulse()
}

// State is the sequencer's coarse state.
type State string

const (
	StateActive   State = "active"
	StateComplete State = "complete"
)

// TickOutcome reports what a Tick did.
type TickOutcome int

const (
	// TickDropout means no tracked body was visible; nothing changed.
	TickDropout TickOutcome = iota
	// TickComplete means the sequence is already complete.
	TickComplete
	// TickAdvanced means the current target was touched.
	TickAdvanced
	// TickFeedback means feedback toward the current target was driven.
	TickFeedback
)

func (o TickOutcome) String() string {
	switch o {
	case TickDropout:
		return "dropout"
	case TickComplete:
		return "complete"
	case TickAdvanced:
		return "advanced"
	case TickFeedback:
		return "feedback"
	default:
		return fmt.Sprintf("TickOutcome(%d)", int(o))
	}
}

// Observer receives sequencing events. Callbacks run on the ticking
// goroutine with the sequencer lock released.
type Observer interface {
	TickDone(outcome TickOutcome)
	TargetReached(index int, t *target.Target)
	SequenceComplete()
}

// Sequencer owns the ordered targets and the current index.
type Sequencer struct {
	targets    []*target.Target
	feedback   Feedback
	source     sensor.Source
	mode       feedback.Mode
	handRadius float64
	observer   Observer
	logger     *slog.Logger

	mu    sync.RWMutex
	index int
	last  Snapshot
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithMode selects which distance channels are driven. Default ModeVolume.
func WithMode(m feedback.Mode) Option {
	return func(s *Sequencer) {
		s.mode = m
	}
}

// WithHandRadius sets the hand's own collision tolerance.
func WithHandRadius(r float64) Option {
	return func(s *Sequencer) {
		s.handRadius = r
	}
}

// WithObserver registers an event observer.
func WithObserver(o Observer) Option {
	return func(s *Sequencer) {
		s.observer = o
	}
}

// WithLogger sets the sequencer logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sequencer) {
		s.logger = l
	}
}

// New creates a sequencer at index 0. An empty target list starts Complete.
func New(targets []*target.Target, fb Feedback, source sensor.Source, opts ...Option) *Sequencer {
	s := &Sequencer{
		targets:  append([]*target.Target(nil), targets...),
		feedback: fb,
		source:   source,
		mode:     feedback.ModeVolume,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.Or(s.logger).With("component", "sequencer")
	s.fillLocked()
	return s
}

// Tick runs one pass of the guidance loop.
func (s *Sequencer) Tick() TickOutcome {
	outcome, reached, done := s.tick()

	if s.observer != nil {
		if reached != nil {
			s.observer.TargetReached(reached.index, reached.target)
		}
		if done {
			s.observer.SequenceComplete()
		}
		s.observer.TickDone(outcome)
	}
	return outcome
}

type reachedTarget struct {
	index  int
	target *target.Target
}

func (s *Sequencer) tick() (TickOutcome, *reachedTarget, bool) {
	body, ok := sensor.FirstTracked(s.source.TrackedBodies())
	if !ok {
		s.record(func(snap *Snapshot) {
			snap.BodyVisible = false
			snap.LastOutcome = TickDropout
		})
		return TickDropout, nil, false
	}

	left, right, head, ok := body.HandsAndHead()
	if !ok {
		s.logger.Debug("tracked body missing guidance joints", "tracking_id", body.TrackingID)
		s.record(func(snap *Snapshot) {
			snap.BodyVisible = false
			snap.LastOutcome = TickDropout
		})
		return TickDropout, nil, false
	}
	hands := feedback.Hands{Left: left, Right: right}

	s.mu.Lock()
	index := s.index
	s.mu.Unlock()

	if index >= len(s.targets) {
		s.feedback.StopPulse()
		s.record(func(snap *Snapshot) {
			snap.observe(body.TrackingID, left, right, head)
			snap.LastOutcome = TickComplete
		})
		return TickComplete, nil, false
	}

	current := s.targets[index]
	if current.TestCollision(left, s.handRadius) || current.TestCollision(right, s.handRadius) {
		s.mu.Lock()
		s.index = index + 1
		done := s.index == len(s.targets)
		s.last.observe(body.TrackingID, left, right, head)
		s.last.Distance = feedback.ClosestDistance(hands, current.Position())
		s.last.LastOutcome = TickAdvanced
		s.fillLocked()
		s.mu.Unlock()

		s.logger.Info("target reached", "index", index, "target", current.String(), "remaining", len(s.targets)-index-1)
		if done {
			s.logger.Info("sequence complete", "targets", len(s.targets))
		}
		return TickAdvanced, &reachedTarget{index: index, target: current}, done
	}

	pos := current.Position()
	if s.mode.Has(feedback.ModeVolume) {
		s.feedback.VolumeFeedback(hands, pos)
	}
	if s.mode.Has(feedback.ModeTempo) {
		s.feedback.TempoFeedback(hands, pos)
	}
	if s.mode.Has(feedback.ModePitch) {
		s.feedback.PitchFeedback(hands, pos)
	}
	s.feedback.PanFeedback(head, pos)

	s.record(func(snap *Snapshot) {
		snap.observe(body.TrackingID, left, right, head)
		snap.Distance = feedback.ClosestDistance(hands, pos)
		snap.LastOutcome = TickFeedback
	})
	return TickFeedback, nil, false
}

// record updates the debug snapshot under the write lock.
func (s *Sequencer) record(update func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	update(&s.last)
	s.fillLocked()
}

func (s *Sequencer) fillLocked() {
	s.last.Index = s.index
	s.last.Len = len(s.targets)
	s.last.State = s.stateLocked()
	s.last.Target = ""
	if s.index < len(s.targets) {
		s.last.Target = s.targets[s.index].String()
	}
}

func (s *Sequencer) stateLocked() State {
	if s.index >= len(s.targets) {
		return StateComplete
	}
	return StateActive
}

// Index returns the index of the current target, or Len() when complete.
func (s *Sequencer) Index() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

// Len returns the number of targets.
func (s *Sequencer) Len() int {
	return len(s.targets)
}

// State returns Active or Complete.
func (s *Sequencer) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

// Complete reports whether every target has been touched.
func (s *Sequencer) Complete() bool {
	return s.State() == StateComplete
}

// Current returns the target the user is being guided to.
func (s *Sequencer) Current() (*target.Target, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index >= len(s.targets) {
		return nil, false
	}
	return s.targets[s.index], true
}

// Targets returns the targets in order.
func (s *Sequencer) Targets() []*target.Target {
	return append([]*target.Target(nil), s.targets...)
}
