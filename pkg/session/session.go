// Package session drives the guidance loop at a fixed tick rate and
// publishes a status after every tick.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/rockguide/internal/log"
	"github.com/teslashibe/rockguide/pkg/feedback"
	"github.com/teslashibe/rockguide/pkg/sequencer"
)

// Config holds session timing.
type Config struct {
	// TickInterval is the time between guidance passes.
	// Default: 33ms (about one sensor frame at 30fps)
	TickInterval time.Duration `yaml:"tick_interval" json:"tick_interval"`

	// StopOnComplete ends Run once every target has been touched.
	StopOnComplete bool `yaml:"stop_on_complete" json:"stop_on_complete"`
}

// DefaultConfig returns the default session timing.
func DefaultConfig() Config {
	return Config{
		TickInterval: 33 * time.Millisecond,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("session: tick_interval must be positive, got %v", c.TickInterval)
	}
	return nil
}

// Sequence is the part of the sequencer the runner drives.
type Sequence interface {
	Tick() sequencer.TickOutcome
	Complete() bool
	Snapshot() sequencer.Snapshot
}

// Feedback is the part of the feedback controller the runner reports on
// and shuts down.
type Feedback interface {
	State() feedback.State
	Close() error
}

// Status is published after every tick.
type Status struct {
	SessionID string             `json:"session_id"`
	Time      time.Time          `json:"time"`
	Elapsed   time.Duration      `json:"elapsed"`
	Ticks     uint64             `json:"ticks"`
	Outcome   string             `json:"outcome"`
	Sequence  sequencer.Snapshot `json:"sequence"`
	Feedback  feedback.State     `json:"feedback"`
}

// Publisher receives statuses. Publish runs on the tick goroutine and
// must not block.
type Publisher interface {
	Publish(Status)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Status)

// Publish calls f.
func (f PublisherFunc) Publish(s Status) { f(s) }

// Runner is the host scheduler for one guidance session.
type Runner struct {
	id         string
	cfg        Config
	seq        Sequence
	fb         Feedback
	publishers []Publisher
	logger     *slog.Logger

	mu     sync.RWMutex
	status Status
	ticks  uint64
}

// Option configures a Runner.
type Option func(*Runner)

// WithPublisher adds a status publisher.
func WithPublisher(p Publisher) Option {
	return func(r *Runner) {
		r.publishers = append(r.publishers, p)
	}
}

// WithLogger sets the runner logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// New creates a runner. id labels the session in logs and statuses.
func New(id string, cfg Config, seq Sequence, fb Feedback, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Runner{
		id:  id,
		cfg: cfg,
		seq: seq,
		fb:  fb,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = log.Or(r.logger).With("component", "session", "session_id", id)
	r.status = Status{SessionID: id, Sequence: seq.Snapshot(), Feedback: fb.State()}
	return r, nil
}

// ID returns the session id.
func (r *Runner) ID() string {
	return r.id
}

// Status returns the latest published status.
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Run ticks until ctx is cancelled or, with StopOnComplete, until the
// sequence completes. The feedback controller is closed on return.
func (r *Runner) Run(ctx context.Context) error {
	defer func() {
		if err := r.fb.Close(); err != nil {
			r.logger.Warn("closing feedback", "error", err)
		}
	}()

	start := time.Now()
	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()

	r.logger.Info("session started", "tick_interval", r.cfg.TickInterval, "stop_on_complete", r.cfg.StopOnComplete)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("session stopped", "ticks", r.Ticks(), "elapsed", time.Since(start).Round(time.Millisecond))
			return nil
		case now := <-ticker.C:
			outcome := r.seq.Tick()
			r.publish(now, start, outcome)

			if r.cfg.StopOnComplete && r.seq.Complete() {
				r.logger.Info("session complete", "ticks", r.Ticks(), "elapsed", time.Since(start).Round(time.Millisecond))
				return nil
			}
		}
	}
}

func (r *Runner) publish(now, start time.Time, outcome sequencer.TickOutcome) {
	r.mu.Lock()
	r.ticks++
	r.status = Status{
		SessionID: r.id,
		Time:      now,
		Elapsed:   now.Sub(start),
		Ticks:     r.ticks,
		Outcome:   outcome.String(),
		Sequence:  r.seq.Snapshot(),
		Feedback:  r.fb.State(),
	}
	st := r.status
	r.mu.Unlock()

	for _, p := range r.publishers {
		p.Publish(st)
	}
}

// Ticks returns the number of ticks run so far.
func (r *Runner) Ticks() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ticks
}
