// Package guide wires the sensor, sequencer, feedback controller, audio
// devices, metrics and dashboard into one runnable guidance session.
package guide

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/teslashibe/rockguide/internal/config"
	"github.com/teslashibe/rockguide/internal/log"
	"github.com/teslashibe/rockguide/pkg/audioio"
	"github.com/teslashibe/rockguide/pkg/feedback"
	"github.com/teslashibe/rockguide/pkg/metrics"
	"github.com/teslashibe/rockguide/pkg/sensor"
	"github.com/teslashibe/rockguide/pkg/sequencer"
	"github.com/teslashibe/rockguide/pkg/session"
	"github.com/teslashibe/rockguide/pkg/web"
)

// Runnable is a source with its own connection loop, such as
// sensor.WSSource.
type Runnable interface {
	Run(ctx context.Context) error
}

// App is the guidance application orchestrator.
// It manages all components and their lifecycle.
type App struct {
	cfg        config.Config
	id         string
	source     sensor.Source
	logger     *slog.Logger
	publishers []session.Publisher

	audio   audioio.Device
	confirm audioio.Device

	metrics    *metrics.Metrics
	controller *feedback.Controller
	sequencer  *sequencer.Sequencer
	runner     *session.Runner
	dashboard  *web.Server
}

// Option configures an App.
type Option func(*App)

// WithSessionID overrides the generated session id.
func WithSessionID(id string) Option {
	return func(a *App) {
		a.id = id
	}
}

// WithPublisher adds a status publisher alongside metrics and the dashboard.
func WithPublisher(p session.Publisher) Option {
	return func(a *App) {
		a.publishers = append(a.publishers, p)
	}
}

// WithLogger sets the root logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		a.logger = l
	}
}

// New creates an application reading bodies from source.
func New(cfg config.Config, source sensor.Source, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if source == nil {
		return nil, errors.New("guide: nil sensor source")
	}

	a := &App{cfg: cfg, source: source}
	for _, opt := range opts {
		opt(a)
	}
	if a.id == "" {
		a.id = uuid.NewString()
	}
	a.logger = log.Or(a.logger).With("session_id", a.id)
	return a, nil
}

// Init builds every component. Call it after New and before Run.
func (a *App) Init() error {
	var err error

	if a.audio, err = audioio.New(a.cfg.Audio, a.logger); err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	if a.confirm, err = audioio.New(a.cfg.Confirm, a.logger); err != nil {
		a.Shutdown()
		return fmt.Errorf("confirm audio: %w", err)
	}

	a.metrics = metrics.New()

	var dev feedback.Device
	if a.audio != nil {
		dev = a.audio
	}
	a.controller, err = feedback.NewController(a.cfg.Feedback, dev,
		feedback.WithObserver(a.metrics),
		feedback.WithLogger(a.logger),
	)
	if err != nil {
		a.Shutdown()
		return fmt.Errorf("feedback: %w", err)
	}

	targets, err := a.cfg.BuildTargets(a.confirm)
	if err != nil {
		a.Shutdown()
		return fmt.Errorf("targets: %w", err)
	}

	a.sequencer = sequencer.New(targets, a.controller, a.source,
		sequencer.WithMode(a.cfg.Feedback.Mode),
		sequencer.WithHandRadius(a.cfg.HandRadius),
		sequencer.WithObserver(a.metrics),
		sequencer.WithLogger(a.logger),
	)

	pubs := []session.Option{
		session.WithLogger(a.logger),
		session.WithPublisher(a.metrics),
	}
	if a.cfg.Dashboard.Enabled {
		infos := make([]web.TargetInfo, len(targets))
		for i, t := range targets {
			p := t.Position()
			infos[i] = web.TargetInfo{Name: t.Name(), Position: [3]float64{p.X, p.Y, p.Z}, Radius: t.Radius()}
		}
		a.dashboard = web.NewServer(a.cfg.Dashboard.Port,
			web.WithMetrics(a.metrics.Handler()),
			web.WithSnapshot(a.sequencer.Snapshot),
			web.WithTargets(infos),
			web.WithLogger(a.logger),
		)
		pubs = append(pubs, session.WithPublisher(a.dashboard))
	}
	for _, p := range a.publishers {
		pubs = append(pubs, session.WithPublisher(p))
	}

	a.runner, err = session.New(a.id, a.cfg.Session, a.sequencer, a.controller, pubs...)
	if err != nil {
		a.Shutdown()
		return fmt.Errorf("session: %w", err)
	}

	a.logger.Info("guidance ready",
		"targets", len(targets),
		"mode", a.cfg.Feedback.Mode.String(),
		"audio", a.cfg.Audio.Backend,
		"dashboard", a.cfg.Dashboard.Enabled,
	)
	return nil
}

// Run ticks the session until ctx is cancelled or the sequence completes
// with StopOnComplete set. Background loops (sensor connection,
// dashboard) are stopped before it returns.
func (a *App) Run(ctx context.Context) error {
	if a.runner == nil {
		return errors.New("guide: Run before Init")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if r, ok := a.source.(Runnable); ok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.Run(ctx); err != nil {
				a.logger.Warn("sensor stopped", "error", err)
			}
		}()
	}
	if a.dashboard != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.dashboard.Start(ctx); err != nil {
				a.logger.Warn("dashboard stopped", "error", err)
			}
		}()
	}

	err := a.runner.Run(ctx)
	cancel()
	wg.Wait()
	return err
}

// Shutdown releases the audio devices.
func (a *App) Shutdown() {
	for _, d := range []audioio.Device{a.audio, a.confirm} {
		if c, ok := d.(io.Closer); ok {
			if err := c.Close(); err != nil {
				a.logger.Debug("closing audio device", "error", err)
			}
		}
	}
}

// ID returns the session id.
func (a *App) ID() string { return a.id }

// Sequencer returns the target sequencer. Nil before Init.
func (a *App) Sequencer() *sequencer.Sequencer { return a.sequencer }

// Controller returns the feedback controller. Nil before Init.
func (a *App) Controller() *feedback.Controller { return a.controller }

// Metrics returns the metrics collectors. Nil before Init.
func (a *App) Metrics() *metrics.Metrics { return a.metrics }

// Status returns the latest session status.
func (a *App) Status() session.Status {
	if a.runner == nil {
		return session.Status{SessionID: a.id}
	}
	return a.runner.Status()
}

// Audio returns the pulse device, which is nil for the none backend.
func (a *App) Audio() audioio.Device { return a.audio }
