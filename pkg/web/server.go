// Package web serves the read-only debug dashboard API.
package web

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/rockguide/internal/log"
	"github.com/teslashibe/rockguide/pkg/hub"
	"github.com/teslashibe/rockguide/pkg/sequencer"
	"github.com/teslashibe/rockguide/pkg/session"
)

// TargetInfo describes one target for the dashboard.
type TargetInfo struct {
	Name     string     `json:"name"`
	Position [3]float64 `json:"position"`
	Radius   float64    `json:"radius"`
}

// Server is the dashboard server. It implements session.Publisher.
type Server struct {
	app    *fiber.App
	port   string
	logger *slog.Logger

	statusHub *hub.Hub
	metrics   http.Handler
	snapshot  func() sequencer.Snapshot
	targets   []TargetInfo

	stateMu sync.RWMutex
	status  session.Status
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics mounts a Prometheus handler at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithSnapshot sets the source of /api/joints.
func WithSnapshot(f func() sequencer.Snapshot) Option {
	return func(s *Server) {
		s.snapshot = f
	}
}

// WithTargets lists the session's targets at /api/targets.
func WithTargets(targets []TargetInfo) Option {
	return func(s *Server) {
		s.targets = targets
	}
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// NewServer creates a dashboard server for port.
func NewServer(port string, opts ...Option) *Server {
	s := &Server{port: port}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.Or(s.logger).With("component", "web")
	s.statusHub = hub.New("status", s.logger)

	app := fiber.New(fiber.Config{
		AppName:               "rockguide dashboard",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/joints", s.handleJoints)
	api.Get("/targets", s.handleTargets)

	if s.metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(s.metrics))
	}

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens on the configured port until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+s.port)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs the dashboard on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.statusHub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listener(ln)
	}()
	s.logger.Info("dashboard listening", "url", "http://"+ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
		s.logger.Warn("dashboard shutdown", "error", err)
	}
	// Shutdown is a no-op if the listener was not yet being served
	ln.Close()
	<-errCh
	return nil
}

// Publish stores status and pushes it to websocket subscribers.
func (s *Server) Publish(st session.Status) {
	s.stateMu.Lock()
	s.status = st
	s.stateMu.Unlock()

	if err := s.statusHub.BroadcastJSON(st); err != nil {
		s.logger.Debug("encode status", "error", err)
	}
}

// Status returns the last published status.
func (s *Server) Status() session.Status {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.status
}

// StatusHub returns the hub behind /ws/status.
func (s *Server) StatusHub() *hub.Hub {
	return s.statusHub
}

var _ session.Publisher = (*Server)(nil)
