package sensor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/rockguide/internal/log"
)

// WSConfig configures the body-tracking bridge client.
type WSConfig struct {
	// URL of the bridge, e.g. ws://127.0.0.1:8765/bodies
	URL string `yaml:"url" json:"url"`

	// Frames older than this read as "no bodies"
	StaleAfter time.Duration `yaml:"stale_after" json:"stale_after"`

	// Reconnect backoff bounds
	ReconnectMin time.Duration `yaml:"reconnect_min" json:"reconnect_min"`
	ReconnectMax time.Duration `yaml:"reconnect_max" json:"reconnect_max"`

	// Camera space to world space
	Transform Transform `yaml:"transform" json:"transform"`
}

// DefaultWSConfig returns defaults for a bridge on the local machine.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		URL:          "ws://127.0.0.1:8765/bodies",
		StaleAfter:   500 * time.Millisecond,
		ReconnectMin: 250 * time.Millisecond,
		ReconnectMax: 5 * time.Second,
		Transform:    DefaultTransform(),
	}
}

// wireFrame is the JSON frame sent by the bridge.
type wireFrame struct {
	Bodies []wireBody `json:"bodies"`
}

type wireBody struct {
	TrackingID uint64               `json:"tracking_id"`
	Tracked    bool                 `json:"tracked"`
	Joints     map[Joint][3]float64 `json:"joints"`
}

// DecodeFrame parses one bridge frame into bodies, applying tf.
func DecodeFrame(data []byte, tf Transform) ([]Body, error) {
	var f wireFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode body frame: %w", err)
	}
	bodies := make([]Body, 0, len(f.Bodies))
	for _, wb := range f.Bodies {
		b := Body{TrackingID: wb.TrackingID, Tracked: wb.Tracked, Joints: make(map[Joint]r3.Vec, len(wb.Joints))}
		for j, p := range wb.Joints {
			b.Joints[j] = tf.Apply(r3.Vec{X: p[0], Y: p[1], Z: p[2]})
		}
		bodies = append(bodies, b)
	}
	return bodies, nil
}

// WSSource reads body frames from a websocket bridge and serves the latest one.
type WSSource struct {
	cfg    WSConfig
	dialer *websocket.Dialer
	logger *slog.Logger
	now    func() time.Time

	mu         sync.RWMutex
	latest     []Body
	receivedAt time.Time

	connected atomic.Bool
	frames    atomic.Int64
	dropped   atomic.Int64
}

// NewWSSource creates a bridge client. Call Run to connect.
func NewWSSource(cfg WSConfig, logger *slog.Logger) *WSSource {
	return &WSSource{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		logger: log.Or(logger).With("component", "sensor", "url", cfg.URL),
		now:    time.Now,
	}
}

// TrackedBodies returns the bodies of the latest frame, or nil if that
// frame is stale.
func (s *WSSource) TrackedBodies() []Body {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest == nil || s.now().Sub(s.receivedAt) > s.cfg.StaleAfter {
		return nil
	}
	out := make([]Body, len(s.latest))
	copy(out, s.latest)
	return out
}

// Connected reports whether the bridge connection is up.
func (s *WSSource) Connected() bool {
	return s.connected.Load()
}

// Frames returns the number of frames received.
func (s *WSSource) Frames() int64 {
	return s.frames.Load()
}

// Run connects to the bridge and keeps reading until ctx is cancelled,
// reconnecting with exponential backoff.
func (s *WSSource) Run(ctx context.Context) error {
	backoff := s.cfg.ReconnectMin
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}

	for {
		read, err := s.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if read > 0 && s.cfg.ReconnectMin > 0 {
			backoff = s.cfg.ReconnectMin
		}
		s.logger.Warn("bridge connection lost", "error", err, "retry_in", backoff)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		backoff *= 2
		if s.cfg.ReconnectMax > 0 && backoff > s.cfg.ReconnectMax {
			backoff = s.cfg.ReconnectMax
		}
	}
}

// session runs one connection until it fails or ctx is cancelled and
// returns the number of frames read.
func (s *WSSource) session(ctx context.Context) (int, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("dial bridge: %w", err)
	}
	s.connected.Store(true)
	s.logger.Info("bridge connected")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer func() {
		s.connected.Store(false)
		conn.Close()
	}()

	read := 0
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return read, fmt.Errorf("read frame: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}

		bodies, err := DecodeFrame(data, s.cfg.Transform)
		if err != nil {
			s.dropped.Add(1)
			s.logger.Debug("dropping malformed frame", "error", err)
			continue
		}

		s.mu.Lock()
		s.latest = bodies
		s.receivedAt = s.now()
		s.mu.Unlock()

		s.frames.Add(1)
		read++
	}
}
