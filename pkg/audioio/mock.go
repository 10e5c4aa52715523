package audioio

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/rockguide/internal/log"
)

// CommandKind identifies a recorded device call.
type CommandKind string

const (
	CmdVolume CommandKind = "volume"
	CmdPan    CommandKind = "pan"
	CmdPitch  CommandKind = "pitch"
	CmdPlay   CommandKind = "play"
)

// Command is one call recorded by MockDevice.
type Command struct {
	Kind  CommandKind `json:"kind"`
	Value float64     `json:"value,omitempty"`
}

func (c Command) String() string {
	if c.Kind == CmdPlay {
		return string(c.Kind)
	}
	return fmt.Sprintf("%s=%.3f", c.Kind, c.Value)
}

// MockDevice is a mock audio device for testing.
// It records every command and pretends each cue sounds for a fixed time.
type MockDevice struct {
	logger *slog.Logger
	now    func() time.Time
	clip   time.Duration

	mu           sync.Mutex
	commands     []Command
	volume       float64
	pan          float64
	pitch        float64
	playingUntil time.Time

	plays atomic.Int64
}

// MockDeviceOption configures a MockDevice.
type MockDeviceOption func(*MockDevice)

// WithClipDuration sets how long IsPlaying reports true after Play.
func WithClipDuration(d time.Duration) MockDeviceOption {
	return func(m *MockDevice) {
		m.clip = d
	}
}

// WithMockClock replaces the wall clock used for clip timing.
func WithMockClock(now func() time.Time) MockDeviceOption {
	return func(m *MockDevice) {
		m.now = now
	}
}

// NewMockDevice creates a new mock audio device.
func NewMockDevice(cfg Config, logger *slog.Logger, opts ...MockDeviceOption) *MockDevice {
	logger = log.Or(logger)

	m := &MockDevice{
		logger: logger,
		now:    time.Now,
		clip:   cfg.ToneDuration,
		volume: 1,
		pitch:  1,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *MockDevice) record(c Command) {
	m.commands = append(m.commands, c)
	m.logger.Debug("mock audio command", "command", c.String())
}

// SetVolume records a volume command.
func (m *MockDevice) SetVolume(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = clampUnit(v)
	m.record(Command{Kind: CmdVolume, Value: m.volume})
}

// SetPan records a pan command.
func (m *MockDevice) SetPan(p float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pan = clampPan(p)
	m.record(Command{Kind: CmdPan, Value: m.pan})
}

// SetPitch records a pitch command.
func (m *MockDevice) SetPitch(p float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p > 0 {
		m.pitch = p
	}
	m.record(Command{Kind: CmdPitch, Value: p})
}

// Play records a play command and restarts the simulated clip.
func (m *MockDevice) Play() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playingUntil = m.now().Add(m.clip)
	m.record(Command{Kind: CmdPlay})
	m.plays.Add(1)
}

// IsPlaying reports whether the last simulated clip is still sounding.
func (m *MockDevice) IsPlaying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now().Before(m.playingUntil)
}

// Commands returns a copy of every recorded command.
func (m *MockDevice) Commands() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Command, len(m.commands))
	copy(out, m.commands)
	return out
}

// Plays returns the number of Play calls.
func (m *MockDevice) Plays() int64 {
	return m.plays.Load()
}

// Reset clears the recorded commands.
func (m *MockDevice) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = nil
}

// Stats returns device statistics.
func (m *MockDevice) Stats() DeviceStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return DeviceStats{
		Plays:   m.plays.Load(),
		Playing: m.now().Before(m.playingUntil),
		Backend: string(BackendMock),
		Volume:  m.volume,
		Pan:     m.pan,
		Pitch:   m.pitch,
	}
}

// Close is a no-op.
func (m *MockDevice) Close() error {
	return nil
}

var _ DeviceWithStats = (*MockDevice)(nil)
