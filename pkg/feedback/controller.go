package feedback

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/rockguide/internal/log"
)

// Device is the audio output the controller commands.
// audioio.Device satisfies it.
type Device interface {
	SetVolume(v float64)
	SetPan(p float64)
	SetPitch(p float64)
	Play()
}

// Channel names a rate-limited feedback channel.
type Channel string

// Feedback channels.
const (
	ChannelVolume Channel = "volume"
	ChannelPan    Channel = "pan"
	ChannelTempo  Channel = "tempo"
	ChannelPitch  Channel = "pitch"
)

// Observer receives feedback events. Callbacks run while the controller
// holds its lock and must not call back into the controller.
type Observer interface {
	FeedbackApplied(ch Channel, value float64)
	PulseChanged(active bool)
	PulseFired()
}

// Hands holds both hand positions for one tick.
type Hands struct {
	Left  r3.Vec
	Right r3.Vec
}

// ClosestDistance returns the distance from the nearer hand to target.
func ClosestDistance(h Hands, target r3.Vec) float64 {
	return math.Min(r3.Norm(r3.Sub(h.Left, target)), r3.Norm(r3.Sub(h.Right, target)))
}

// State is a point-in-time copy of the feedback state.
type State struct {
	Tempo       float64 `json:"tempo"`
	Volume      float64 `json:"volume"`
	Pan         float64 `json:"pan"`
	Pitch       float64 `json:"pitch"`
	PulseActive bool    `json:"pulse_active"`
}

// Controller owns the continuous audio feedback state: the last applied
// channel values, the pulse tempo and the pulse loop.
type Controller struct {
	cfg      Config
	device   Device
	clock    Clock
	observer Observer
	logger   *slog.Logger

	mu     sync.Mutex
	gates  map[Channel]*RateLimiter
	state  State
	pulse  *pulse
	pulses sync.WaitGroup
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock used for rate limiting.
func WithClock(clock Clock) Option {
	return func(c *Controller) {
		c.clock = clock
	}
}

// WithObserver registers an observer for applied values and pulse events.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		c.observer = o
	}
}

// WithLogger sets the controller logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// NewController validates cfg and builds a controller driving device.
// A nil device is allowed; every operation then degrades to a no-op.
func NewController(cfg Config, device Device, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Controller{
		cfg:    cfg,
		device: device,
		clock:  SystemClock(),
		gates: map[Channel]*RateLimiter{
			ChannelVolume: NewRateLimiter(cfg.UpdateInterval),
			ChannelPan:    NewRateLimiter(cfg.UpdateInterval),
			ChannelTempo:  NewRateLimiter(cfg.UpdateInterval),
			ChannelPitch:  NewRateLimiter(cfg.UpdateInterval),
		},
		state: State{Tempo: math.Max(cfg.TempoFloor, DefaultTempo), Pitch: 1},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = log.Or(c.logger).With("component", "feedback")

	if device == nil {
		c.logger.Warn("no audio device, feedback disabled")
	}
	return c, nil
}

// Config returns the controller configuration.
func (c *Controller) Config() Config {
	return c.cfg
}

// State returns a copy of the current feedback state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Tempo returns the realized pulse tempo.
func (c *Controller) Tempo() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Tempo
}

// PulseActive reports whether the pulse loop is running.
func (c *Controller) PulseActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pulse != nil
}

// allow consumes the rate limit for ch. Caller holds c.mu.
func (c *Controller) allow(ch Channel) bool {
	return c.gates[ch].Allow(c.clock.Now())
}

func (c *Controller) applied(ch Channel, v float64) {
	if c.observer != nil {
		c.observer.FeedbackApplied(ch, v)
	}
}

// VolumeFeedback sets the device volume from the closer hand's distance
// and runs the pulse loop while that hand is in range. It returns false
// when rate limited or when there is no device.
func (c *Controller) VolumeFeedback(hands Hands, target r3.Vec) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.allow(ChannelVolume) || c.device == nil {
		return false
	}

	d := ClosestDistance(hands, target)
	v := c.cfg.Volume(d)
	c.device.SetVolume(v)
	c.state.Volume = v
	c.applied(ChannelVolume, v)

	c.followRange(d)
	return true
}

// PanFeedback pans the cue hard toward the side the target is on relative
// to the head.
func (c *Controller) PanFeedback(head, target r3.Vec) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.allow(ChannelPan) || c.device == nil {
		return false
	}

	p := c.cfg.Pan(head, target)
	c.device.SetPan(p)
	c.state.Pan = p
	c.applied(ChannelPan, p)
	return true
}

// TempoFeedback sets the pulse rate from the closer hand's distance and
// runs the pulse loop while that hand is in range.
func (c *Controller) TempoFeedback(hands Hands, target r3.Vec) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.allow(ChannelTempo) || c.device == nil {
		return false
	}

	d := ClosestDistance(hands, target)
	c.setTempoLocked(c.cfg.Tempo(d))
	c.applied(ChannelTempo, c.state.Tempo)

	c.followRange(d)
	return true
}

// PitchFeedback raises the playback pitch as the closer hand nears the target.
func (c *Controller) PitchFeedback(hands Hands, target r3.Vec) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.allow(ChannelPitch) || c.device == nil {
		return false
	}

	p := c.cfg.Pitch(ClosestDistance(hands, target))
	c.device.SetPitch(p)
	c.state.Pitch = p
	c.applied(ChannelPitch, p)
	return true
}

// SetTempo sets the pulse rate, never below the configured floor.
// A running loop picks it up after its current wait.
func (c *Controller) SetTempo(tempo float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setTempoLocked(tempo)
}

func (c *Controller) setTempoLocked(tempo float64) {
	if !(tempo >= c.cfg.TempoFloor) {
		tempo = c.cfg.TempoFloor
	}
	c.state.Tempo = tempo
}

// followRange starts the pulse inside MaxDistance and stops it outside.
func (c *Controller) followRange(d float64) {
	if c.cfg.InRange(d) {
		c.startPulseLocked()
	} else {
		c.stopPulseLocked()
	}
}

// String implements fmt.Stringer for logs.
func (s State) String() string {
	return fmt.Sprintf("vol=%.2f pan=%+.0f tempo=%.2f pitch=%.2f pulse=%v",
		s.Volume, s.Pan, s.Tempo, s.Pitch, s.PulseActive)
}
