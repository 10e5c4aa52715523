// Package feedback maps hand-to-target geometry onto audio parameters and
// drives the periodic pulse cue.
package feedback

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// Stereo pan extremes.
const (
	PanLeft  = -1.0
	PanRight = 1.0
)

// DefaultTempo is the pulse rate (pulses per second) before any tempo mapping runs.
const DefaultTempo = 1.0

// Config holds all tunable parameters for distance sonification.
type Config struct {
	// Channels driven by the sequencer on each tick (pan is always on)
	Mode Mode `yaml:"mode" json:"mode"`

	// Range
	MaxDistance float64 `yaml:"max_distance" json:"max_distance"` // Cue starts inside this range
	MinDistance float64 `yaml:"min_distance" json:"min_distance"` // Cue saturates here (detection radius)

	// Rate limit per channel
	UpdateInterval time.Duration `yaml:"update_interval" json:"update_interval"`

	// Volume response curve: volume = normalized^VolumeExponent
	VolumeExponent float64 `yaml:"volume_exponent" json:"volume_exponent"`

	// Tempo (pulses per second)
	TempoFloor float64 `yaml:"tempo_floor" json:"tempo_floor"` // Realized tempo never drops below this
	TempoMin   float64 `yaml:"tempo_min" json:"tempo_min"`     // Rate at MaxDistance
	TempoMax   float64 `yaml:"tempo_max" json:"tempo_max"`     // Rate at MinDistance

	// Pitch multiplier bounds
	PitchMin float64 `yaml:"pitch_min" json:"pitch_min"`
	PitchMax float64 `yaml:"pitch_max" json:"pitch_max"`

	// Swap pan sides for mirrored sensor space
	PanInvert bool `yaml:"pan_invert" json:"pan_invert"`
}

// DefaultConfig returns the configuration of the reference scene:
// 15 unit range, 0.3 saturation radius, cubic volume curve, 10 Hz channel updates.
func DefaultConfig() Config {
	return Config{
		Mode:           ModeVolume,
		MaxDistance:    15.0,
		MinDistance:    0.3,
		UpdateInterval: 100 * time.Millisecond,
		VolumeExponent: 3.0,
		TempoFloor:     0.1,
		TempoMin:       0.2,
		TempoMax:       4.0,
		PitchMin:       0.5,
		PitchMax:       2.0,
	}
}

// TempoConfig returns a configuration that encodes distance in pulse rate
// instead of loudness.
func TempoConfig() Config {
	cfg := DefaultConfig()
	cfg.Mode = ModeTempo
	return cfg
}

// Validate rejects configurations that would divide by zero or stall the pulse loop.
func (c Config) Validate() error {
	switch {
	case c.Mode == 0 || c.Mode&^(ModeVolume|ModeTempo|ModePitch) != 0:
		return fmt.Errorf("%w: mode %d has no known channel", ErrInvalidConfig, c.Mode)
	case !(c.TempoFloor > 0):
		return fmt.Errorf("%w: tempo_floor must be positive, got %v", ErrInvalidConfig, c.TempoFloor)
	case !(c.MinDistance >= 0):
		return fmt.Errorf("%w: min_distance must be non-negative, got %v", ErrInvalidConfig, c.MinDistance)
	case !(c.MaxDistance > c.MinDistance):
		return fmt.Errorf("%w: max_distance (%v) must exceed min_distance (%v)", ErrInvalidConfig, c.MaxDistance, c.MinDistance)
	case c.UpdateInterval < 0:
		return fmt.Errorf("%w: update_interval must not be negative, got %v", ErrInvalidConfig, c.UpdateInterval)
	case !(c.VolumeExponent > 0):
		return fmt.Errorf("%w: volume_exponent must be positive, got %v", ErrInvalidConfig, c.VolumeExponent)
	case !(c.TempoMin > 0) || !(c.TempoMax >= c.TempoMin):
		return fmt.Errorf("%w: tempo range [%v, %v] is empty or non-positive", ErrInvalidConfig, c.TempoMin, c.TempoMax)
	case !(c.PitchMin > 0) || !(c.PitchMax >= c.PitchMin):
		return fmt.Errorf("%w: pitch range [%v, %v] is empty or non-positive", ErrInvalidConfig, c.PitchMin, c.PitchMax)
	}
	return nil
}

// Normalized maps a distance onto [0, 1]: 0 at MaxDistance and beyond,
// 1 at MinDistance and closer.
func (c Config) Normalized(d float64) float64 {
	return clamp01((c.MaxDistance - d) / (c.MaxDistance - c.MinDistance))
}

// Volume returns the loudness for distance d.
func (c Config) Volume(d float64) float64 {
	return math.Pow(c.Normalized(d), c.VolumeExponent)
}

// Tempo returns the pulse rate for distance d, interpolated linearly from
// TempoMin at MaxDistance to TempoMax at MinDistance.
func (c Config) Tempo(d float64) float64 {
	return lerp(c.TempoMin, c.TempoMax, c.Normalized(d))
}

// Pitch returns the playback pitch multiplier for distance d.
func (c Config) Pitch(d float64) float64 {
	return clamp(1.0/(d+0.1), c.PitchMin, c.PitchMax)
}

// Pan returns the hard left or right pan for a target relative to the head.
// A target straight ahead pans right.
func (c Config) Pan(head, target r3.Vec) float64 {
	left := r3.Sub(target, head).X < 0
	if c.PanInvert {
		left = !left
	}
	if left {
		return PanLeft
	}
	return PanRight
}

// InRange reports whether d is close enough for the pulse cue to run.
func (c Config) InRange(d float64) bool {
	return d < c.MaxDistance
}

// clamp limits a value to a range
func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
