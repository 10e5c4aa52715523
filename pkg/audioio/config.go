// Package audioio provides the audio output devices the feedback loop drives.
//
// This package supports multiple backends:
//   - RTP - streams each cue as L16 stereo over RTP/UDP to a mixer or player
//   - Mock - records commands for CI/testing without hardware
//   - None - no device; the feedback loop stays silent
//
// The backend is selected via configuration.
package audioio

import (
	"fmt"
	"net"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendNone disables audio output.
	BackendNone Backend = "none"
	// BackendMock uses a recording implementation for testing.
	BackendMock Backend = "mock"
	// BackendRTP streams synthesized cues over RTP.
	BackendRTP Backend = "rtp"
)

// Config holds audio configuration.
type Config struct {
	// Backend specifies which audio backend to use.
	// Default: "mock"
	Backend Backend `yaml:"backend" json:"backend"`

	// Addr is the UDP host:port RTP packets are sent to.
	// Default: 127.0.0.1:5004
	Addr string `yaml:"addr" json:"addr"`

	// SampleRate is the audio sample rate in Hz.
	// Default: 16000 (keeps a 20ms stereo L16 packet under the MTU)
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// FrameDuration is the audio carried by one RTP packet.
	// Default: 20ms
	FrameDuration time.Duration `yaml:"frame_duration" json:"frame_duration"`

	// PayloadType is the RTP payload type (dynamic range 96-127 for L16 at 16kHz).
	// Default: 96
	PayloadType uint8 `yaml:"payload_type" json:"payload_type"`

	// ToneFrequency is the beep pitch in Hz before pitch scaling.
	// Default: 880
	ToneFrequency float64 `yaml:"tone_frequency" json:"tone_frequency"`

	// ToneDuration is the beep length before pitch scaling.
	// Default: 120ms
	ToneDuration time.Duration `yaml:"tone_duration" json:"tone_duration"`
}

// Channels is fixed: the cue is always rendered in stereo so it can be panned.
const Channels = 2

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:       BackendMock,
		Addr:          "127.0.0.1:5004",
		SampleRate:    16000,
		FrameDuration: 20 * time.Millisecond,
		PayloadType:   96,
		ToneFrequency: 880,
		ToneDuration:  120 * time.Millisecond,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendNone, BackendMock:
		return nil
	case BackendRTP:
	default:
		return fmt.Errorf("%w: unsupported backend %q", ErrInvalidConfig, c.Backend)
	}

	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return fmt.Errorf("%w: addr %q: %v", ErrInvalidConfig, c.Addr, err)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample_rate must be positive, got %d", ErrInvalidConfig, c.SampleRate)
	}
	if c.FrameDuration <= 0 {
		return fmt.Errorf("%w: frame_duration must be positive, got %v", ErrInvalidConfig, c.FrameDuration)
	}
	if c.FrameBytes() > maxPayload {
		return fmt.Errorf("%w: %v frames at %d Hz need %d bytes, over the %d byte payload limit",
			ErrInvalidConfig, c.FrameDuration, c.SampleRate, c.FrameBytes(), maxPayload)
	}
	if c.PayloadType > 127 {
		return fmt.Errorf("%w: payload_type must be 0-127, got %d", ErrInvalidConfig, c.PayloadType)
	}
	if !(c.ToneFrequency > 0) || c.ToneFrequency >= float64(c.SampleRate)/2 {
		return fmt.Errorf("%w: tone_frequency %v outside (0, %d)", ErrInvalidConfig, c.ToneFrequency, c.SampleRate/2)
	}
	if c.ToneDuration <= 0 {
		return fmt.Errorf("%w: tone_duration must be positive, got %v", ErrInvalidConfig, c.ToneDuration)
	}
	return nil
}

// FrameSamples returns the number of samples per channel in one packet.
func (c *Config) FrameSamples() int {
	return int(float64(c.SampleRate) * c.FrameDuration.Seconds())
}

// FrameBytes returns the payload size of one packet (int16 stereo samples).
func (c *Config) FrameBytes() int {
	return c.FrameSamples() * Channels * 2
}

// maxPayload keeps packets inside a 1500 byte Ethernet MTU after IP, UDP and RTP headers.
const maxPayload = 1400
