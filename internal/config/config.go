// Package config loads rockguide configuration from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/teslashibe/rockguide/pkg/audioio"
	"github.com/teslashibe/rockguide/pkg/feedback"
	"github.com/teslashibe/rockguide/pkg/sensor"
	"github.com/teslashibe/rockguide/pkg/session"
	"github.com/teslashibe/rockguide/pkg/target"
)

// ErrNoTargets is returned when a configuration lists no targets.
var ErrNoTargets = errors.New("no targets configured")

// Environment overrides.
const (
	EnvSensorURL     = "ROCKGUIDE_SENSOR_URL"
	EnvAudioBackend  = "ROCKGUIDE_AUDIO_BACKEND"
	EnvRTPAddr       = "ROCKGUIDE_RTP_ADDR"
	EnvDashboardPort = "ROCKGUIDE_DASHBOARD_PORT"
	EnvLogLevel      = "ROCKGUIDE_LOG_LEVEL"
)

// TargetConfig places one target in world space.
type TargetConfig struct {
	Name     string     `yaml:"name" json:"name"`
	Position [3]float64 `yaml:"position" json:"position"`
	Radius   float64    `yaml:"radius,omitempty" json:"radius,omitempty"` // 0 means target.DefaultRadius
}

// DashboardConfig controls the debug dashboard.
type DashboardConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    string `yaml:"port" json:"port"`
}

// Config is the complete rockguide configuration.
type Config struct {
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Collision tolerance of the hand itself, added to each target radius
	HandRadius float64 `yaml:"hand_radius" json:"hand_radius"`

	Targets   []TargetConfig  `yaml:"targets" json:"targets"`
	Feedback  feedback.Config `yaml:"feedback" json:"feedback"`
	Sensor    sensor.WSConfig `yaml:"sensor" json:"sensor"`
	Audio     audioio.Config  `yaml:"audio" json:"audio"`
	Confirm   audioio.Config  `yaml:"confirm" json:"confirm"` // one-shot cue on touch
	Session   session.Config  `yaml:"session" json:"session"`
	Dashboard DashboardConfig `yaml:"dashboard" json:"dashboard"`
}

// DefaultTargets is a three-rock arc in front of the user.
func DefaultTargets() []TargetConfig {
	return []TargetConfig{
		{Name: "A", Position: [3]float64{-3, 0, 8}},
		{Name: "B", Position: [3]float64{0, 2, 8}},
		{Name: "C", Position: [3]float64{3, 0, 8}},
	}
}

// DefaultConfig returns a runnable configuration.
func DefaultConfig() Config {
	confirm := audioio.DefaultConfig()
	confirm.Backend = audioio.BackendNone
	confirm.ToneFrequency = 1320
	confirm.ToneDuration = 250 * time.Millisecond

	return Config{
		LogLevel:  "info",
		Targets:   DefaultTargets(),
		Feedback:  feedback.DefaultConfig(),
		Sensor:    sensor.DefaultWSConfig(),
		Audio:     audioio.DefaultConfig(),
		Confirm:   confirm,
		Session:   session.DefaultConfig(),
		Dashboard: DashboardConfig{Enabled: true, Port: "8080"},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path loads the defaults alone.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from ROCKGUIDE_* environment variables.
func (c *Config) ApplyEnv() {
	c.Sensor.URL = envOr(EnvSensorURL, c.Sensor.URL)
	c.Audio.Backend = audioio.Backend(envOr(EnvAudioBackend, string(c.Audio.Backend)))
	c.Audio.Addr = envOr(EnvRTPAddr, c.Audio.Addr)
	c.Dashboard.Port = envOr(EnvDashboardPort, c.Dashboard.Port)
	c.LogLevel = envOr(EnvLogLevel, c.LogLevel)
}

// envOr returns the value of key, or def if it is unset or empty.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Validate checks every section.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTargets
	}
	for i, t := range c.Targets {
		if t.Radius < 0 {
			return fmt.Errorf("target %d (%s): %w (got %v)", i, t.Name, target.ErrInvalidRadius, t.Radius)
		}
	}
	if c.HandRadius < 0 {
		return fmt.Errorf("hand_radius must not be negative, got %v", c.HandRadius)
	}
	if err := c.Feedback.Validate(); err != nil {
		return fmt.Errorf("feedback: %w", err)
	}
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	if err := c.Confirm.Validate(); err != nil {
		return fmt.Errorf("confirm: %w", err)
	}
	if err := c.Session.Validate(); err != nil {
		return err
	}
	if c.Dashboard.Enabled {
		if p, err := strconv.Atoi(c.Dashboard.Port); err != nil || p < 0 || p > 65535 {
			return fmt.Errorf("dashboard: invalid port %q", c.Dashboard.Port)
		}
	}
	return nil
}

// BuildTargets constructs the configured targets in order, attaching
// confirm (which may be nil) as each one's touch cue.
func (c *Config) BuildTargets(confirm target.Confirmer) ([]*target.Target, error) {
	if len(c.Targets) == 0 {
		return nil, ErrNoTargets
	}
	out := make([]*target.Target, 0, len(c.Targets))
	for i, tc := range c.Targets {
		radius := tc.Radius
		if radius == 0 {
			radius = target.DefaultRadius
		}
		name := tc.Name
		if name == "" {
			name = strconv.Itoa(i + 1)
		}

		opts := []target.Option{target.WithName(name)}
		if confirm != nil {
			opts = append(opts, target.WithConfirmation(confirm))
		}

		t, err := target.New(r3.Vec{X: tc.Position[0], Y: tc.Position[1], Z: tc.Position[2]}, radius, opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
