package audioio

import (
	"fmt"
	"log/slog"

	"github.com/teslashibe/rockguide/internal/log"
)

// New creates the output device selected by cfg.Backend.
// BackendNone yields a nil Device and no error; the feedback loop treats
// a nil device as silent.
func New(cfg Config, logger *slog.Logger) (Device, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger = log.Or(logger)

	logger.Info("creating audio device",
		"backend", cfg.Backend,
		"sample_rate", cfg.SampleRate,
		"tone_hz", cfg.ToneFrequency,
		"tone_ms", cfg.ToneDuration.Milliseconds(),
	)

	switch cfg.Backend {
	case BackendNone:
		return nil, nil
	case BackendMock:
		return NewMockDevice(cfg, logger), nil
	case BackendRTP:
		d, err := NewRTPDevice(cfg, logger)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Backend)
	}
}

// AvailableBackends returns the list of supported backends.
func AvailableBackends() []Backend {
	return []Backend{BackendNone, BackendMock, BackendRTP}
}
