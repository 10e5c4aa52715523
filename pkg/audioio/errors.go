package audioio

import "errors"

var (
	// ErrInvalidConfig is returned when an audio configuration cannot be used.
	ErrInvalidConfig = errors.New("invalid audio config")

	// ErrClosed is returned when using a device after Close.
	ErrClosed = errors.New("audio device closed")
)
