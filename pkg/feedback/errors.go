package feedback

import "errors"

// ErrInvalidConfig is returned when a feedback configuration cannot be used.
// Construction fails with it so that bad ranges never reach the control loop.
var ErrInvalidConfig = errors.New("invalid feedback config")
