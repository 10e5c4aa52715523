package target

import "errors"

// ErrInvalidRadius is returned when a target is built with a non-positive detection radius.
var ErrInvalidRadius = errors.New("detection radius must be positive")
