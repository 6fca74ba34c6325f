package backoff

import "errors"

// ErrInvalidConfig is returned when a retry config fails validation.
var ErrInvalidConfig = errors.New("invalid retry config")
