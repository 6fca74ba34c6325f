package notification

import "errors"

// ErrInvalidRequest is returned when a request fails validation.
var ErrInvalidRequest = errors.New("invalid notification request")
