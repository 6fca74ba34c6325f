package dispatch

import "errors"

var (
	// ErrInvalidConfig is returned when dispatcher configuration is invalid.
	ErrInvalidConfig = errors.New("invalid dispatch config")

	// ErrNilThrottle is returned when the dispatcher is built without a
	// throttle registry.
	ErrNilThrottle = errors.New("throttle registry is nil")

	// ErrNilTracker is returned when the dispatcher is built without a
	// delivery tracker.
	ErrNilTracker = errors.New("delivery tracker is nil")

	// ErrFlushFailed is returned when a consolidated batch could not be
	// delivered.
	ErrFlushFailed = errors.New("batch flush delivery failed")
)
