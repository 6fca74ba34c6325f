package channels

import "errors"

var (
	// ErrUnknownChannel is returned when no sender is registered for a
	// notification's channel.
	ErrUnknownChannel = errors.New("unknown channel")

	// ErrNilSender is returned when a nil sender is registered or wrapped.
	ErrNilSender = errors.New("sender is nil")
)
