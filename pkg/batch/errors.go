package batch

import "errors"

var (
	// ErrInvalidConfig is returned when a batching config fails validation.
	ErrInvalidConfig = errors.New("invalid batch config")

	// ErrNilFlusher is returned when an accumulator is created without a flusher.
	ErrNilFlusher = errors.New("flusher cannot be nil")

	// ErrBatchNotFound is returned when an operation references an unknown
	// or already-flushed batch.
	ErrBatchNotFound = errors.New("batch not found")
)
