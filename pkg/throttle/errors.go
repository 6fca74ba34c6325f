package throttle

import "errors"

var (
	// ErrInvalidConfig is returned when a throttle config fails validation.
	ErrInvalidConfig = errors.New("invalid throttle config")

	// ErrNilStore is returned when a registry is created without a store.
	ErrNilStore = errors.New("store cannot be nil")

	// ErrNilClient is returned when a redis store is created without a client.
	ErrNilClient = errors.New("redis client cannot be nil")

	// ErrStoreUnavailable is returned when the backing store cannot be reached.
	ErrStoreUnavailable = errors.New("throttle store unavailable")
)
