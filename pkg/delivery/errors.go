package delivery

import "errors"

var (
	// ErrNilStore is returned when a tracker is created without a store.
	ErrNilStore = errors.New("store cannot be nil")

	// ErrNilSender is returned when a tracker is created without a channel sender.
	ErrNilSender = errors.New("channel sender cannot be nil")

	// ErrNilPool is returned when a postgres store is created without a pool.
	ErrNilPool = errors.New("connection pool cannot be nil")

	// ErrInvalidRecord is returned when a record fails basic validation.
	ErrInvalidRecord = errors.New("invalid delivery record")

	// ErrRecordNotFound is returned when an operation references an unknown record.
	ErrRecordNotFound = errors.New("delivery record not found")

	// ErrDuplicateRecord is returned when creating a record whose id already exists.
	ErrDuplicateRecord = errors.New("delivery record already exists")

	// ErrInvalidTransition is returned when a status change is not in the
	// transition table.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrStoreUnavailable is returned when the backing store cannot be reached.
	ErrStoreUnavailable = errors.New("delivery store unavailable")

	// ErrPermanent marks a channel failure that retrying cannot fix, such
	// as an invalid recipient. Senders wrap these so the tracker records a
	// bounce instead of scheduling retries.
	ErrPermanent = errors.New("permanent delivery failure")
)
