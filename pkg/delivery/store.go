package delivery

import (
	"context"
	"time"
)

// Store persists delivery records. It is the persistence collaborator of
// the tracker: each call is one unit of work, commit/rollback owned by the
// implementation.
type Store interface {
	// Create stores a new record.
	Create(ctx context.Context, rec Record) error

	// Update overwrites the record identified by rec.ID.
	Update(ctx context.Context, rec Record) error

	// Get retrieves a single record.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns records matching the options, newest first.
	List(ctx context.Context, opts ListOptions) ([]Record, error)
}

// ListOptions filters record queries.
type ListOptions struct {
	Statuses []Status   // If set, only records in one of these statuses
	Since    *time.Time // If set, only records sent at or after this time
	Until    *time.Time // If set, only records sent before this time
	Limit    int        // Maximum records to return (0 = no limit)
}

func (o ListOptions) matches(rec Record) bool {
	if len(o.Statuses) > 0 {
		found := false
		for _, s := range o.Statuses {
			if rec.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if o.Since != nil && rec.SentAt.Before(*o.Since) {
		return false
	}
	if o.Until != nil && !rec.SentAt.Before(*o.Until) {
		return false
	}
	return true
}
