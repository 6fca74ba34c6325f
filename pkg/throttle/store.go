package throttle

import (
	"context"
	"time"
)

// Store persists throttle counters. Implementations must make
// CheckAndRecord atomic per key so concurrent checks for the same
// (user, channel) pair never double-count or lose a send.
type Store interface {
	// CheckAndRecord applies the throttle gates to the counter for key and
	// records the send when the decision allows it.
	CheckAndRecord(ctx context.Context, key string, now time.Time, cfg Config) (Decision, error)

	// Snapshot returns a copy of all live counters keyed by throttle key.
	Snapshot(ctx context.Context) (map[string]Counter, error)

	// Reset removes the counter for key. Missing keys are not an error.
	Reset(ctx context.Context, key string) error

	// CleanupStale zeroes hourly and daily counts whose windows have
	// elapsed and returns how many counters were touched. Counters are
	// kept so lifetime totals and cooldown state survive the sweep.
	CleanupStale(ctx context.Context, now time.Time, cfg Config) (int, error)
}
