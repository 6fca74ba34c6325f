package throttle

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps throttle counters in process memory.
// This is the reference implementation; use RedisStore when counters
// should survive restarts.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*Counter
}

// NewMemoryStore creates an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]*Counter),
	}
}

func (ms *MemoryStore) CheckAndRecord(ctx context.Context, key string, now time.Time, cfg Config) (Decision, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	c, ok := ms.counters[key]
	if !ok {
		// Unknown keys get a fresh zero-valued counter, never an error.
		c = &Counter{}
		ms.counters[key] = c
	}

	allowed, reason := applyGates(c, now, cfg)

	return Decision{
		Allowed: allowed,
		Reason:  reason,
		Counter: *c,
	}, nil
}

func (ms *MemoryStore) Snapshot(ctx context.Context) (map[string]Counter, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	out := make(map[string]Counter, len(ms.counters))
	for key, c := range ms.counters {
		out[key] = *c
	}
	return out, nil
}

func (ms *MemoryStore) Reset(ctx context.Context, key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.counters, key)
	return nil
}

func (ms *MemoryStore) CleanupStale(ctx context.Context, now time.Time, cfg Config) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	touched := 0
	for _, c := range ms.counters {
		before := *c
		c.resetElapsedWindows(now, cfg)
		if *c != before {
			touched++
		}
	}
	return touched, nil
}
