package throttle

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "throttle:"

// RedisStore keeps throttle counters in Redis hashes so that rate-limit
// state survives process restarts. The dispatch subsystem is single-process
// (one writer per key), so atomicity is provided by a process-local mutex
// around the read-modify-write cycle rather than server-side scripting.
type RedisStore struct {
	client redis.UniversalClient
	mu     sync.Mutex
}

// NewRedisStore creates a Redis-backed counter store.
func NewRedisStore(client redis.UniversalClient) (*RedisStore, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	return &RedisStore{client: client}, nil
}

func (rs *RedisStore) CheckAndRecord(ctx context.Context, key string, now time.Time, cfg Config) (Decision, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	c, err := rs.load(ctx, key)
	if err != nil {
		return Decision{}, err
	}

	allowed, reason := applyGates(c, now, cfg)

	if err := rs.save(ctx, key, c); err != nil {
		return Decision{}, err
	}

	return Decision{
		Allowed: allowed,
		Reason:  reason,
		Counter: *c,
	}, nil
}

func (rs *RedisStore) Snapshot(ctx context.Context) (map[string]Counter, error) {
	keys, err := rs.scanKeys(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]Counter, len(keys))
	for _, redisKey := range keys {
		c, err := rs.load(ctx, redisKey[len(redisKeyPrefix):])
		if err != nil {
			return nil, err
		}
		out[redisKey[len(redisKeyPrefix):]] = *c
	}
	return out, nil
}

func (rs *RedisStore) Reset(ctx context.Context, key string) error {
	if err := rs.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

func (rs *RedisStore) CleanupStale(ctx context.Context, now time.Time, cfg Config) (int, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	keys, err := rs.scanKeys(ctx)
	if err != nil {
		return 0, err
	}

	touched := 0
	for _, redisKey := range keys {
		key := redisKey[len(redisKeyPrefix):]
		c, err := rs.load(ctx, key)
		if err != nil {
			return touched, err
		}

		before := *c
		c.resetElapsedWindows(now, cfg)
		if *c == before {
			continue
		}

		if err := rs.save(ctx, key, c); err != nil {
			return touched, err
		}
		touched++
	}
	return touched, nil
}

func (rs *RedisStore) scanKeys(ctx context.Context) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := rs.client.Scan(ctx, cursor, redisKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, errors.Join(ErrStoreUnavailable, err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

func (rs *RedisStore) load(ctx context.Context, key string) (*Counter, error) {
	fields, err := rs.client.HGetAll(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	// Missing hashes yield an empty map: a fresh zero-valued counter.
	c := &Counter{
		NotificationsSent: parseInt64(fields["sent"]),
		HourlyCount:       int(parseInt64(fields["hourly"])),
		DailyCount:        int(parseInt64(fields["daily"])),
		BurstCount:        int(parseInt64(fields["burst"])),
	}
	if ns := parseInt64(fields["last_sent_at"]); ns > 0 {
		c.LastSentAt = time.Unix(0, ns)
	}
	if ns := parseInt64(fields["burst_window_start"]); ns > 0 {
		c.BurstWindowStart = time.Unix(0, ns)
	}
	return c, nil
}

func (rs *RedisStore) save(ctx context.Context, key string, c *Counter) error {
	fields := map[string]any{
		"sent":               c.NotificationsSent,
		"hourly":             c.HourlyCount,
		"daily":              c.DailyCount,
		"burst":              c.BurstCount,
		"last_sent_at":       c.LastSentAt.UnixNano(),
		"burst_window_start": c.BurstWindowStart.UnixNano(),
	}
	if c.LastSentAt.IsZero() {
		fields["last_sent_at"] = int64(0)
	}
	if c.BurstWindowStart.IsZero() {
		fields["burst_window_start"] = int64(0)
	}

	if err := rs.client.HSet(ctx, redisKeyPrefix+key, fields).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

func parseInt64(s string) int64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
