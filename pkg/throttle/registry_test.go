package throttle_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formwatch/dispatchkit/pkg/notification"
	"github.com/formwatch/dispatchkit/pkg/throttle"
)

// fakeClock is a mutable clock shared with the registry under test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testConfig() throttle.Config {
	return throttle.Config{
		Enabled:          true,
		RateLimitPerHour: 3,
		RateLimitPerDay:  5,
		Cooldown:         5 * time.Minute,
		BurstWindow:      10 * time.Minute,
	}
}

func newRegistry(t *testing.T, cfg throttle.Config, clock *fakeClock) *throttle.Registry {
	t.Helper()
	reg, err := throttle.NewRegistry(throttle.NewMemoryStore(), cfg, throttle.WithNowFunc(clock.Now))
	require.NoError(t, err)
	return reg
}

func TestNewRegistry(t *testing.T) {
	t.Parallel()

	t.Run("rejects nil store", func(t *testing.T) {
		_, err := throttle.NewRegistry(nil, testConfig())
		assert.ErrorIs(t, err, throttle.ErrNilStore)
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		cfg := testConfig()
		cfg.RateLimitPerHour = 0
		_, err := throttle.NewRegistry(throttle.NewMemoryStore(), cfg)
		assert.ErrorIs(t, err, throttle.ErrInvalidConfig)
	})
}

func TestRegistry_CheckAndRecord(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("allows when disabled without touching counters", func(t *testing.T) {
		cfg := testConfig()
		cfg.Enabled = false
		clock := newFakeClock(start)
		reg := newRegistry(t, cfg, clock)

		for _i := 0; _i < 20; _i++ {
			d, err := reg.CheckAndRecord(ctx, "u1", notification.ChannelEmail, notification.SeverityLow)
			require.NoError(t, err)
			assert.True(t, d.Allowed)
		}

		count, err := reg.ActiveCounters(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("hourly limit denies at the boundary", func(t *testing.T) {
		cfg := testConfig()
		cfg.Cooldown = 0
		clock := newFakeClock(start)
		reg := newRegistry(t, cfg, clock)

		for i := 0; i < cfg.RateLimitPerHour; i++ {
			d, err := reg.CheckAndRecord(ctx, "u1", notification.ChannelEmail, notification.SeverityLow)
			require.NoError(t, err)
			assert.True(t, d.Allowed, "send %d should be allowed", i+1)
		}

		d, err := reg.CheckAndRecord(ctx, "u1", notification.ChannelEmail, notification.SeverityLow)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, throttle.ReasonRateLimitExceeded, d.Reason)
	})

	t.Run("hourly window rolls after an hour of silence", func(t *testing.T) {
		cfg := testConfig()
		cfg.Cooldown = 0
		clock := newFakeClock(start)
		reg := newRegistry(t, cfg, clock)

		for _i := 0; _i < cfg.RateLimitPerHour; _i++ {
			_, err := reg.CheckAndRecord(ctx, "u1", notification.ChannelEmail, notification.SeverityLow)
			require.NoError(t, err)
		}

		clock.Advance(time.Hour)
		d, err := reg.CheckAndRecord(ctx, "u1", notification.ChannelEmail, notification.SeverityLow)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	})

	t.Run("daily limit persists across hourly windows", func(t *testing.T) {
		cfg := testConfig()
		cfg.Cooldown = 0
		cfg.RateLimitPerHour = 10
		cfg.RateLimitPerDay = 4
		clock := newFakeClock(start)
		reg := newRegistry(t, cfg, clock)

		for _i := 0; _i < 4; _i++ {
			d, err := reg.CheckAndRecord(ctx, "u1", notification.ChannelEmail, notification.SeverityLow)
			require.NoError(t, err)
			require.True(t, d.Allowed)
		}

		clock.Advance(2 * time.Hour)
		d, err := reg.CheckAndRecord(ctx, "u1", notification.ChannelEmail, notification.SeverityLow)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, throttle.ReasonRateLimitExceeded, d.Reason)
	})

	t.Run("cooldown denies inside the window and allows at its edge", func(t *testing.T) {
		cfg := testConfig()
		clock := newFakeClock(start)
		reg := newRegistry(t, cfg, clock)

		d, err := reg.CheckAndRecord(ctx, "u1", notification.ChannelEmail, notification.SeverityLow)
		require.NoError(t, err)
		require.True(t, d.Allowed)

		clock.Advance(4 * time.Minute)
		d, err = reg.CheckAndRecord(ctx, "u1", notification.ChannelEmail, notification.SeverityLow)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, throttle.ReasonCooldownActive, d.Reason)

		clock.Advance(time.Minute)
		d, err = reg.CheckAndRecord(ctx, "u1", notification.ChannelEmail, notification.SeverityLow)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	})

	t.Run("denied sends do not consume the rate budget", func(t *testing.T) {
		cfg := testConfig()
		clock := newFakeClock(start)
		reg := newRegistry(t, cfg, clock)

		d, err := reg.CheckAndRecord(ctx, "u1", notification.ChannelEmail, notification.SeverityLow)
		require.NoError(t, err)
		require.True(t, d.Allowed)

		// Hammer inside the cooldown; none of these may increment counters.
		for _i := 0; _i < 10; _i++ {
			d, err = reg.CheckAndRecord(ctx, "u1", notification.ChannelEmail, notification.SeverityLow)
			require.NoError(t, err)
			require.False(t, d.Allowed)
		}
		assert.Equal(t, 1, d.Counter.HourlyCount)
		assert.Equal(t, int64(1), d.Counter.NotificationsSent)
	})

	t.Run("critical severity bypasses all gates", func(t *testing.T) {
		cfg := testConfig()
		clock := newFakeClock(start)
		reg := newRegistry(t, cfg, clock)

		for _i := 0; _i < 30; _i++ {
			d, err := reg.CheckAndRecord(ctx, "u1", notification.ChannelEmail, notification.SeverityCritical)
			require.NoError(t, err)
			require.True(t, d.Allowed)
		}

		// Exempt sends never touched the counter, so a normal send still fits.
		d, err := reg.CheckAndRecord(ctx, "u1", notification.ChannelEmail, notification.SeverityLow)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	})

	t.Run("high severity exemption can be disabled", func(t *testing.T) {
		cfg := testConfig()
		cfg.ExemptHighPriority = false
		clock := newFakeClock(start)
		reg := newRegistry(t, cfg, clock)

		d, err := reg.CheckAndRecord(ctx, "u1", notification.ChannelEmail, notification.SeverityHigh)
		require.NoError(t, err)
		require.True(t, d.Allowed)

		clock.Advance(time.Minute)
		d, err = reg.CheckAndRecord(ctx, "u1", notification.ChannelEmail, notification.SeverityHigh)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, throttle.ReasonCooldownActive, d.Reason)
	})

	t.Run("burst limit denies when configured", func(t *testing.T) {
		cfg := testConfig()
		cfg.Cooldown = 0
		cfg.RateLimitPerHour = 100
		cfg.RateLimitPerDay = 100
		cfg.BurstLimit = 2
		clock := newFakeClock(start)
		reg := newRegistry(t, cfg, clock)

		for _i := 0; _i < 2; _i++ {
			d, err := reg.CheckAndRecord(ctx, "u1", notification.ChannelSlack, notification.SeverityLow)
			require.NoError(t, err)
			require.True(t, d.Allowed)
		}

		d, err := reg.CheckAndRecord(ctx, "u1", notification.ChannelSlack, notification.SeverityLow)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, throttle.ReasonBurstLimitExceeded, d.Reason)

		clock.Advance(cfg.BurstWindow)
		d, err = reg.CheckAndRecord(ctx, "u1", notification.ChannelSlack, notification.SeverityLow)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	})

	t.Run("channels are throttled independently", func(t *testing.T) {
		cfg := testConfig()
		clock := newFakeClock(start)
		reg := newRegistry(t, cfg, clock)

		d, err := reg.CheckAndRecord(ctx, "u1", notification.ChannelEmail, notification.SeverityLow)
		require.NoError(t, err)
		require.True(t, d.Allowed)

		d, err = reg.CheckAndRecord(ctx, "u1", notification.ChannelSlack, notification.SeverityLow)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	})
}

func TestRegistry_Reset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	seed := func(t *testing.T, reg *throttle.Registry) {
		t.Helper()
		for _, ch := range []notification.Channel{notification.ChannelEmail, notification.ChannelSlack} {
			_, err := reg.CheckAndRecord(ctx, "u1", ch, notification.SeverityLow)
			require.NoError(t, err)
		}
		_, err := reg.CheckAndRecord(ctx, "u2", notification.ChannelEmail, notification.SeverityLow)
		require.NoError(t, err)
	}

	t.Run("resets a single channel", func(t *testing.T) {
		reg := newRegistry(t, testConfig(), newFakeClock(start))
		seed(t, reg)

		require.NoError(t, reg.Reset(ctx, "u1", notification.ChannelEmail))

		count, err := reg.ActiveCounters(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("resets all channels for a user", func(t *testing.T) {
		reg := newRegistry(t, testConfig(), newFakeClock(start))
		seed(t, reg)

		require.NoError(t, reg.Reset(ctx, "u1"))

		stats, err := reg.Metrics(ctx, "")
		require.NoError(t, err)
		require.Len(t, stats, 1)
		assert.Equal(t, "u2", stats[0].UserID)
	})

	t.Run("reset lifts an active cooldown", func(t *testing.T) {
		reg := newRegistry(t, testConfig(), newFakeClock(start))

		d, err := reg.CheckAndRecord(ctx, "u1", notification.ChannelEmail, notification.SeverityLow)
		require.NoError(t, err)
		require.True(t, d.Allowed)

		d, err = reg.CheckAndRecord(ctx, "u1", notification.ChannelEmail, notification.SeverityLow)
		require.NoError(t, err)
		require.False(t, d.Allowed)

		require.NoError(t, reg.Reset(ctx, "u1"))
		d, err = reg.CheckAndRecord(ctx, "u1", notification.ChannelEmail, notification.SeverityLow)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	})
}

func TestRegistry_Metrics(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	reg := newRegistry(t, testConfig(), clock)

	_, err := reg.CheckAndRecord(ctx, "bob", notification.ChannelEmail, notification.SeverityLow)
	require.NoError(t, err)
	_, err = reg.CheckAndRecord(ctx, "alice", notification.ChannelSlack, notification.SeverityLow)
	require.NoError(t, err)

	t.Run("sorted by user then channel", func(t *testing.T) {
		stats, err := reg.Metrics(ctx, "")
		require.NoError(t, err)
		require.Len(t, stats, 2)
		assert.Equal(t, "alice", stats[0].UserID)
		assert.Equal(t, "bob", stats[1].UserID)
	})

	t.Run("filters by user", func(t *testing.T) {
		stats, err := reg.Metrics(ctx, "bob")
		require.NoError(t, err)
		require.Len(t, stats, 1)
		assert.Equal(t, notification.ChannelEmail, stats[0].Channel)
		assert.Equal(t, int64(1), stats[0].Counter.NotificationsSent)
	})
}

func TestRegistry_CleanupStale(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := testConfig()
	clock := newFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	reg := newRegistry(t, cfg, clock)

	_, err := reg.CheckAndRecord(ctx, "u1", notification.ChannelEmail, notification.SeverityLow)
	require.NoError(t, err)

	clock.Advance(25 * time.Hour)
	touched, err := reg.CleanupStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, touched)

	// Counter survives the sweep with zeroed windows.
	stats, err := reg.Metrics(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Zero(t, stats[0].Counter.HourlyCount)
	assert.Zero(t, stats[0].Counter.DailyCount)
	assert.Equal(t, int64(1), stats[0].Counter.NotificationsSent)
}

func TestRegistry_UpdateConfig(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t, testConfig(), newFakeClock(time.Now()))

	t.Run("swaps valid config", func(t *testing.T) {
		cfg := testConfig()
		cfg.RateLimitPerHour = 42
		require.NoError(t, reg.UpdateConfig(cfg))
		assert.Equal(t, 42, reg.Config().RateLimitPerHour)
	})

	t.Run("keeps previous config on invalid swap", func(t *testing.T) {
		before := reg.Config()
		bad := testConfig()
		bad.RateLimitPerDay = -1
		assert.ErrorIs(t, reg.UpdateConfig(bad), throttle.ErrInvalidConfig)
		assert.Equal(t, before, reg.Config())
	})
}
