package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formwatch/dispatchkit/pkg/backoff"
	"github.com/formwatch/dispatchkit/pkg/batch"
	"github.com/formwatch/dispatchkit/pkg/delivery"
	"github.com/formwatch/dispatchkit/pkg/dispatch"
	"github.com/formwatch/dispatchkit/pkg/notification"
	"github.com/formwatch/dispatchkit/pkg/throttle"
)

// fakeSender records delivered requests and can be told to fail.
type fakeSender struct {
	mu   sync.Mutex
	sent []notification.Request
	err  error
}

func (f *fakeSender) Send(ctx context.Context, req notification.Request) (delivery.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return delivery.SendResult{}, f.err
	}
	f.sent = append(f.sent, req)
	return delivery.SendResult{DeliveryTime: 10 * time.Millisecond, ResponseData: "ok"}, nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeSender) last() notification.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

type pipeline struct {
	dispatcher *dispatch.Dispatcher
	sender     *fakeSender
	store      *delivery.MemoryStore
}

func throttleConfig() throttle.Config {
	return throttle.Config{
		Enabled:          true,
		RateLimitPerHour: 10,
		RateLimitPerDay:  50,
		Cooldown:         5 * time.Minute,
		BurstWindow:      10 * time.Minute,
	}
}

func batchConfig() batch.Config {
	return batch.Config{
		Enabled:          true,
		MaxBatchSize:     3,
		MaxBatchDelay:    30 * time.Minute,
		PriorityOverride: true,
		GroupByUser:      true,
		GroupByChannel:   true,
		GroupBySeverity:  true,
	}
}

func newPipeline(t *testing.T, tcfg throttle.Config, bcfg batch.Config) *pipeline {
	t.Helper()

	throttles, err := throttle.NewRegistry(throttle.NewMemoryStore(), tcfg)
	require.NoError(t, err)

	sender := &fakeSender{}
	store := delivery.NewMemoryStore()
	tracker, err := delivery.NewTracker(store, sender, backoff.Config{
		Strategy:   backoff.StrategyImmediate,
		MaxRetries: 1,
	})
	require.NoError(t, err)

	dispatcher, err := dispatch.New(throttles, tracker, bcfg)
	require.NoError(t, err)

	return &pipeline{dispatcher: dispatcher, sender: sender, store: store}
}

func request(userID string, sev notification.Severity, n int) notification.Request {
	return notification.Request{
		UserID:          userID,
		Recipient:       userID + "@example.com",
		Channel:         notification.ChannelEmail,
		Severity:        sev,
		Subject:         fmt.Sprintf("Form change %d", n),
		Body:            "A monitored field changed",
		RelatedChangeID: fmt.Sprintf("chg-%d", n),
		CreatedAt:       time.Now(),
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	tracker, err := delivery.NewTracker(delivery.NewMemoryStore(), &fakeSender{}, backoff.Config{
		Strategy: backoff.StrategyImmediate,
	})
	require.NoError(t, err)
	throttles, err := throttle.NewRegistry(throttle.NewMemoryStore(), throttleConfig())
	require.NoError(t, err)

	t.Run("rejects nil throttle registry", func(t *testing.T) {
		_, err := dispatch.New(nil, tracker, batchConfig())
		assert.ErrorIs(t, err, dispatch.ErrNilThrottle)
	})

	t.Run("rejects nil tracker", func(t *testing.T) {
		_, err := dispatch.New(throttles, nil, batchConfig())
		assert.ErrorIs(t, err, dispatch.ErrNilTracker)
	})

	t.Run("rejects invalid batch config", func(t *testing.T) {
		_, err := dispatch.New(throttles, tracker, batch.Config{})
		assert.ErrorIs(t, err, batch.ErrInvalidConfig)
	})

	t.Run("rejects invalid sweep config", func(t *testing.T) {
		_, err := dispatch.New(throttles, tracker, batchConfig(),
			dispatch.WithConfig(dispatch.Config{}))
		assert.ErrorIs(t, err, dispatch.ErrInvalidConfig)
	})
}

func TestDispatcher_Process(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("urgent request is delivered immediately", func(t *testing.T) {
		p := newPipeline(t, throttleConfig(), batchConfig())

		res, err := p.dispatcher.Process(ctx, request("u1", notification.SeverityCritical, 1))
		require.NoError(t, err)
		assert.Equal(t, dispatch.StatusProcessed, res.Status)
		assert.Empty(t, res.BatchID)
		require.NotNil(t, res.Delivery)
		assert.True(t, res.Delivery.Success)
		assert.Equal(t, 1, p.sender.count())
	})

	t.Run("low severity request joins a batch", func(t *testing.T) {
		p := newPipeline(t, throttleConfig(), batchConfig())

		res, err := p.dispatcher.Process(ctx, request("u1", notification.SeverityLow, 1))
		require.NoError(t, err)
		assert.Equal(t, dispatch.StatusProcessed, res.Status)
		assert.NotEmpty(t, res.BatchID)
		assert.Nil(t, res.Delivery)
		assert.Zero(t, p.sender.count())
	})

	t.Run("throttled request never reaches a batch", func(t *testing.T) {
		p := newPipeline(t, throttleConfig(), batchConfig())

		res, err := p.dispatcher.Process(ctx, request("u1", notification.SeverityLow, 1))
		require.NoError(t, err)
		require.Equal(t, dispatch.StatusProcessed, res.Status)
		firstBatch := res.BatchID

		// Second send lands inside the cooldown window.
		res, err = p.dispatcher.Process(ctx, request("u1", notification.SeverityLow, 2))
		require.NoError(t, err)
		assert.Equal(t, dispatch.StatusThrottled, res.Status)
		assert.Equal(t, throttle.ReasonCooldownActive, res.Reason)
		assert.Empty(t, res.BatchID)

		b, err := p.dispatcher.GetBatch(firstBatch)
		require.NoError(t, err)
		assert.Equal(t, 1, b.Size())
	})

	t.Run("throttle exemption flag bypasses the gate", func(t *testing.T) {
		p := newPipeline(t, throttleConfig(), batchConfig())

		for i := 0; i < 5; i++ {
			req := request("u1", notification.SeverityLow, i)
			req.ExemptFromThrottle = true
			req.ExemptFromBatch = true
			res, err := p.dispatcher.Process(ctx, req)
			require.NoError(t, err)
			assert.Equal(t, dispatch.StatusProcessed, res.Status)
		}
		assert.Equal(t, 5, p.sender.count())
	})

	t.Run("full batch flushes as one consolidated delivery", func(t *testing.T) {
		tcfg := throttleConfig()
		tcfg.Cooldown = 0
		p := newPipeline(t, tcfg, batchConfig())

		for i := 0; i < 3; i++ {
			res, err := p.dispatcher.Process(ctx, request("u1", notification.SeverityLow, i))
			require.NoError(t, err)
			require.Equal(t, dispatch.StatusProcessed, res.Status)
		}

		require.Equal(t, 1, p.sender.count())
		delivered := p.sender.last()
		assert.Contains(t, delivered.Subject, "3 form change notifications")
		assert.Empty(t, p.dispatcher.ListActiveBatches())
	})

	t.Run("rejects invalid requests", func(t *testing.T) {
		p := newPipeline(t, throttleConfig(), batchConfig())

		_, err := p.dispatcher.Process(ctx, notification.Request{})
		assert.ErrorIs(t, err, notification.ErrInvalidRequest)
	})

	t.Run("delivery failure rests at failed, not an error", func(t *testing.T) {
		p := newPipeline(t, throttleConfig(), batchConfig())
		p.sender.err = errors.New("provider down")

		res, err := p.dispatcher.Process(ctx, request("u1", notification.SeverityCritical, 1))
		require.NoError(t, err)
		assert.Equal(t, dispatch.StatusProcessed, res.Status)
		require.NotNil(t, res.Delivery)
		assert.False(t, res.Delivery.Success)
		assert.Equal(t, delivery.StatusFailed, res.Delivery.Status)
	})
}

func TestDispatcher_BatchAdmin(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("send now flushes early", func(t *testing.T) {
		p := newPipeline(t, throttleConfig(), batchConfig())

		res, err := p.dispatcher.Process(ctx, request("u1", notification.SeverityLow, 1))
		require.NoError(t, err)

		require.NoError(t, p.dispatcher.SendBatchNow(ctx, res.BatchID))
		assert.Equal(t, 1, p.sender.count())

		records, err := p.store.List(ctx, delivery.ListOptions{})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, delivery.StatusDelivered, records[0].Status)
	})

	t.Run("cancel discards without delivering", func(t *testing.T) {
		p := newPipeline(t, throttleConfig(), batchConfig())

		res, err := p.dispatcher.Process(ctx, request("u1", notification.SeverityLow, 1))
		require.NoError(t, err)

		require.NoError(t, p.dispatcher.CancelBatch(ctx, res.BatchID))
		assert.Zero(t, p.sender.count())
		assert.Empty(t, p.dispatcher.ListActiveBatches())
	})

	t.Run("failed flush marks the batch failed and drops it", func(t *testing.T) {
		p := newPipeline(t, throttleConfig(), batchConfig())
		p.sender.err = errors.New("provider down")

		res, err := p.dispatcher.Process(ctx, request("u1", notification.SeverityLow, 1))
		require.NoError(t, err)

		require.NoError(t, p.dispatcher.SendBatchNow(ctx, res.BatchID))
		assert.Empty(t, p.dispatcher.ListActiveBatches())

		// The delivery record still captures the failed attempt.
		records, err := p.store.List(ctx, delivery.ListOptions{})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, delivery.StatusFailed, records[0].Status)
	})

	t.Run("unknown batch id", func(t *testing.T) {
		p := newPipeline(t, throttleConfig(), batchConfig())
		assert.ErrorIs(t, p.dispatcher.SendBatchNow(ctx, "nope"), batch.ErrBatchNotFound)
		assert.ErrorIs(t, p.dispatcher.CancelBatch(ctx, "nope"), batch.ErrBatchNotFound)
		_, err := p.dispatcher.GetBatch("nope")
		assert.ErrorIs(t, err, batch.ErrBatchNotFound)
	})
}

func TestDispatcher_Metrics(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := newPipeline(t, throttleConfig(), batchConfig())

	_, err := p.dispatcher.Process(ctx, request("u1", notification.SeverityLow, 1))
	require.NoError(t, err)
	_, err = p.dispatcher.Process(ctx, request("u2", notification.SeverityCritical, 2))
	require.NoError(t, err)

	m, err := p.dispatcher.Metrics(ctx, delivery.TimeRange{})
	require.NoError(t, err)

	assert.Equal(t, 1, m.ActiveBatches)
	// Critical severity is throttle-exempt so only u1 has a counter.
	assert.Equal(t, 1, m.ActiveThrottleCounters)
	assert.Equal(t, 1, m.Delivery.TotalSent)
	assert.Equal(t, 1, m.Delivery.TotalDelivered)
	assert.Equal(t, 3, m.BatchConfig.MaxBatchSize)
	assert.Equal(t, 10, m.ThrottleConfig.RateLimitPerHour)
	assert.Equal(t, backoff.StrategyImmediate, m.RetryConfig.Strategy)
}

func TestDispatcher_ConfigUpdates(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, throttleConfig(), batchConfig())

	t.Run("valid updates apply everywhere", func(t *testing.T) {
		bcfg := batchConfig()
		bcfg.MaxBatchSize = 7
		require.NoError(t, p.dispatcher.UpdateBatchConfig(bcfg))

		tcfg := throttleConfig()
		tcfg.RateLimitPerHour = 99
		require.NoError(t, p.dispatcher.UpdateThrottleConfig(tcfg))

		rcfg := backoff.Config{Strategy: backoff.StrategyFixed, MaxRetries: 2, InitialDelay: time.Second}
		require.NoError(t, p.dispatcher.UpdateRetryConfig(rcfg))

		ctx := context.Background()
		m, err := p.dispatcher.Metrics(ctx, delivery.TimeRange{})
		require.NoError(t, err)
		assert.Equal(t, 7, m.BatchConfig.MaxBatchSize)
		assert.Equal(t, 99, m.ThrottleConfig.RateLimitPerHour)
		assert.Equal(t, backoff.StrategyFixed, m.RetryConfig.Strategy)
	})

	t.Run("invalid updates are rejected", func(t *testing.T) {
		assert.ErrorIs(t, p.dispatcher.UpdateBatchConfig(batch.Config{}), batch.ErrInvalidConfig)
		assert.ErrorIs(t, p.dispatcher.UpdateThrottleConfig(throttle.Config{}), throttle.ErrInvalidConfig)
		assert.ErrorIs(t, p.dispatcher.UpdateRetryConfig(backoff.Config{Strategy: "bogus"}), backoff.ErrInvalidConfig)
	})
}

func TestDispatcher_Run(t *testing.T) {
	t.Parallel()

	tcfg := throttleConfig()
	tcfg.Cooldown = 0
	bcfg := batchConfig()
	bcfg.MaxBatchDelay = 50 * time.Millisecond

	throttles, err := throttle.NewRegistry(throttle.NewMemoryStore(), tcfg)
	require.NoError(t, err)
	sender := &fakeSender{}
	tracker, err := delivery.NewTracker(delivery.NewMemoryStore(), sender, backoff.Config{
		Strategy: backoff.StrategyImmediate,
	})
	require.NoError(t, err)

	dispatcher, err := dispatch.New(throttles, tracker, bcfg, dispatch.WithConfig(dispatch.Config{
		BatchSweepInterval:      20 * time.Millisecond,
		ThrottleCleanupInterval: time.Hour,
		DeliveryMaxAge:          24 * time.Hour,
	}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- dispatcher.Run(ctx) }()

	_, err = dispatcher.Process(ctx, request("u1", notification.SeverityLow, 1))
	require.NoError(t, err)

	// The sweep should pick the batch up once it ages past the delay.
	require.Eventually(t, func() bool { return sender.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("run did not stop after cancellation")
	}
}
