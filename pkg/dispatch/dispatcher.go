package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/formwatch/dispatchkit/pkg/backoff"
	"github.com/formwatch/dispatchkit/pkg/batch"
	"github.com/formwatch/dispatchkit/pkg/delivery"
	"github.com/formwatch/dispatchkit/pkg/logger"
	"github.com/formwatch/dispatchkit/pkg/notification"
	"github.com/formwatch/dispatchkit/pkg/throttle"
)

// Status is the outcome of Process for one request.
type Status string

const (
	// StatusProcessed means the request was delivered or joined a batch.
	StatusProcessed Status = "processed"
	// StatusThrottled means rate limiting rejected the request.
	StatusThrottled Status = "throttled"
)

// ProcessingResult reports what happened to one submitted request.
type ProcessingResult struct {
	Status   Status           `json:"status"`
	Reason   string           `json:"reason,omitempty"`
	BatchID  string           `json:"batch_id,omitempty"`
	Delivery *delivery.Result `json:"delivery,omitempty"`
}

// Dispatcher runs the full notification pipeline: throttle gate first,
// then batching, then tracked delivery for anything that bypasses or
// flushes out of a batch.
type Dispatcher struct {
	throttles *throttle.Registry
	tracker   *delivery.Tracker
	batches   *batch.Accumulator
	logger    *slog.Logger
	cfg       Config
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger for the Dispatcher.
func WithLogger(log *slog.Logger) Option {
	return func(d *Dispatcher) {
		if log != nil {
			d.logger = log
		}
	}
}

// WithConfig overrides the sweep cadence.
func WithConfig(cfg Config) Option {
	return func(d *Dispatcher) { d.cfg = cfg }
}

// New wires the pipeline. The batch accumulator is created here because
// the dispatcher itself is its flusher.
func New(throttles *throttle.Registry, tracker *delivery.Tracker, batchCfg batch.Config, opts ...Option) (*Dispatcher, error) {
	if throttles == nil {
		return nil, ErrNilThrottle
	}
	if tracker == nil {
		return nil, ErrNilTracker
	}

	d := &Dispatcher{
		throttles: throttles,
		tracker:   tracker,
		logger:    slog.Default(),
		cfg:       DefaultConfig(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if err := d.cfg.Validate(); err != nil {
		return nil, err
	}

	batches, err := batch.NewAccumulator(d, batchCfg, batch.WithLogger(d.logger))
	if err != nil {
		return nil, err
	}
	d.batches = batches
	return d, nil
}

// Process runs one request through the pipeline. Throttling is checked
// before batching so a denied request never occupies batch space; denial
// is reported as a result, not an error.
func (d *Dispatcher) Process(ctx context.Context, req notification.Request) (ProcessingResult, error) {
	if err := req.Validate(); err != nil {
		return ProcessingResult{}, err
	}

	if !req.ExemptFromThrottle {
		decision, err := d.throttles.CheckAndRecord(ctx, req.UserID, req.Channel, req.Severity)
		if err != nil {
			return ProcessingResult{}, err
		}
		if !decision.Allowed {
			d.logger.LogAttrs(ctx, slog.LevelInfo, "notification throttled",
				logger.UserID(req.UserID),
				logger.Channel(req.Channel),
				slog.String("reason", decision.Reason),
			)
			return ProcessingResult{Status: StatusThrottled, Reason: decision.Reason}, nil
		}
	}

	decision, err := d.batches.Add(ctx, req)
	if err != nil {
		return ProcessingResult{}, err
	}
	if decision.Outcome == batch.OutcomeBatched {
		return ProcessingResult{Status: StatusProcessed, BatchID: decision.BatchID}, nil
	}

	res, err := d.tracker.Deliver(ctx, req)
	if err != nil {
		return ProcessingResult{}, err
	}
	return ProcessingResult{Status: StatusProcessed, Delivery: &res}, nil
}

// FlushBatch delivers a consolidated batch through the tracker. A
// non-success resting state is surfaced as an error so the accumulator
// records the batch as failed.
func (d *Dispatcher) FlushBatch(ctx context.Context, consolidated notification.Request) error {
	res, err := d.tracker.Deliver(ctx, consolidated)
	if err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("%w: record %s ended %s", ErrFlushFailed, res.RecordID, res.Status)
	}
	return nil
}

// Run drives the background sweeps until the context is cancelled: aged
// batches on the minute cadence, stale throttle counters and expired
// delivery records on the hourly cadence.
func (d *Dispatcher) Run(ctx context.Context) error {
	batchTicker := time.NewTicker(d.cfg.BatchSweepInterval)
	defer batchTicker.Stop()
	cleanupTicker := time.NewTicker(d.cfg.ThrottleCleanupInterval)
	defer cleanupTicker.Stop()

	d.logger.LogAttrs(ctx, slog.LevelInfo, "dispatcher started",
		slog.Duration("batch_sweep", d.cfg.BatchSweepInterval),
		slog.Duration("cleanup", d.cfg.ThrottleCleanupInterval),
	)

	for {
		select {
		case <-ctx.Done():
			d.logger.LogAttrs(context.WithoutCancel(ctx), slog.LevelInfo, "dispatcher stopped")
			return ctx.Err()

		case <-batchTicker.C:
			if n := d.batches.SweepDue(ctx); n > 0 {
				d.logger.LogAttrs(ctx, slog.LevelDebug, "aged batches flushed", slog.Int("count", n))
			}

		case <-cleanupTicker.C:
			if _, err := d.throttles.CleanupStale(ctx); err != nil {
				d.logger.LogAttrs(ctx, slog.LevelError, "throttle cleanup failed", logger.Error(err))
			}
			if _, err := d.tracker.CleanupExpired(ctx, d.cfg.DeliveryMaxAge); err != nil {
				d.logger.LogAttrs(ctx, slog.LevelError, "delivery cleanup failed", logger.Error(err))
			}
		}
	}
}

// Metrics is the combined operational snapshot across all three stages.
type Metrics struct {
	ActiveBatches          int              `json:"active_batches"`
	ActiveThrottleCounters int              `json:"active_throttle_counters"`
	Delivery               delivery.Metrics `json:"delivery"`

	BatchConfig    batch.Config    `json:"batch_config"`
	ThrottleConfig throttle.Config `json:"throttle_config"`
	RetryConfig    backoff.Config  `json:"retry_config"`
}

// Metrics returns the combined pipeline snapshot. The delivery section
// covers the given time range; zero bounds mean all records.
func (d *Dispatcher) Metrics(ctx context.Context, tr delivery.TimeRange) (Metrics, error) {
	counters, err := d.throttles.ActiveCounters(ctx)
	if err != nil {
		return Metrics{}, err
	}
	dm, err := d.tracker.Metrics(ctx, tr)
	if err != nil {
		return Metrics{}, err
	}

	return Metrics{
		ActiveBatches:          d.batches.ActiveCount(),
		ActiveThrottleCounters: counters,
		Delivery:               dm,
		BatchConfig:            d.batches.Config(),
		ThrottleConfig:         d.throttles.Config(),
		RetryConfig:            d.tracker.RetryConfig(),
	}, nil
}

// ListActiveBatches returns snapshots of accumulating batches, oldest first.
func (d *Dispatcher) ListActiveBatches() []batch.Batch {
	return d.batches.Active()
}

// GetBatch returns a snapshot of one live batch.
func (d *Dispatcher) GetBatch(batchID string) (batch.Batch, error) {
	return d.batches.Get(batchID)
}

// SendBatchNow forces an immediate flush of a live batch.
func (d *Dispatcher) SendBatchNow(ctx context.Context, batchID string) error {
	return d.batches.SendNow(ctx, batchID)
}

// CancelBatch discards a live batch without delivering it.
func (d *Dispatcher) CancelBatch(ctx context.Context, batchID string) error {
	return d.batches.Cancel(ctx, batchID)
}

// GetThrottleMetrics returns counter snapshots, optionally filtered by user.
func (d *Dispatcher) GetThrottleMetrics(ctx context.Context, userID string) ([]throttle.CounterStat, error) {
	return d.throttles.Metrics(ctx, userID)
}

// ResetThrottle clears throttle state for a user across the given
// channels, or all channels when none are given.
func (d *Dispatcher) ResetThrottle(ctx context.Context, userID string, channels ...notification.Channel) error {
	return d.throttles.Reset(ctx, userID, channels...)
}

// GetDeliveryMetrics returns delivery metrics for the time range.
func (d *Dispatcher) GetDeliveryMetrics(ctx context.Context, tr delivery.TimeRange) (delivery.Metrics, error) {
	return d.tracker.Metrics(ctx, tr)
}

// DeliveryReport builds a graded delivery report for the period.
func (d *Dispatcher) DeliveryReport(ctx context.Context, start, end time.Time) (delivery.Report, error) {
	return d.tracker.Report(ctx, start, end)
}

// PendingRetries lists delivery records waiting on a retry attempt.
func (d *Dispatcher) PendingRetries(ctx context.Context) ([]delivery.Record, error) {
	return d.tracker.PendingRetries(ctx)
}

// CancelRetry stops further attempts for a delivery record.
func (d *Dispatcher) CancelRetry(ctx context.Context, recordID string) error {
	return d.tracker.CancelRetry(ctx, recordID)
}

// CleanupExpired forces stale non-terminal delivery records to Expired.
func (d *Dispatcher) CleanupExpired(ctx context.Context) (int, error) {
	return d.tracker.CleanupExpired(ctx, d.cfg.DeliveryMaxAge)
}

// UpdateBatchConfig hot-swaps the batching policy.
func (d *Dispatcher) UpdateBatchConfig(cfg batch.Config) error {
	return d.batches.UpdateConfig(cfg)
}

// UpdateThrottleConfig hot-swaps the throttling policy.
func (d *Dispatcher) UpdateThrottleConfig(cfg throttle.Config) error {
	return d.throttles.UpdateConfig(cfg)
}

// UpdateRetryConfig hot-swaps the retry policy.
func (d *Dispatcher) UpdateRetryConfig(cfg backoff.Config) error {
	return d.tracker.UpdateRetryConfig(cfg)
}
