package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/formwatch/dispatchkit/pkg/backoff"
	"github.com/formwatch/dispatchkit/pkg/logger"
	"github.com/formwatch/dispatchkit/pkg/notification"
)

// DefaultMaxAge is how long a non-terminal record may linger before the
// cleanup sweep expires it.
const DefaultMaxAge = 24 * time.Hour

// Tracker drives send attempts through the delivery status state machine,
// applying the retry policy on transient failures and persisting every
// state change through the Store.
type Tracker struct {
	store  Store
	sender ChannelSender
	logger *slog.Logger
	now    func() time.Time

	cfgMu    sync.RWMutex
	retryCfg backoff.Config
	strategy backoff.Strategy
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithTrackerLogger sets the logger for the Tracker.
func WithTrackerLogger(log *slog.Logger) TrackerOption {
	return func(t *Tracker) {
		if log != nil {
			t.logger = log
		}
	}
}

// WithTrackerNowFunc overrides the clock, used by tests to exercise
// expiry without sleeping.
func WithTrackerNowFunc(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTracker creates a delivery tracker.
func NewTracker(store Store, sender ChannelSender, retryCfg backoff.Config, opts ...TrackerOption) (*Tracker, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if sender == nil {
		return nil, ErrNilSender
	}

	strategy, err := backoff.New(retryCfg)
	if err != nil {
		return nil, err
	}

	t := &Tracker{
		store:    store,
		sender:   sender,
		retryCfg: retryCfg,
		strategy: strategy,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Deliver sends one logical notification (single or consolidated batch),
// retrying transient failures per the active retry policy. It blocks until
// the record reaches a resting state: Delivered, Bounced, Failed with
// retries exhausted, or Cancelled.
func (t *Tracker) Deliver(ctx context.Context, req notification.Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	cfg, strategy := t.retryPolicy()

	rec := Record{
		ID:              uuid.NewString(),
		UserID:          req.UserID,
		Channel:         req.Channel,
		Severity:        req.Severity,
		Recipient:       req.Recipient,
		Subject:         req.Subject,
		Body:            req.Body,
		RelatedChangeID: req.RelatedChangeID,
		Status:          StatusPending,
		MaxRetries:      cfg.MaxRetries,
		SentAt:          t.now(),
	}
	if err := t.store.Create(ctx, rec); err != nil {
		return Result{}, err
	}

	attempts := 0
	for {
		attempts++

		if err := t.advance(ctx, &rec, StatusSending); err != nil {
			return Result{}, err
		}

		start := t.now()
		sendRes, sendErr := t.sender.Send(ctx, req)
		elapsed := t.now().Sub(start)
		if sendRes.DeliveryTime > 0 {
			elapsed = sendRes.DeliveryTime
		}

		if sendErr == nil {
			now := t.now()
			rec.DeliveryTime = elapsed
			rec.ResponseData = sendRes.ResponseData
			rec.ErrorMessage = ""
			rec.NextRetryAt = nil
			rec.DeliveredAt = &now
			if err := t.advance(ctx, &rec, StatusDelivered); err != nil {
				return Result{}, err
			}

			t.logger.LogAttrs(ctx, slog.LevelInfo, "notification delivered",
				logger.NotificationID(rec.ID),
				logger.UserID(rec.UserID),
				logger.Channel(rec.Channel),
				slog.Int("attempts", attempts),
				slog.Duration("delivery_time", elapsed),
			)
			return t.result(rec, attempts), nil
		}

		rec.ErrorMessage = sendErr.Error()

		if errors.Is(sendErr, ErrPermanent) {
			if err := t.advance(ctx, &rec, StatusBounced); err != nil {
				return Result{}, err
			}
			t.logger.LogAttrs(ctx, slog.LevelWarn, "notification bounced",
				logger.NotificationID(rec.ID),
				logger.Channel(rec.Channel),
				logger.Error(sendErr),
			)
			return t.result(rec, attempts), nil
		}

		if err := t.advance(ctx, &rec, StatusFailed); err != nil {
			return Result{}, err
		}

		if !rec.RetriesLeft() {
			t.logger.LogAttrs(ctx, slog.LevelError, "notification failed, retries exhausted",
				logger.NotificationID(rec.ID),
				logger.UserID(rec.UserID),
				logger.Channel(rec.Channel),
				slog.Int("attempts", attempts),
				logger.Error(sendErr),
			)
			return t.result(rec, attempts), nil
		}

		rec.RetryCount++
		delay := strategy.NextInterval(rec.RetryCount)
		nextAt := t.now().Add(delay)
		rec.NextRetryAt = &nextAt
		if err := t.advance(ctx, &rec, StatusRetrying); err != nil {
			return Result{}, err
		}

		t.logger.LogAttrs(ctx, slog.LevelWarn, "notification retry scheduled",
			logger.NotificationID(rec.ID),
			slog.Int("retry", rec.RetryCount),
			slog.Int("max_retries", rec.MaxRetries),
			slog.Duration("delay", delay),
			logger.Error(sendErr),
		)

		if err := t.wait(ctx, delay); err != nil {
			// Caller gave up while we were waiting; record the cancel.
			rec.NextRetryAt = nil
			if terr := t.advance(ctx, &rec, StatusCancelled); terr != nil {
				return Result{}, terr
			}
			return t.result(rec, attempts), err
		}

		// An admin may have cancelled or expired the record during the
		// delay; re-read before attempting again.
		fresh, err := t.store.Get(ctx, rec.ID)
		if err != nil {
			return Result{}, err
		}
		if fresh.Status != StatusRetrying {
			return t.result(*fresh, attempts), nil
		}
		rec = *fresh
		rec.NextRetryAt = nil
	}
}

// CancelRetry stops further attempts for a non-terminal record.
func (t *Tracker) CancelRetry(ctx context.Context, id string) error {
	rec, err := t.store.Get(ctx, id)
	if err != nil {
		return err
	}

	if rec.Status.Terminal() {
		return fmt.Errorf("%w: record %s is %s", ErrInvalidTransition, id, rec.Status)
	}
	if !rec.Status.CanTransitionTo(StatusCancelled) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.Status, StatusCancelled)
	}

	rec.Status = StatusCancelled
	rec.NextRetryAt = nil
	return t.store.Update(ctx, *rec)
}

// PendingRetries returns records waiting on a retry attempt.
func (t *Tracker) PendingRetries(ctx context.Context) ([]Record, error) {
	return t.store.List(ctx, ListOptions{
		Statuses: []Status{StatusRetrying},
	})
}

// CleanupExpired forces every non-terminal record older than maxAge to
// Expired and returns how many were touched. Zero maxAge uses DefaultMaxAge.
func (t *Tracker) CleanupExpired(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	records, err := t.store.List(ctx, ListOptions{
		Statuses: []Status{StatusPending, StatusFailed, StatusRetrying},
	})
	if err != nil {
		return 0, err
	}

	now := t.now()
	expired := 0
	for _, rec := range records {
		if !rec.AgedPast(now, maxAge) {
			continue
		}
		if err := rec.transition(StatusExpired); err != nil {
			continue
		}
		rec.NextRetryAt = nil
		if err := t.store.Update(ctx, rec); err != nil {
			return expired, err
		}
		expired++
	}

	if expired > 0 {
		t.logger.LogAttrs(ctx, slog.LevelInfo, "expired stale delivery records",
			slog.Int("expired", expired),
			slog.Duration("max_age", maxAge),
		)
	}
	return expired, nil
}

// Get returns one delivery record.
func (t *Tracker) Get(ctx context.Context, id string) (*Record, error) {
	return t.store.Get(ctx, id)
}

// RetryConfig returns the active retry policy snapshot.
func (t *Tracker) RetryConfig() backoff.Config {
	t.cfgMu.RLock()
	defer t.cfgMu.RUnlock()
	return t.retryCfg
}

// UpdateRetryConfig validates and atomically swaps the retry policy.
// The previous policy is retained on validation failure.
func (t *Tracker) UpdateRetryConfig(cfg backoff.Config) error {
	strategy, err := backoff.New(cfg)
	if err != nil {
		return err
	}

	t.cfgMu.Lock()
	t.retryCfg = cfg
	t.strategy = strategy
	t.cfgMu.Unlock()
	return nil
}

func (t *Tracker) retryPolicy() (backoff.Config, backoff.Strategy) {
	t.cfgMu.RLock()
	defer t.cfgMu.RUnlock()
	return t.retryCfg, t.strategy
}

// advance applies a validated status transition and persists it.
func (t *Tracker) advance(ctx context.Context, rec *Record, next Status) error {
	if err := rec.transition(next); err != nil {
		return err
	}
	return t.store.Update(ctx, *rec)
}

// wait sleeps for the retry delay, aborting on context cancellation.
func (t *Tracker) wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (t *Tracker) result(rec Record, attempts int) Result {
	return Result{
		RecordID:     rec.ID,
		Success:      rec.Status == StatusDelivered,
		Status:       rec.Status,
		Attempts:     attempts,
		ErrorMessage: rec.ErrorMessage,
		DeliveryTime: rec.DeliveryTime,
		ResponseData: rec.ResponseData,
	}
}
