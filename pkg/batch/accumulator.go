package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/formwatch/dispatchkit/pkg/logger"
	"github.com/formwatch/dispatchkit/pkg/notification"
)

// Flusher receives the consolidated request when a batch flushes.
// The dispatch layer implements it on top of the delivery tracker.
type Flusher interface {
	FlushBatch(ctx context.Context, consolidated notification.Request) error
}

// Outcome is the routing decision for one added request.
type Outcome string

const (
	// OutcomeDisabled means batching is off; the caller sends immediately.
	OutcomeDisabled Outcome = "disabled"
	// OutcomeImmediate means the request bypasses batching entirely.
	OutcomeImmediate Outcome = "immediate"
	// OutcomeBatched means the request joined a live batch.
	OutcomeBatched Outcome = "batched"
)

// Decision is the result of Add.
type Decision struct {
	Outcome Outcome `json:"outcome"`
	BatchID string  `json:"batch_id,omitempty"`
}

// Accumulator groups related requests into pending batches keyed by the
// configured grouping fields and flushes them on size or age triggers.
type Accumulator struct {
	flusher Flusher
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex // guards batches; flush runs outside it
	batches map[string]*Batch

	cfgMu sync.RWMutex
	cfg   Config
}

// Option configures an Accumulator.
type Option func(*Accumulator)

// WithLogger sets the logger for the Accumulator.
func WithLogger(log *slog.Logger) Option {
	return func(a *Accumulator) {
		if log != nil {
			a.logger = log
		}
	}
}

// WithNowFunc overrides the clock, used by tests to exercise the age
// trigger without sleeping.
func WithNowFunc(now func() time.Time) Option {
	return func(a *Accumulator) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAccumulator creates a batch accumulator that hands flushed batches to
// the given flusher.
func NewAccumulator(flusher Flusher, cfg Config, opts ...Option) (*Accumulator, error) {
	if flusher == nil {
		return nil, ErrNilFlusher
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &Accumulator{
		flusher: flusher,
		cfg:     cfg,
		batches: make(map[string]*Batch),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Add routes one request: batching disabled, immediate bypass, or append
// to the live batch for its key. The size trigger is checked right after
// the append; the age trigger belongs to SweepDue.
func (a *Accumulator) Add(ctx context.Context, req notification.Request) (Decision, error) {
	cfg := a.Config()

	if !cfg.Enabled {
		return Decision{Outcome: OutcomeDisabled}, nil
	}

	if req.ExemptFromBatch || (cfg.PriorityOverride && req.Severity.IsUrgent()) {
		return Decision{Outcome: OutcomeImmediate}, nil
	}

	key := groupKey(cfg, req)

	a.mu.Lock()
	b, ok := a.batches[key]
	if !ok {
		b = &Batch{
			ID:        uuid.NewString(),
			Key:       key,
			UserID:    req.UserID,
			Channel:   req.Channel,
			Severity:  req.Severity,
			CreatedAt: a.now(),
			Status:    StatusPending,
		}
		a.batches[key] = b
	}

	b.Notifications = append(b.Notifications, req)
	if w := req.Severity.Weight(); w > b.PriorityScore {
		b.PriorityScore = w
	}

	decision := Decision{Outcome: OutcomeBatched, BatchID: b.ID}

	var due *Batch
	if b.Size() >= cfg.MaxBatchSize {
		// Remove inside the critical section so no concurrent sweep or
		// admin operation can flush the same batch twice.
		delete(a.batches, key)
		b.Status = StatusProcessing
		due = b
	}
	a.mu.Unlock()

	if due != nil {
		a.flush(ctx, due, "size")
	}

	return decision, nil
}

// SweepDue flushes every batch whose age exceeded the configured delay.
// The dispatcher runs this on its minute sweep. Returns the number of
// batches flushed.
func (a *Accumulator) SweepDue(ctx context.Context) int {
	cfg := a.Config()
	now := a.now()

	a.mu.Lock()
	var due []*Batch
	for key, b := range a.batches {
		if b.Age(now) >= cfg.MaxBatchDelay {
			delete(a.batches, key)
			b.Status = StatusProcessing
			due = append(due, b)
		}
	}
	a.mu.Unlock()

	for _, b := range due {
		a.flush(ctx, b, "age")
	}
	return len(due)
}

// SendNow forces an immediate flush outside the normal triggers.
func (a *Accumulator) SendNow(ctx context.Context, batchID string) error {
	b, err := a.takeByID(batchID)
	if err != nil {
		return err
	}
	a.flush(ctx, b, "manual")
	return nil
}

// Cancel discards a batch without delivering its notifications.
func (a *Accumulator) Cancel(ctx context.Context, batchID string) error {
	b, err := a.takeByID(batchID)
	if err != nil {
		return err
	}

	b.Status = StatusCancelled
	a.logger.LogAttrs(ctx, slog.LevelInfo, "batch cancelled",
		logger.BatchID(b.ID),
		logger.UserID(b.UserID),
		slog.Int("notifications", b.Size()),
	)
	return nil
}

// takeByID atomically removes a live batch from the registry.
func (a *Accumulator) takeByID(batchID string) (*Batch, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for key, b := range a.batches {
		if b.ID == batchID {
			delete(a.batches, key)
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
}

// Get returns a snapshot of a live batch.
func (a *Accumulator) Get(batchID string) (Batch, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, b := range a.batches {
		if b.ID == batchID {
			return b.copy(), nil
		}
	}
	return Batch{}, fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
}

// Active returns snapshots of all live batches, oldest first.
func (a *Accumulator) Active() []Batch {
	a.mu.Lock()
	out := make([]Batch, 0, len(a.batches))
	for _, b := range a.batches {
		out = append(out, b.copy())
	}
	a.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// ActiveCount returns how many batches are accumulating.
func (a *Accumulator) ActiveCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.batches)
}

// Config returns the active batching config snapshot.
func (a *Accumulator) Config() Config {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.cfg
}

// UpdateConfig validates and atomically swaps the active config.
// The previous config is retained on validation failure.
func (a *Accumulator) UpdateConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfgMu.Lock()
	a.cfg = cfg
	a.cfgMu.Unlock()
	return nil
}

// flush hands the consolidated request to the flusher. The batch has
// already left the registry; a failed flush marks it Failed and drops it,
// retries happen at the delivery-record level.
func (a *Accumulator) flush(ctx context.Context, b *Batch, trigger string) {
	consolidated := Consolidate(b)

	if err := a.flusher.FlushBatch(ctx, consolidated); err != nil {
		b.Status = StatusFailed
		a.logger.LogAttrs(ctx, slog.LevelError, "batch flush failed",
			logger.BatchID(b.ID),
			logger.UserID(b.UserID),
			slog.String("trigger", trigger),
			logger.Error(err),
		)
		return
	}

	b.Status = StatusSent
	a.logger.LogAttrs(ctx, slog.LevelInfo, "batch flushed",
		logger.BatchID(b.ID),
		logger.UserID(b.UserID),
		logger.Channel(b.Channel),
		slog.String("trigger", trigger),
		slog.Int("notifications", b.Size()),
	)
}

// groupKey concatenates the enabled grouping fields. With every flag off
// all requests share one key.
func groupKey(cfg Config, req notification.Request) string {
	parts := make([]string, 0, 3)
	if cfg.GroupByUser {
		parts = append(parts, req.UserID)
	}
	if cfg.GroupByChannel {
		parts = append(parts, string(req.Channel))
	}
	if cfg.GroupBySeverity {
		parts = append(parts, string(req.Severity))
	}
	if len(parts) == 0 {
		return "all"
	}
	return strings.Join(parts, ":")
}
