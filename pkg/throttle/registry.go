package throttle

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/formwatch/dispatchkit/pkg/logger"
	"github.com/formwatch/dispatchkit/pkg/notification"
)

// Registry decides whether a notification for a (user, channel) pair may be
// sent now. Checks short-circuit through the gate sequence: global enable,
// severity exemptions, burst window, hourly/daily limits, cooldown.
// Counters are only mutated on allow.
type Registry struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time

	mu  sync.RWMutex // guards cfg hot swap
	cfg Config
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger for the Registry.
func WithLogger(log *slog.Logger) Option {
	return func(r *Registry) {
		if log != nil {
			r.logger = log
		}
	}
}

// WithNowFunc overrides the clock, used by tests to exercise rolling
// windows without sleeping.
func WithNowFunc(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRegistry creates a throttle registry backed by the given store.
func NewRegistry(store Store, cfg Config, opts ...Option) (*Registry, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Registry{
		store:  store,
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// CheckAndRecord runs the gate sequence for one request and records the
// send when allowed. Denial is a policy decision, not an error.
func (r *Registry) CheckAndRecord(ctx context.Context, userID string, channel notification.Channel, severity notification.Severity) (Decision, error) {
	cfg := r.Config()

	if !cfg.Enabled {
		return Decision{Allowed: true}, nil
	}

	// Exempt requests bypass the gates entirely and never touch counters.
	if severity == notification.SeverityCritical && cfg.ExemptCriticalSeverity {
		return Decision{Allowed: true}, nil
	}
	if severity == notification.SeverityHigh && cfg.ExemptHighPriority {
		return Decision{Allowed: true}, nil
	}

	decision, err := r.store.CheckAndRecord(ctx, Key(userID, channel), r.now(), cfg)
	if err != nil {
		return Decision{}, err
	}

	if !decision.Allowed {
		r.logger.LogAttrs(ctx, slog.LevelDebug, "notification throttled",
			logger.UserID(userID),
			logger.Channel(channel),
			slog.String("reason", decision.Reason),
		)
	}

	return decision, nil
}

// Reset clears throttle state for a user. With no channels given, every
// channel counter for the user is removed.
func (r *Registry) Reset(ctx context.Context, userID string, channels ...notification.Channel) error {
	if len(channels) > 0 {
		for _, ch := range channels {
			if err := r.store.Reset(ctx, Key(userID, ch)); err != nil {
				return err
			}
		}
		return nil
	}

	snapshot, err := r.store.Snapshot(ctx)
	if err != nil {
		return err
	}
	for key := range snapshot {
		if strings.HasPrefix(key, userID+"/") {
			if err := r.store.Reset(ctx, key); err != nil {
				return err
			}
		}
	}
	return nil
}

// CounterStat is one counter snapshot exposed through metrics.
type CounterStat struct {
	UserID  string               `json:"user_id"`
	Channel notification.Channel `json:"channel"`
	Counter Counter              `json:"counter"`
}

// Metrics returns counter snapshots, optionally filtered by user.
func (r *Registry) Metrics(ctx context.Context, userID string) ([]CounterStat, error) {
	snapshot, err := r.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	stats := make([]CounterStat, 0, len(snapshot))
	for key, c := range snapshot {
		uid, ch := SplitKey(key)
		if userID != "" && uid != userID {
			continue
		}
		stats = append(stats, CounterStat{UserID: uid, Channel: ch, Counter: c})
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].UserID != stats[j].UserID {
			return stats[i].UserID < stats[j].UserID
		}
		return stats[i].Channel < stats[j].Channel
	})
	return stats, nil
}

// ActiveCounters returns how many (user, channel) counters are live.
func (r *Registry) ActiveCounters(ctx context.Context) (int, error) {
	snapshot, err := r.store.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	return len(snapshot), nil
}

// CleanupStale zeroes counts whose windows have elapsed. The dispatcher
// runs this on its hourly sweep.
func (r *Registry) CleanupStale(ctx context.Context) (int, error) {
	touched, err := r.store.CleanupStale(ctx, r.now(), r.Config())
	if err != nil {
		return 0, err
	}
	if touched > 0 {
		r.logger.LogAttrs(ctx, slog.LevelDebug, "throttle counters swept",
			slog.Int("touched", touched),
		)
	}
	return touched, nil
}

// Config returns the active throttle config snapshot.
func (r *Registry) Config() Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}

// UpdateConfig validates and atomically swaps the active config.
// The previous config is retained on validation failure.
func (r *Registry) UpdateConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	r.cfg = cfg
	r.mu.Unlock()
	return nil
}
