package dispatch

import (
	"fmt"
	"time"
)

// Config controls the dispatcher's background sweeps.
type Config struct {
	// BatchSweepInterval is how often aged batches are flushed.
	BatchSweepInterval time.Duration `env:"DISPATCH_BATCH_SWEEP_INTERVAL" envDefault:"60s"`
	// ThrottleCleanupInterval is how often stale throttle counters are swept.
	ThrottleCleanupInterval time.Duration `env:"DISPATCH_THROTTLE_CLEANUP_INTERVAL" envDefault:"1h"`
	// DeliveryMaxAge bounds how long a non-terminal delivery record may
	// linger before the cleanup sweep expires it.
	DeliveryMaxAge time.Duration `env:"DISPATCH_DELIVERY_MAX_AGE" envDefault:"24h"`
}

// DefaultConfig returns the standard sweep cadence.
func DefaultConfig() Config {
	return Config{
		BatchSweepInterval:      time.Minute,
		ThrottleCleanupInterval: time.Hour,
		DeliveryMaxAge:          24 * time.Hour,
	}
}

// Validate checks the sweep intervals.
func (c Config) Validate() error {
	if c.BatchSweepInterval <= 0 {
		return fmt.Errorf("%w: BatchSweepInterval must be positive", ErrInvalidConfig)
	}
	if c.ThrottleCleanupInterval <= 0 {
		return fmt.Errorf("%w: ThrottleCleanupInterval must be positive", ErrInvalidConfig)
	}
	if c.DeliveryMaxAge <= 0 {
		return fmt.Errorf("%w: DeliveryMaxAge must be positive", ErrInvalidConfig)
	}
	return nil
}
