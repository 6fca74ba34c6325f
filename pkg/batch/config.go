package batch

import (
	"fmt"
	"time"
)

// Config is the immutable batching policy snapshot.
// It is hot-swappable as a whole; Validate must pass before a swap.
type Config struct {
	Enabled       bool          `json:"enabled" env:"BATCH_ENABLED" envDefault:"true"`
	MaxBatchSize  int           `json:"max_batch_size" env:"BATCH_MAX_SIZE" envDefault:"5"`
	MaxBatchDelay time.Duration `json:"max_batch_delay" env:"BATCH_MAX_DELAY" envDefault:"30m"`

	// PriorityOverride sends high and critical severity requests
	// immediately instead of batching them.
	PriorityOverride bool `json:"priority_override" env:"BATCH_PRIORITY_OVERRIDE" envDefault:"true"`

	GroupByUser     bool `json:"group_by_user" env:"BATCH_GROUP_BY_USER" envDefault:"true"`
	GroupByChannel  bool `json:"group_by_channel" env:"BATCH_GROUP_BY_CHANNEL" envDefault:"true"`
	GroupBySeverity bool `json:"group_by_severity" env:"BATCH_GROUP_BY_SEVERITY" envDefault:"true"`
}

// Validate checks the config for values that would break flush triggers.
func (c Config) Validate() error {
	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("%w: max batch size must be positive, got %d", ErrInvalidConfig, c.MaxBatchSize)
	}
	if c.MaxBatchDelay <= 0 {
		return fmt.Errorf("%w: max batch delay must be positive, got %v", ErrInvalidConfig, c.MaxBatchDelay)
	}
	return nil
}
