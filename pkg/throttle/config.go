package throttle

import (
	"fmt"
	"time"
)

// Config is the immutable throttle policy snapshot.
// It is hot-swappable as a whole; Validate must pass before a swap.
type Config struct {
	Enabled          bool          `json:"enabled" env:"THROTTLE_ENABLED" envDefault:"true"`
	RateLimitPerHour int           `json:"rate_limit_per_hour" env:"THROTTLE_RATE_LIMIT_PER_HOUR" envDefault:"10"`
	RateLimitPerDay  int           `json:"rate_limit_per_day" env:"THROTTLE_RATE_LIMIT_PER_DAY" envDefault:"50"`
	Cooldown         time.Duration `json:"cooldown" env:"THROTTLE_COOLDOWN" envDefault:"5m"`

	// BurstLimit of 0 keeps the burst counter observational: the window is
	// tracked and reset but never denies. A positive value wires burst
	// denial into the gate sequence.
	BurstLimit  int           `json:"burst_limit" env:"THROTTLE_BURST_LIMIT" envDefault:"0"`
	BurstWindow time.Duration `json:"burst_window" env:"THROTTLE_BURST_WINDOW" envDefault:"10m"`

	ExemptHighPriority     bool `json:"exempt_high_priority" env:"THROTTLE_EXEMPT_HIGH_PRIORITY" envDefault:"true"`
	ExemptCriticalSeverity bool `json:"exempt_critical_severity" env:"THROTTLE_EXEMPT_CRITICAL_SEVERITY" envDefault:"true"`
}

// Validate checks the config for values that would break the gate sequence.
func (c Config) Validate() error {
	if c.RateLimitPerHour <= 0 {
		return fmt.Errorf("%w: hourly rate limit must be positive, got %d", ErrInvalidConfig, c.RateLimitPerHour)
	}
	if c.RateLimitPerDay <= 0 {
		return fmt.Errorf("%w: daily rate limit must be positive, got %d", ErrInvalidConfig, c.RateLimitPerDay)
	}
	if c.Cooldown < 0 {
		return fmt.Errorf("%w: cooldown must not be negative, got %v", ErrInvalidConfig, c.Cooldown)
	}
	if c.BurstLimit < 0 {
		return fmt.Errorf("%w: burst limit must not be negative, got %d", ErrInvalidConfig, c.BurstLimit)
	}
	if c.BurstWindow <= 0 {
		return fmt.Errorf("%w: burst window must be positive, got %v", ErrInvalidConfig, c.BurstWindow)
	}
	return nil
}
