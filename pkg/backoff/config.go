package backoff

import (
	"fmt"
	"time"
)

// StrategyType identifies one of the supported retry strategies.
type StrategyType string

const (
	StrategyImmediate   StrategyType = "immediate"
	StrategyFixed       StrategyType = "fixed"
	StrategyLinear      StrategyType = "linear"
	StrategyExponential StrategyType = "exponential"
)

// Config is the immutable retry policy snapshot.
// It is hot-swappable as a whole; Validate must pass before a swap.
type Config struct {
	Strategy     StrategyType  `json:"strategy" env:"RETRY_STRATEGY" envDefault:"exponential"`
	MaxRetries   int           `json:"max_retries" env:"RETRY_MAX_RETRIES" envDefault:"3"`
	InitialDelay time.Duration `json:"initial_delay" env:"RETRY_INITIAL_DELAY" envDefault:"60s"`
	MaxDelay     time.Duration `json:"max_delay" env:"RETRY_MAX_DELAY" envDefault:"1h"`
	Multiplier   float64       `json:"multiplier" env:"RETRY_MULTIPLIER" envDefault:"2"`
}

// Validate checks the config for values that would break the retry loop.
func (c Config) Validate() error {
	switch c.Strategy {
	case StrategyImmediate, StrategyFixed, StrategyLinear, StrategyExponential:
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, c.Strategy)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must not be negative, got %d", ErrInvalidConfig, c.MaxRetries)
	}
	if c.InitialDelay < 0 {
		return fmt.Errorf("%w: initial delay must not be negative, got %v", ErrInvalidConfig, c.InitialDelay)
	}
	if c.MaxDelay < 0 {
		return fmt.Errorf("%w: max delay must not be negative, got %v", ErrInvalidConfig, c.MaxDelay)
	}
	if c.Multiplier < 0 {
		return fmt.Errorf("%w: multiplier must not be negative, got %v", ErrInvalidConfig, c.Multiplier)
	}
	return nil
}

// New builds a Strategy from the config.
func New(cfg Config) (Strategy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Strategy {
	case StrategyImmediate:
		return Immediate{}, nil
	case StrategyFixed:
		return Fixed{Interval: cfg.InitialDelay}, nil
	case StrategyLinear:
		return Linear{Interval: cfg.InitialDelay, MaxInterval: cfg.MaxDelay}, nil
	case StrategyExponential:
		return Exponential{
			InitialInterval: cfg.InitialDelay,
			MaxInterval:     cfg.MaxDelay,
			Multiplier:      cfg.Multiplier,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, cfg.Strategy)
	}
}
