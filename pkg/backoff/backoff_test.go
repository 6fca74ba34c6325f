package backoff_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formwatch/dispatchkit/pkg/backoff"
)

func TestImmediate_NextInterval(t *testing.T) {
	t.Parallel()

	s := backoff.Immediate{}
	assert.Equal(t, time.Duration(0), s.NextInterval(1))
	assert.Equal(t, time.Duration(0), s.NextInterval(5))
}

func TestFixed_NextInterval(t *testing.T) {
	t.Parallel()

	s := backoff.Fixed{Interval: 30 * time.Second}

	t.Run("same delay for every attempt", func(t *testing.T) {
		assert.Equal(t, 30*time.Second, s.NextInterval(1))
		assert.Equal(t, 30*time.Second, s.NextInterval(2))
		assert.Equal(t, 30*time.Second, s.NextInterval(10))
	})

	t.Run("zero for non-positive attempt", func(t *testing.T) {
		assert.Equal(t, time.Duration(0), s.NextInterval(0))
		assert.Equal(t, time.Duration(0), s.NextInterval(-1))
	})
}

func TestLinear_NextInterval(t *testing.T) {
	t.Parallel()

	t.Run("grows with attempt number", func(t *testing.T) {
		s := backoff.Linear{Interval: 10 * time.Second}
		assert.Equal(t, 10*time.Second, s.NextInterval(1))
		assert.Equal(t, 20*time.Second, s.NextInterval(2))
		assert.Equal(t, 30*time.Second, s.NextInterval(3))
	})

	t.Run("caps at max interval", func(t *testing.T) {
		s := backoff.Linear{Interval: 10 * time.Second, MaxInterval: 25 * time.Second}
		assert.Equal(t, 20*time.Second, s.NextInterval(2))
		assert.Equal(t, 25*time.Second, s.NextInterval(3))
		assert.Equal(t, 25*time.Second, s.NextInterval(100))
	})
}

func TestExponential_NextInterval(t *testing.T) {
	t.Parallel()

	t.Run("doubles each attempt with multiplier 2", func(t *testing.T) {
		s := backoff.Exponential{InitialInterval: time.Second, Multiplier: 2}
		assert.Equal(t, time.Second, s.NextInterval(1))
		assert.Equal(t, 2*time.Second, s.NextInterval(2))
		assert.Equal(t, 4*time.Second, s.NextInterval(3))
		assert.Equal(t, 8*time.Second, s.NextInterval(4))
	})

	t.Run("caps at max interval", func(t *testing.T) {
		s := backoff.Exponential{
			InitialInterval: 1000 * time.Second,
			MaxInterval:     100 * time.Second,
			Multiplier:      2,
		}
		assert.Equal(t, 100*time.Second, s.NextInterval(1))
		assert.Equal(t, 100*time.Second, s.NextInterval(5))
	})

	t.Run("defaults multiplier to 2", func(t *testing.T) {
		s := backoff.Exponential{InitialInterval: time.Second}
		assert.Equal(t, 4*time.Second, s.NextInterval(3))
	})

	t.Run("jitter stays within factor bounds", func(t *testing.T) {
		s := backoff.Exponential{
			InitialInterval: 10 * time.Second,
			Multiplier:      2,
			JitterFactor:    0.2,
		}
		for _i := 0; _i < 50; _i++ {
			d := s.NextInterval(1)
			assert.GreaterOrEqual(t, d, 8*time.Second)
			assert.LessOrEqual(t, d, 12*time.Second)
		}
	})
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	valid := backoff.Config{
		Strategy:     backoff.StrategyExponential,
		MaxRetries:   3,
		InitialDelay: time.Minute,
		MaxDelay:     time.Hour,
		Multiplier:   2,
	}

	t.Run("accepts valid config", func(t *testing.T) {
		assert.NoError(t, valid.Validate())
	})

	t.Run("rejects unknown strategy", func(t *testing.T) {
		cfg := valid
		cfg.Strategy = "fibonacci"
		assert.ErrorIs(t, cfg.Validate(), backoff.ErrInvalidConfig)
	})

	t.Run("rejects negative max retries", func(t *testing.T) {
		cfg := valid
		cfg.MaxRetries = -1
		assert.ErrorIs(t, cfg.Validate(), backoff.ErrInvalidConfig)
	})

	t.Run("rejects negative delays", func(t *testing.T) {
		cfg := valid
		cfg.InitialDelay = -time.Second
		assert.ErrorIs(t, cfg.Validate(), backoff.ErrInvalidConfig)
	})
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("builds each strategy type", func(t *testing.T) {
		cases := map[backoff.StrategyType]time.Duration{
			backoff.StrategyImmediate:   0,
			backoff.StrategyFixed:       time.Minute,
			backoff.StrategyLinear:      2 * time.Minute,
			backoff.StrategyExponential: 2 * time.Minute,
		}
		for strategyType, want := range cases {
			s, err := backoff.New(backoff.Config{
				Strategy:     strategyType,
				MaxRetries:   3,
				InitialDelay: time.Minute,
				MaxDelay:     time.Hour,
				Multiplier:   2,
			})
			require.NoError(t, err)
			assert.Equal(t, want, s.NextInterval(2), "strategy %s", strategyType)
		}
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		_, err := backoff.New(backoff.Config{Strategy: "unknown"})
		assert.ErrorIs(t, err, backoff.ErrInvalidConfig)
	})
}
