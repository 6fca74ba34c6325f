package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formwatch/dispatchkit/pkg/config"
)

type testEnv struct {
	Name    string        `env:"LOADER_TEST_NAME" envDefault:"fallback"`
	Limit   int           `env:"LOADER_TEST_LIMIT" envDefault:"10"`
	Timeout time.Duration `env:"LOADER_TEST_TIMEOUT" envDefault:"5s"`
}

func TestLoad(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		var cfg testEnv
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "fallback", cfg.Name)
		assert.Equal(t, 10, cfg.Limit)
		assert.Equal(t, 5*time.Second, cfg.Timeout)
	})

	t.Run("reads the environment", func(t *testing.T) {
		t.Setenv("LOADER_TEST_NAME", "from-env")
		t.Setenv("LOADER_TEST_LIMIT", "42")

		var cfg testEnv
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "from-env", cfg.Name)
		assert.Equal(t, 42, cfg.Limit)
	})

	t.Run("rejects unparseable values", func(t *testing.T) {
		t.Setenv("LOADER_TEST_LIMIT", "not-a-number")

		var cfg testEnv
		assert.ErrorIs(t, config.Load(&cfg), config.ErrParsingConfig)
	})

	t.Run("rejects a nil target", func(t *testing.T) {
		assert.ErrorIs(t, config.Load[testEnv](nil), config.ErrNilPointer)
	})
}

func TestMustLoad(t *testing.T) {
	t.Run("panics on failure", func(t *testing.T) {
		t.Setenv("LOADER_TEST_LIMIT", "boom")
		assert.Panics(t, func() {
			var cfg testEnv
			config.MustLoad(&cfg)
		})
	})
}
