package delivery_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/formwatch/dispatchkit/pkg/delivery"
)

func TestStatus_Terminal(t *testing.T) {
	t.Parallel()

	terminal := []delivery.Status{
		delivery.StatusDelivered,
		delivery.StatusBounced,
		delivery.StatusCancelled,
		delivery.StatusExpired,
	}
	for _, s := range terminal {
		assert.True(t, s.Terminal(), "status %s", s)
	}

	open := []delivery.Status{
		delivery.StatusPending,
		delivery.StatusSending,
		delivery.StatusFailed,
		delivery.StatusRetrying,
	}
	for _, s := range open {
		assert.False(t, s.Terminal(), "status %s", s)
	}
}

func TestStatus_CanTransitionTo(t *testing.T) {
	t.Parallel()

	t.Run("allowed paths", func(t *testing.T) {
		allowed := [][2]delivery.Status{
			{delivery.StatusPending, delivery.StatusSending},
			{delivery.StatusPending, delivery.StatusCancelled},
			{delivery.StatusPending, delivery.StatusExpired},
			{delivery.StatusSending, delivery.StatusDelivered},
			{delivery.StatusSending, delivery.StatusFailed},
			{delivery.StatusSending, delivery.StatusBounced},
			{delivery.StatusSending, delivery.StatusCancelled},
			{delivery.StatusFailed, delivery.StatusRetrying},
			{delivery.StatusFailed, delivery.StatusExpired},
			{delivery.StatusRetrying, delivery.StatusSending},
			{delivery.StatusRetrying, delivery.StatusCancelled},
			{delivery.StatusRetrying, delivery.StatusExpired},
		}
		for _, pair := range allowed {
			assert.True(t, pair[0].CanTransitionTo(pair[1]), "%s -> %s", pair[0], pair[1])
		}
	})

	t.Run("terminal statuses allow nothing", func(t *testing.T) {
		for _, from := range []delivery.Status{
			delivery.StatusDelivered,
			delivery.StatusBounced,
			delivery.StatusCancelled,
			delivery.StatusExpired,
		} {
			for _, to := range []delivery.Status{
				delivery.StatusPending,
				delivery.StatusSending,
				delivery.StatusRetrying,
				delivery.StatusFailed,
			} {
				assert.False(t, from.CanTransitionTo(to), "%s -> %s", from, to)
			}
		}
	})

	t.Run("skipping sending is not allowed", func(t *testing.T) {
		assert.False(t, delivery.StatusPending.CanTransitionTo(delivery.StatusDelivered))
		assert.False(t, delivery.StatusRetrying.CanTransitionTo(delivery.StatusDelivered))
		assert.False(t, delivery.StatusFailed.CanTransitionTo(delivery.StatusSending))
	})
}

func TestStatus_Valid(t *testing.T) {
	t.Parallel()

	assert.True(t, delivery.StatusPending.Valid())
	assert.True(t, delivery.StatusExpired.Valid())
	assert.False(t, delivery.Status("queued").Valid())
}
