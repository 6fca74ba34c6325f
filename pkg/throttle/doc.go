// Package throttle gates notification frequency per (user, channel) pair
// through hourly and daily caps, a cooldown between sends, and a burst
// window that can optionally deny.
//
// The Registry applies policy; a Store persists the counters. Two stores
// ship with the package: MemoryStore for the default in-process setup and
// RedisStore when counters should survive restarts.
//
//	store := throttle.NewMemoryStore()
//	registry, err := throttle.NewRegistry(store, throttle.Config{
//	    Enabled:                true,
//	    RateLimitPerHour:       10,
//	    RateLimitPerDay:        50,
//	    Cooldown:               5 * time.Minute,
//	    BurstWindow:            10 * time.Minute,
//	    ExemptCriticalSeverity: true,
//	})
//
//	decision, err := registry.CheckAndRecord(ctx, "user123", notification.ChannelEmail, notification.SeverityMedium)
//	if !decision.Allowed {
//	    // decision.Reason explains the denial
//	}
//
// Denial is a policy outcome, never an error: counters for unknown keys are
// created on first use, and only allowed sends mutate them.
package throttle
