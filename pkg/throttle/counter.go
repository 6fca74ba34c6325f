package throttle

import (
	"strings"
	"time"

	"github.com/formwatch/dispatchkit/pkg/notification"
)

// Counter holds the per (user, channel) rate-limit state.
// Counters are created lazily on first check and live for the process
// lifetime; cleanup only zeroes elapsed windows, never deletes.
type Counter struct {
	NotificationsSent int64     `json:"notifications_sent"`
	LastSentAt        time.Time `json:"last_sent_at"`
	HourlyCount       int       `json:"hourly_count"`
	DailyCount        int       `json:"daily_count"`
	BurstCount        int       `json:"burst_count"`
	BurstWindowStart  time.Time `json:"burst_window_start"`
}

// Deny reasons surfaced to the caller. Throttling is a policy decision,
// not an error.
const (
	ReasonRateLimitExceeded  = "rate limit exceeded"
	ReasonCooldownActive     = "cooldown active"
	ReasonBurstLimitExceeded = "burst limit exceeded"
)

// Decision is the outcome of a throttle check.
type Decision struct {
	Allowed bool    `json:"allowed"`
	Reason  string  `json:"reason,omitempty"`
	Counter Counter `json:"counter"`
}

// Key builds the registry key for a (user, channel) pair.
func Key(userID string, channel notification.Channel) string {
	return userID + "/" + string(channel)
}

// SplitKey is the inverse of Key.
func SplitKey(key string) (userID string, channel notification.Channel) {
	idx := strings.LastIndex(key, "/")
	if idx < 0 {
		return key, ""
	}
	return key[:idx], notification.Channel(key[idx+1:])
}

// resetElapsedWindows zeroes counts whose rolling windows have passed.
// Hourly and daily windows roll relative to the last allowed send; the
// burst window rolls on its own start time.
func (c *Counter) resetElapsedWindows(now time.Time, cfg Config) {
	if !c.LastSentAt.IsZero() {
		since := now.Sub(c.LastSentAt)
		if since >= time.Hour {
			c.HourlyCount = 0
		}
		if since >= 24*time.Hour {
			c.DailyCount = 0
		}
	}
	if c.BurstWindowStart.IsZero() || !now.Before(c.BurstWindowStart.Add(cfg.BurstWindow)) {
		c.BurstWindowStart = now
		c.BurstCount = 0
	}
}

// applyGates runs the short-circuiting gate sequence against the counter
// and records the send on allow. Exemption gates run before this in the
// Registry so exempt requests never touch counters.
func applyGates(c *Counter, now time.Time, cfg Config) (allowed bool, reason string) {
	c.resetElapsedWindows(now, cfg)

	if cfg.BurstLimit > 0 && c.BurstCount >= cfg.BurstLimit {
		return false, ReasonBurstLimitExceeded
	}

	if c.HourlyCount >= cfg.RateLimitPerHour || c.DailyCount >= cfg.RateLimitPerDay {
		return false, ReasonRateLimitExceeded
	}

	if !c.LastSentAt.IsZero() && now.Before(c.LastSentAt.Add(cfg.Cooldown)) {
		return false, ReasonCooldownActive
	}

	c.NotificationsSent++
	c.HourlyCount++
	c.DailyCount++
	c.BurstCount++
	c.LastSentAt = now

	return true, ""
}
