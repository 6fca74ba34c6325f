package delivery

import (
	"time"

	"github.com/formwatch/dispatchkit/pkg/notification"
)

// Record tracks one logical notification's journey to a channel: its send
// attempts, retry state, and final outcome.
type Record struct {
	ID              string                `json:"id"`
	UserID          string                `json:"user_id"`
	Channel         notification.Channel  `json:"channel"`
	Severity        notification.Severity `json:"severity"`
	Recipient       string                `json:"recipient"`
	Subject         string                `json:"subject"`
	Body            string                `json:"body"`
	RelatedChangeID string                `json:"related_change_id,omitempty"`

	Status       Status        `json:"status"`
	RetryCount   int           `json:"retry_count"`
	MaxRetries   int           `json:"max_retries"`
	ErrorMessage string        `json:"error_message,omitempty"`
	ResponseData string        `json:"response_data,omitempty"`
	DeliveryTime time.Duration `json:"delivery_time"`

	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
	SentAt      time.Time  `json:"sent_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// RetriesLeft reports whether another retry attempt is allowed.
func (r *Record) RetriesLeft() bool {
	return r.RetryCount < r.MaxRetries
}

// AgedPast reports whether the record has outlived maxAge without
// resolution.
func (r *Record) AgedPast(now time.Time, maxAge time.Duration) bool {
	return now.Sub(r.SentAt) > maxAge
}
