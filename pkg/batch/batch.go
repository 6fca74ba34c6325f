package batch

import (
	"time"

	"github.com/formwatch/dispatchkit/pkg/notification"
)

// Status represents the lifecycle state of a batch.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Batch accumulates notification requests destined for one grouping key
// until a flush trigger fires. A key owns at most one live batch; once
// flushed or cancelled the batch leaves the registry and is never reused.
type Batch struct {
	ID            string                 `json:"id"`
	Key           string                 `json:"key"`
	UserID        string                 `json:"user_id"`
	Channel       notification.Channel   `json:"channel"`
	Severity      notification.Severity  `json:"severity"`
	Notifications []notification.Request `json:"notifications"`
	CreatedAt     time.Time              `json:"created_at"`
	PriorityScore int                    `json:"priority_score"`
	Status        Status                 `json:"status"`
}

// Size returns the number of accumulated requests.
func (b *Batch) Size() int {
	return len(b.Notifications)
}

// Age returns how long the batch has been accumulating.
func (b *Batch) Age(now time.Time) time.Duration {
	return now.Sub(b.CreatedAt)
}

// copy returns a snapshot safe to hand outside the registry lock.
func (b *Batch) copy() Batch {
	out := *b
	out.Notifications = make([]notification.Request, len(b.Notifications))
	copy(out.Notifications, b.Notifications)
	return out
}
