package delivery

import (
	"context"
	"time"

	"github.com/formwatch/dispatchkit/pkg/notification"
)

// ChannelSender integrates one delivery medium. The tracker treats every
// channel uniformly through this interface; concrete implementations live
// in the channels package.
//
// A returned error marks the attempt as failed and eligible for retry.
// Errors wrapped with ErrPermanent mark the record Bounced instead and
// stop retrying.
type ChannelSender interface {
	Send(ctx context.Context, req notification.Request) (SendResult, error)
}

// SendResult carries channel response metadata for a single attempt.
type SendResult struct {
	DeliveryTime time.Duration `json:"delivery_time"`
	ResponseData string        `json:"response_data,omitempty"`
}

// Result is the outcome of Deliver for one logical notification.
type Result struct {
	RecordID     string        `json:"record_id"`
	Success      bool          `json:"success"`
	Status       Status        `json:"status"`
	Attempts     int           `json:"attempts"`
	ErrorMessage string        `json:"error_message,omitempty"`
	DeliveryTime time.Duration `json:"delivery_time,omitempty"`
	ResponseData string        `json:"response_data,omitempty"`
}
