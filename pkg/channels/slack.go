package channels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/formwatch/dispatchkit/pkg/delivery"
	"github.com/formwatch/dispatchkit/pkg/notification"
	"github.com/formwatch/dispatchkit/pkg/webhook"
)

var severityEmoji = map[notification.Severity]string{
	notification.SeverityLow:      ":information_source:",
	notification.SeverityMedium:   ":warning:",
	notification.SeverityHigh:     ":rotating_light:",
	notification.SeverityCritical: ":fire:",
}

// SlackSender posts notifications to a Slack incoming webhook. The
// request's Recipient field carries the webhook URL.
type SlackSender struct {
	sender *webhook.Sender
	now    func() time.Time
}

// NewSlackSender wraps a webhook sender for Slack delivery.
func NewSlackSender(s *webhook.Sender) (*SlackSender, error) {
	if s == nil {
		return nil, ErrNilSender
	}
	return &SlackSender{sender: s, now: time.Now}, nil
}

func (s *SlackSender) Send(ctx context.Context, req notification.Request) (delivery.SendResult, error) {
	payload, err := json.Marshal(map[string]string{
		"text": fmt.Sprintf("%s *%s*\n%s", severityEmoji[req.Severity], req.Subject, req.Body),
	})
	if err != nil {
		return delivery.SendResult{}, fmt.Errorf("%w: %w", delivery.ErrPermanent, err)
	}

	start := s.now()
	result, err := s.sender.Send(ctx, req.Recipient, payload)
	elapsed := s.now().Sub(start)

	sr := delivery.SendResult{
		DeliveryTime: elapsed,
		ResponseData: fmt.Sprintf("status=%d", result.StatusCode),
	}
	if err != nil {
		if errors.Is(err, webhook.ErrPermanentFailure) || errors.Is(err, webhook.ErrEmptyURL) {
			return sr, fmt.Errorf("%w: %w", delivery.ErrPermanent, err)
		}
		return sr, err
	}
	return sr, nil
}
