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

var severityColor = map[notification.Severity]string{
	notification.SeverityLow:      "2EB67D",
	notification.SeverityMedium:   "ECB22E",
	notification.SeverityHigh:     "E01E5A",
	notification.SeverityCritical: "CC0000",
}

// TeamsSender posts notifications to a Microsoft Teams incoming webhook
// as a MessageCard. The request's Recipient field carries the webhook URL.
type TeamsSender struct {
	sender *webhook.Sender
	now    func() time.Time
}

// NewTeamsSender wraps a webhook sender for Teams delivery.
func NewTeamsSender(s *webhook.Sender) (*TeamsSender, error) {
	if s == nil {
		return nil, ErrNilSender
	}
	return &TeamsSender{sender: s, now: time.Now}, nil
}

func (t *TeamsSender) Send(ctx context.Context, req notification.Request) (delivery.SendResult, error) {
	payload, err := json.Marshal(map[string]any{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": severityColor[req.Severity],
		"summary":    req.Subject,
		"title":      req.Subject,
		"text":       req.Body,
	})
	if err != nil {
		return delivery.SendResult{}, fmt.Errorf("%w: %w", delivery.ErrPermanent, err)
	}

	start := t.now()
	result, err := t.sender.Send(ctx, req.Recipient, payload)
	elapsed := t.now().Sub(start)

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
