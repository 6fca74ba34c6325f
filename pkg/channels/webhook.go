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

// WebhookSender posts the full notification as JSON to a customer
// endpoint. The request's Recipient field carries the destination URL.
type WebhookSender struct {
	sender *webhook.Sender
	now    func() time.Time
}

// NewWebhookSender wraps a webhook sender for generic endpoint delivery.
func NewWebhookSender(s *webhook.Sender) (*WebhookSender, error) {
	if s == nil {
		return nil, ErrNilSender
	}
	return &WebhookSender{sender: s, now: time.Now}, nil
}

type webhookPayload struct {
	UserID          string `json:"user_id"`
	Severity        string `json:"severity"`
	Subject         string `json:"subject"`
	Body            string `json:"body"`
	RelatedChangeID string `json:"related_change_id,omitempty"`
	CreatedAt       string `json:"created_at"`
}

func (w *WebhookSender) Send(ctx context.Context, req notification.Request) (delivery.SendResult, error) {
	payload, err := json.Marshal(webhookPayload{
		UserID:          req.UserID,
		Severity:        string(req.Severity),
		Subject:         req.Subject,
		Body:            req.Body,
		RelatedChangeID: req.RelatedChangeID,
		CreatedAt:       req.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return delivery.SendResult{}, fmt.Errorf("%w: %w", delivery.ErrPermanent, err)
	}

	start := w.now()
	result, err := w.sender.Send(ctx, req.Recipient, payload)
	elapsed := w.now().Sub(start)

	sr := delivery.SendResult{
		DeliveryTime: elapsed,
		ResponseData: fmt.Sprintf("status=%d attempts=%d", result.StatusCode, result.Attempts),
	}
	if err != nil {
		if errors.Is(err, webhook.ErrPermanentFailure) || errors.Is(err, webhook.ErrEmptyURL) {
			return sr, fmt.Errorf("%w: %w", delivery.ErrPermanent, err)
		}
		return sr, err
	}
	return sr, nil
}
