package channels

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/formwatch/dispatchkit/pkg/delivery"
	"github.com/formwatch/dispatchkit/pkg/email"
	"github.com/formwatch/dispatchkit/pkg/notification"
)

// EmailSender adapts an email.Sender to the delivery interface.
type EmailSender struct {
	sender email.Sender
	now    func() time.Time
}

// NewEmailSender wraps the given email sender.
func NewEmailSender(s email.Sender) (*EmailSender, error) {
	if s == nil {
		return nil, ErrNilSender
	}
	return &EmailSender{sender: s, now: time.Now}, nil
}

func (e *EmailSender) Send(ctx context.Context, req notification.Request) (delivery.SendResult, error) {
	start := e.now()
	err := e.sender.Send(ctx, email.Message{
		To:       req.Recipient,
		Subject:  req.Subject,
		BodyHTML: req.Body,
		Tag:      "form-change",
	})
	elapsed := e.now().Sub(start)

	if err != nil {
		// Malformed addresses never become deliverable, so validation
		// failures bounce instead of retrying.
		if errors.Is(err, email.ErrInvalidMessage) {
			return delivery.SendResult{DeliveryTime: elapsed}, fmt.Errorf("%w: %w", delivery.ErrPermanent, err)
		}
		return delivery.SendResult{DeliveryTime: elapsed}, err
	}

	return delivery.SendResult{DeliveryTime: elapsed, ResponseData: "accepted"}, nil
}
