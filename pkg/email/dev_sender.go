package email

import (
	"context"
	"fmt"
	"log/slog"
)

// DevSender logs emails instead of sending them, for local development
// and tests.
type DevSender struct {
	logger *slog.Logger
}

// NewDevSender creates a development sender that writes each email to the
// logger at info level.
func NewDevSender(log *slog.Logger) *DevSender {
	if log == nil {
		log = slog.Default()
	}
	return &DevSender{logger: log}
}

func (d *DevSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	d.logger.LogAttrs(ctx, slog.LevelInfo, "dev email",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("body", fmt.Sprintf("%.200s", msg.BodyHTML)),
	)
	return nil
}
