package notification

import (
	"fmt"
	"time"
)

// Severity classifies the underlying form change driving a notification.
// It feeds both throttle exemptions and batch priority scoring.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Weight returns the priority weight used for batch priority scoring.
func (s Severity) Weight() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 4
	case SeverityHigh:
		return 7
	case SeverityCritical:
		return 10
	default:
		return 0
	}
}

// Valid reports whether the severity is one of the known values.
func (s Severity) Valid() bool {
	return s.Weight() > 0
}

// IsUrgent reports whether the severity qualifies for priority handling
// (throttle exemption, batch bypass).
func (s Severity) IsUrgent() bool {
	return s == SeverityHigh || s == SeverityCritical
}

// Channel is a delivery medium abstracted behind a uniform send interface.
type Channel string

const (
	ChannelEmail   Channel = "email"
	ChannelSlack   Channel = "slack"
	ChannelTeams   Channel = "teams"
	ChannelWebhook Channel = "webhook"
)

// Valid reports whether the channel is one of the supported media.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSlack, ChannelTeams, ChannelWebhook:
		return true
	}
	return false
}

// Request is the immutable unit of work submitted to the dispatch subsystem.
// The change-detection layer produces one Request per affected user/channel.
type Request struct {
	UserID          string   `json:"user_id"`
	Recipient       string   `json:"recipient"` // email address or webhook URL, resolved by the caller
	Channel         Channel  `json:"channel"`
	Severity        Severity `json:"severity"`
	Subject         string   `json:"subject"`
	Body            string   `json:"body"`
	RelatedChangeID string   `json:"related_change_id,omitempty"`

	// Exemption flags are derived from severity by the caller but kept
	// explicit so policy can be overridden per request.
	ExemptFromThrottle bool `json:"exempt_from_throttle,omitempty"`
	ExemptFromBatch    bool `json:"exempt_from_batch,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the request before it enters the pipeline.
func (r Request) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}
	if !r.Channel.Valid() {
		return fmt.Errorf("%w: unknown channel %q", ErrInvalidRequest, r.Channel)
	}
	if !r.Severity.Valid() {
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidRequest, r.Severity)
	}
	if r.Subject == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidRequest)
	}
	return nil
}
