package email

import "errors"

var (
	// ErrInvalidConfig is returned when sender configuration is incomplete.
	ErrInvalidConfig = errors.New("invalid email config")

	// ErrInvalidMessage is returned when a message fails validation.
	ErrInvalidMessage = errors.New("invalid email message")

	// ErrSendFailed is returned when the provider rejects or fails the send.
	ErrSendFailed = errors.New("failed to send email")
)
