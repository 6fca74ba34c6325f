package webhook

import "errors"

var (
	// ErrEmptyURL is returned when Send is called without a destination.
	ErrEmptyURL = errors.New("webhook url is empty")

	// ErrDeliveryFailed is returned when all attempts are exhausted or the
	// endpoint returns a retryable status.
	ErrDeliveryFailed = errors.New("webhook delivery failed")

	// ErrPermanentFailure is returned for 4xx responses and malformed
	// requests. Callers should not retry these.
	ErrPermanentFailure = errors.New("webhook permanently rejected")

	// ErrInvalidSignature is returned when payload verification fails.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)
