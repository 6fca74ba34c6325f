package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/formwatch/dispatchkit/pkg/backoff"
)

const defaultTimeout = 10 * time.Second

// Sender posts JSON payloads to webhook endpoints with HMAC signing and
// transient-failure retries.
type Sender struct {
	client     *http.Client
	strategy   backoff.Strategy
	maxRetries int
	secret     string
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Sender.
type Option func(*Sender)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Sender) {
		if c != nil {
			s.client = c
		}
	}
}

// WithSigningSecret enables HMAC-SHA256 signing of outgoing payloads.
func WithSigningSecret(secret string) Option {
	return func(s *Sender) { s.secret = secret }
}

// WithRetry sets the backoff strategy and retry count for transient
// failures. maxRetries is the number of retries after the first attempt.
func WithRetry(strategy backoff.Strategy, maxRetries int) Option {
	return func(s *Sender) {
		if strategy != nil {
			s.strategy = strategy
		}
		if maxRetries >= 0 {
			s.maxRetries = maxRetries
		}
	}
}

// WithLogger sets the logger for send attempts.
func WithLogger(log *slog.Logger) Option {
	return func(s *Sender) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithNowFunc overrides the clock, used in tests.
func WithNowFunc(now func() time.Time) Option {
	return func(s *Sender) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSender creates a webhook sender. By default it retries twice with
// exponential backoff and does not sign payloads.
func NewSender(opts ...Option) *Sender {
	s := &Sender{
		client:     &http.Client{Timeout: defaultTimeout},
		strategy:   backoff.Default(),
		maxRetries: 2,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result reports the outcome of a delivered webhook.
type Result struct {
	StatusCode int
	Attempts   int
	Body       string
}

// Send posts the payload to url, retrying on network errors and 5xx
// responses. 4xx responses are treated as permanent and returned
// immediately wrapped in ErrPermanentFailure.
func (s *Sender) Send(ctx context.Context, url string, payload []byte) (Result, error) {
	if url == "" {
		return Result{}, ErrEmptyURL
	}

	var lastErr error
	result := Result{}

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			delay := s.strategy.NextInterval(attempt)
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(delay):
			}
		}

		result.Attempts = attempt + 1
		res, err := s.post(ctx, url, payload)
		if err == nil {
			result.StatusCode = res.StatusCode
			result.Body = res.Body
			return result, nil
		}

		lastErr = err
		if res != nil {
			result.StatusCode = res.StatusCode
			result.Body = res.Body
		}
		if isPermanent(err) {
			return result, err
		}

		s.logger.LogAttrs(ctx, slog.LevelWarn, "webhook attempt failed",
			slog.String("url", url),
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()),
		)
	}

	return result, fmt.Errorf("%w after %d attempts: %w", ErrDeliveryFailed, s.maxRetries+1, lastErr)
}

type response struct {
	StatusCode int
	Body       string
}

func (s *Sender) post(ctx context.Context, url string, payload []byte) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPermanentFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")

	if s.secret != "" {
		ts := s.now().Unix()
		req.Header.Set(HeaderSignature, SignPayload(s.secret, ts, payload))
		req.Header.Set(HeaderTimestamp, fmt.Sprintf("%d", ts))
		req.Header.Set(HeaderID, uuid.NewString())
	}

	res, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	defer res.Body.Close()

	// Responses are capped so a misbehaving receiver cannot exhaust memory.
	body, _ := io.ReadAll(io.LimitReader(res.Body, 64*1024))
	resp := &response{StatusCode: res.StatusCode, Body: string(body)}

	switch {
	case res.StatusCode >= 200 && res.StatusCode < 300:
		return resp, nil
	case res.StatusCode >= 400 && res.StatusCode < 500:
		return resp, fmt.Errorf("%w: endpoint returned %d", ErrPermanentFailure, res.StatusCode)
	default:
		return resp, fmt.Errorf("%w: endpoint returned %d", ErrDeliveryFailed, res.StatusCode)
	}
}

func isPermanent(err error) bool {
	return errors.Is(err, ErrPermanentFailure)
}
