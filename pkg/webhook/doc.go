// Package webhook posts JSON payloads to HTTP endpoints with
// HMAC-SHA256 signing and backoff-based retries for transient failures.
//
// Signed requests carry the signature, a unix timestamp, and a unique
// delivery id in headers. The signature covers "timestamp.payload" so a
// receiver can both authenticate the payload and reject replays:
//
//	sender := webhook.NewSender(
//	    webhook.WithSigningSecret("shared-secret"),
//	    webhook.WithRetry(backoff.Default(), 3),
//	)
//	result, err := sender.Send(ctx, url, payload)
//
// Receivers verify with webhook.VerifySignature.
package webhook
