// Package delivery drives notification send attempts through a status
// state machine with policy-driven retries, and persists every state
// change so metrics always reconcile with stored records.
//
// The Tracker owns status transitions and retry scheduling; the actual
// channel call is delegated to a ChannelSender, and persistence to a
// Store. Two stores ship with the package: MemoryStore for development
// and testing, and PostgresStore for production.
//
// # State machine
//
//	Pending -> Sending -> Delivered                        (terminal)
//	                   -> Bounced                          (terminal, permanent failure)
//	                   -> Failed -> Retrying -> Sending    (while retries remain)
//	                             (terminal once retries are exhausted)
//	non-terminal states -> Cancelled | Expired             (terminal)
//
// RetryCount never exceeds the policy's MaxRetries, so a notification is
// attempted at most 1 + MaxRetries times.
//
// # Usage
//
//	tracker, err := delivery.NewTracker(store, sender, backoff.Config{
//	    Strategy:     backoff.StrategyExponential,
//	    MaxRetries:   3,
//	    InitialDelay: time.Minute,
//	    MaxDelay:     time.Hour,
//	    Multiplier:   2,
//	})
//
//	result, err := tracker.Deliver(ctx, req)
//
// Metrics and Report are computed over the queried record set rather than
// accumulated live; CleanupExpired forces records that aged past the
// threshold into the Expired state.
package delivery
