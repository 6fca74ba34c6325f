package delivery

import "fmt"

// Status is the delivery record state machine. Transitions are checked
// against a closed table so persisted statuses can never take an
// undeclared path.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSending   Status = "sending"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
	StatusBounced   Status = "bounced"
	StatusRetrying  Status = "retrying"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// transitions is the closed transition table.
//
//	Pending  -> Sending | Cancelled | Expired
//	Sending  -> Delivered | Failed | Bounced | Cancelled
//	Failed   -> Retrying (only while retries remain; guarded by the tracker)
//	Retrying -> Sending | Cancelled | Expired
//
// Delivered, Bounced, Cancelled, and Expired are terminal.
var transitions = map[Status][]Status{
	StatusPending:  {StatusSending, StatusCancelled, StatusExpired},
	StatusSending:  {StatusDelivered, StatusFailed, StatusBounced, StatusCancelled},
	StatusFailed:   {StatusRetrying, StatusExpired},
	StatusRetrying: {StatusSending, StatusCancelled, StatusExpired},
}

// Terminal reports whether no further transition may leave this status.
// Failed is terminal only once retries are exhausted, which the tracker
// enforces; here it reports the resting case.
func (s Status) Terminal() bool {
	switch s {
	case StatusDelivered, StatusBounced, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// CanTransitionTo reports whether the table allows moving to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Valid reports whether the status is one of the known values.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSending, StatusDelivered, StatusFailed,
		StatusBounced, StatusRetrying, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// transition validates and applies a status change.
func (r *Record) transition(next Status) error {
	if !r.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, next)
	}
	r.Status = next
	return nil
}
