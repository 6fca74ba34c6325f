// Package batch groups related notification requests into pending batches
// keyed by user, channel, and severity, and consolidates each batch into a
// single delivery when a flush trigger fires.
//
// Two triggers flush a batch: reaching MaxBatchSize (checked on every Add)
// and exceeding MaxBatchDelay (checked by SweepDue, which the dispatcher
// runs on its minute sweep). Administrators can also force a flush with
// SendNow or discard a batch with Cancel.
//
//	acc, err := batch.NewAccumulator(flusher, batch.Config{
//	    Enabled:          true,
//	    MaxBatchSize:     5,
//	    MaxBatchDelay:    30 * time.Minute,
//	    PriorityOverride: true,
//	    GroupByUser:      true,
//	    GroupByChannel:   true,
//	    GroupBySeverity:  true,
//	})
//
//	decision, err := acc.Add(ctx, req)
//	switch decision.Outcome {
//	case batch.OutcomeBatched:   // joined batch decision.BatchID
//	case batch.OutcomeImmediate: // caller delivers right away
//	case batch.OutcomeDisabled:  // batching is off
//	}
//
// A grouping key owns at most one live batch. Flush, cancel, and the sweep
// remove the batch from the registry inside a single critical section, so
// a batch can never be delivered twice or resurrected.
package batch
