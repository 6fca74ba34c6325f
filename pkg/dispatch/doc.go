// Package dispatch orchestrates the notification pipeline: throttle
// check, batch accumulation, and tracked delivery with retries.
//
// Requests enter through Process. Throttling runs first so denied
// requests never occupy batch space; batched requests flush to the
// delivery tracker on size, age, or manual triggers. Run drives the
// background sweeps for aged batches, stale throttle counters, and
// expired delivery records.
//
//	dispatcher, err := dispatch.New(throttles, tracker, batchCfg)
//	go dispatcher.Run(ctx)
//
//	result, err := dispatcher.Process(ctx, req)
//	switch result.Status {
//	case dispatch.StatusProcessed:
//	    // delivered now (result.Delivery) or batched (result.BatchID)
//	case dispatch.StatusThrottled:
//	    // rate limited, result.Reason says why
//	}
//
// Handler exposes the admin operations (batch inspection, throttle
// resets, delivery metrics and reports, config hot-swaps) as a chi
// router for mounting under an authenticated surface.
package dispatch
