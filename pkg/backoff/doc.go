// Package backoff provides the retry delay policies used by delivery
// tracking: immediate, fixed interval, linear, and exponential backoff.
//
// Strategies are pure functions of the attempt number, which keeps retry
// scheduling deterministic and testable. The Config struct is the
// hot-swappable retry policy snapshot; New builds a Strategy from it.
//
//	strategy, err := backoff.New(backoff.Config{
//	    Strategy:     backoff.StrategyExponential,
//	    MaxRetries:   3,
//	    InitialDelay: time.Minute,
//	    MaxDelay:     time.Hour,
//	    Multiplier:   2,
//	})
//	delay := strategy.NextInterval(2) // 2m for the defaults above
package backoff
