package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Strategy computes the delay before a retry attempt.
// Implementations are stateless and safe for concurrent use.
type Strategy interface {
	// NextInterval returns the backoff duration for the given attempt.
	// Attempt starts at 1 for the first retry.
	NextInterval(attempt int) time.Duration
}

// Immediate retries without any delay.
type Immediate struct{}

// NextInterval always returns zero.
func (Immediate) NextInterval(attempt int) time.Duration {
	return 0
}

// Fixed waits the same interval before every retry.
type Fixed struct {
	Interval time.Duration
}

// NextInterval returns the fixed interval regardless of attempt number.
func (f Fixed) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return f.Interval
}

// Linear increases the delay proportionally to the attempt number.
type Linear struct {
	Interval    time.Duration
	MaxInterval time.Duration // 0 means uncapped
}

// NextInterval returns Interval * attempt, capped at MaxInterval when set.
func (l Linear) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := l.Interval * time.Duration(attempt)
	if l.MaxInterval > 0 && delay > l.MaxInterval {
		delay = l.MaxInterval
	}
	return delay
}

// Exponential implements exponential backoff with optional jitter.
// Jitter spreads retry times when many deliveries fail at once; it is off
// by default so that delays stay deterministic.
type Exponential struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration // 0 means uncapped
	Multiplier      float64
	JitterFactor    float64
}

// NextInterval returns InitialInterval * Multiplier^(attempt-1),
// capped at MaxInterval when set.
func (e Exponential) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	multiplier := e.Multiplier
	if multiplier == 0 {
		multiplier = 2
	}

	interval := float64(e.InitialInterval) * math.Pow(multiplier, float64(attempt-1))

	if e.JitterFactor > 0 {
		// Random factor between (1-jitter) and (1+jitter).
		randomJitter := (rand.Float64()*2 - 1) * e.JitterFactor
		interval = interval * (1 + randomJitter)
	}

	if e.MaxInterval > 0 && interval > float64(e.MaxInterval) {
		interval = float64(e.MaxInterval)
	}

	return time.Duration(interval)
}

// Default returns the exponential strategy used when no retry config is supplied.
func Default() Strategy {
	return Exponential{
		InitialInterval: time.Minute,
		MaxInterval:     time.Hour,
		Multiplier:      2,
	}
}
