package retry

import (
	"context"
	"time"
)

// Event describes a scheduled retry.
type Event struct {
	Attempt int // zero-based attempt that just failed
	Delay   time.Duration
	Class   FailureClass
	Err     error
}

// Config bundles the policy with optional hooks.
type Config struct {
	Policy  Policy
	OnRetry func(Event)
}

// Execute runs op until it succeeds, fails with a non-retryable class, or the
// policy is exhausted. The wait between attempts ends early when ctx is done.
//
// Failures are returned as *Error so callers can inspect the class.
func Execute[T any](ctx context.Context, cfg Config, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	for attempt := 0; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		class := Classify(err)
		if !class.Retryable() || attempt >= cfg.Policy.MaxAttempts {
			return zero, newError(class, attempt+1, err)
		}

		delay := cfg.Policy.Delay(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(Event{Attempt: attempt, Delay: delay, Class: class, Err: err})
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, newError(Classify(ctx.Err()), attempt+1, ctx.Err())
		case <-timer.C:
		}
	}
}
