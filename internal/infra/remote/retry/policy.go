package retry

import "time"

// Policy defines retry behavior.
type Policy struct {
	// MaxAttempts is the number of retries after the first attempt.
	MaxAttempts int
	MinDelay    time.Duration
	MaxDelay    time.Duration
	Scalar      float64
}

// DefaultPolicy provides sensible defaults.
var DefaultPolicy = Policy{
	MaxAttempts: 3,
	MinDelay:    500 * time.Millisecond,
	MaxDelay:    10 * time.Second,
	Scalar:      1.5,
}

// Delay returns how long to wait after the given failed attempt.
//
// Delay(0) is MinDelay; later attempts grow by Scalar per attempt until they
// reach MaxDelay. Results are truncated to whole milliseconds.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 0 || p.Scalar <= 1 {
		return min(p.MinDelay, p.MaxDelay)
	}

	// Clamp per multiply so large attempt counts stop growing at MaxDelay.
	delay := float64(p.MinDelay)
	limit := float64(p.MaxDelay)
	for i := 0; i < attempt; i++ {
		delay *= p.Scalar
		if delay >= limit {
			return p.MaxDelay
		}
	}
	return time.Duration(delay).Truncate(time.Millisecond)
}
