package worker

import "time"

// RetryPolicy задаёт экспоненциальную паузу между повторами задачи
// синхронизации.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// NextDelay returns the pause before the given attempt (1-based). Zero
// fields fall back to sane defaults so the zero policy is usable.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	delay := r.InitialDelay
	if delay <= 0 {
		delay = time.Second
	}
	factor := r.BackoffFactor
	if factor <= 0 {
		factor = 2
	}

	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * factor)
		if r.MaxDelay > 0 && delay >= r.MaxDelay {
			return r.MaxDelay
		}
	}
	return delay
}
