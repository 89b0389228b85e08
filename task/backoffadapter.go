package task

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// FromCenkalti adapts a github.com/cenkalti/backoff/v5 BackOff into a
// Strategy, so callers already standardized on that ecosystem backoff
// library can plug it in as the custom strategy instead of hand
// rolling one of Fixed/Exponential/Fibonacci.
//
// b is Reset before attempt 1 so a single BackOff instance can be
// reused safely across independent Run calls sharing an Engine. When
// b reports backoff.Stop, FromCenkalti returns zero delay and relies
// on the caller's shouldRetry/maxRetries policy to actually halt
// retries, since Strategy has no "stop" return of its own.
func FromCenkalti(b backoff.BackOff) Strategy {
	return StrategyFunc(func(attempt int, _ *TypedError) time.Duration {
		if attempt <= 1 {
			b.Reset()
		}
		d := b.NextBackOff()
		if d == backoff.Stop {
			return 0
		}
		return d
	})
}
