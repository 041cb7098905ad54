package resilience

import (
	"context"
	"errors"
	"math"
	"time"
)

// RetryPolicy holds retry configuration.
type RetryPolicy struct {
	// Attempts is the total number of calls, including the first.
	Attempts      int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	// Retryable reports whether err is worth another attempt. Nil retries
	// everything except circuit and context errors.
	Retryable func(err error) bool
}

// DefaultRetryPolicy returns one retry after half a second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:      2,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

// Backoff returns the delay before attempt n (1-based retry count).
func (p RetryPolicy) Backoff(n int) time.Duration {
	if n < 1 || p.InitialDelay <= 0 {
		return 0
	}
	factor := p.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	delay := float64(p.InitialDelay) * math.Pow(factor, float64(n-1))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if delay > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}

func (p RetryPolicy) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyConcurrent) {
		return false
	}
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return true
}

// Retry calls fn until it succeeds, the attempts run out, the error is not
// retryable or ctx ends. It returns the last error from fn.
func Retry(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt >= attempts || !p.retryable(err) || ctx.Err() != nil {
			return err
		}

		timer := time.NewTimer(p.Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}
