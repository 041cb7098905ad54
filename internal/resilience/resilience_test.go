package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errChrome = errors.New("chrome crashed")

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(cfg BreakerConfig) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)}
	return NewBreaker("capture", cfg, WithBreakerClock(clock.now)), clock
}

func fail(context.Context) error    { return errChrome }
func succeed(context.Context) error { return nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, clock := newTestBreaker(BreakerConfig{FailureThreshold: 3, SuccessThreshold: 1, Cooldown: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Execute(ctx, fail), errChrome)
	}
	assert.Equal(t, CircuitOpen, b.State())

	called := false
	err := b.Execute(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	clock.advance(time.Minute)
	assert.Equal(t, CircuitHalfOpen, b.State())
	require.NoError(t, b.Execute(ctx, succeed))
	assert.Equal(t, CircuitClosed, b.State())

	stats := b.Stats()
	assert.Equal(t, "capture", stats.Name)
	assert.Equal(t, int64(5), stats.TotalRequests)
	assert.Equal(t, int64(3), stats.TotalFailures)
	assert.Equal(t, int64(1), stats.TotalRejected)
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(BreakerConfig{FailureThreshold: 1, Cooldown: time.Minute})
	ctx := context.Background()

	b.Execute(ctx, fail)
	clock.advance(2 * time.Minute)
	assert.ErrorIs(t, b.Execute(ctx, fail), errChrome)
	assert.Equal(t, CircuitOpen, b.State())

	clock.advance(30 * time.Second)
	assert.ErrorIs(t, b.Execute(ctx, succeed), ErrCircuitOpen)
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{FailureThreshold: 2, Cooldown: time.Minute})
	ctx := context.Background()

	b.Execute(ctx, fail)
	b.Execute(ctx, succeed)
	b.Execute(ctx, fail)
	assert.Equal(t, CircuitClosed, b.State())
}

func TestBreaker_CancelledCallsDoNotCount(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{FailureThreshold: 1, Cooldown: time.Minute})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, CircuitClosed, b.State())
}

func TestBreaker_MaxConcurrent(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{FailureThreshold: 3, Cooldown: time.Minute, MaxConcurrent: 1})
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- b.Execute(ctx, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	assert.ErrorIs(t, b.Execute(ctx, succeed), ErrTooManyConcurrent)
	close(release)
	require.NoError(t, <-done)
	assert.NoError(t, b.Execute(ctx, succeed))
	assert.Equal(t, 0, b.Stats().InFlight)
}

func TestDo(t *testing.T) {
	b, _ := newTestBreaker(DefaultBreakerConfig())
	png, err := Do(context.Background(), b, func(context.Context) ([]byte, error) {
		return []byte("png"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), png)

	b.Reset()
	assert.Equal(t, CircuitClosed, b.State())
}

func TestRetry(t *testing.T) {
	policy := RetryPolicy{Attempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, BackoffFactor: 2}

	var calls int32
	err := Retry(context.Background(), policy, func(context.Context) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errChrome
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls)

	calls = 0
	err = Retry(context.Background(), policy, func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return errChrome
	})
	assert.ErrorIs(t, err, errChrome)
	assert.Equal(t, int32(3), calls)
}

func TestRetry_StopsOnPermanentErrors(t *testing.T) {
	policy := RetryPolicy{Attempts: 5, InitialDelay: time.Millisecond}

	calls := 0
	err := Retry(context.Background(), policy, func(context.Context) error {
		calls++
		return ErrCircuitOpen
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 1, calls)

	policy.Retryable = func(err error) bool { return !errors.Is(err, errChrome) }
	calls = 0
	Retry(context.Background(), policy, func(context.Context) error {
		calls++
		return errChrome
	})
	assert.Equal(t, 1, calls)
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{Attempts: 10, InitialDelay: time.Hour}

	calls := 0
	err := Retry(ctx, policy, func(context.Context) error {
		calls++
		cancel()
		return errChrome
	})
	assert.ErrorIs(t, err, errChrome)
	assert.Equal(t, 1, calls)
}

// Property 1: backoff never exceeds MaxDelay and never decreases.
func TestProperty_BackoffBounded(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("0 <= backoff(n) <= backoff(n+1) <= max", prop.ForAll(
		func(initialMs, maxMs int, factor float64, n int) bool {
			p := RetryPolicy{
				InitialDelay:  time.Duration(initialMs) * time.Millisecond,
				MaxDelay:      time.Duration(initialMs+maxMs) * time.Millisecond,
				BackoffFactor: factor,
			}
			a, b := p.Backoff(n), p.Backoff(n+1)
			return a >= 0 && a <= b && b <= p.MaxDelay
		},
		gen.IntRange(1, 1000),
		gen.IntRange(0, 60000),
		gen.Float64Range(1, 4),
		gen.IntRange(1, 40),
	))

	properties.TestingRun(t)
}

func TestHealthChecker(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{FailureThreshold: 1, Cooldown: time.Minute})
	h := NewHealthChecker(time.Second)
	h.Register("database", PingCheck(func(context.Context) error { return nil }))
	h.Register("screenshots", BreakerCheck(b))

	report := h.Check(context.Background())
	assert.Equal(t, HealthStatusHealthy, report.Status)
	require.Len(t, report.Components, 2)
	assert.Equal(t, "database", report.Components[0].Name)
	assert.Equal(t, "screenshots", report.Components[1].Name)

	b.Execute(context.Background(), fail)
	report = h.Check(context.Background())
	assert.Equal(t, HealthStatusDegraded, report.Status)
	assert.Equal(t, "circuit open", report.Components[1].Message)

	h.Register("database", PingCheck(func(context.Context) error { return errors.New("database is locked") }))
	report = h.Check(context.Background())
	assert.Equal(t, HealthStatusUnhealthy, report.Status)
	assert.Equal(t, "database is locked", report.Components[0].Message)
}
