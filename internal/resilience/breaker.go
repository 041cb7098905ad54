// Package resilience guards slow external work, such as headless Chrome
// captures, with a circuit breaker, retries and health checks.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// ErrCircuitOpen is returned when the circuit is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ErrTooManyConcurrent is returned when MaxConcurrent calls are in flight.
var ErrTooManyConcurrent = errors.New("too many concurrent requests")

// BreakerConfig holds circuit breaker configuration.
type BreakerConfig struct {
	// FailureThreshold consecutive failures open the circuit.
	FailureThreshold int
	// SuccessThreshold successes in half-open close it again.
	SuccessThreshold int
	// Cooldown is how long the circuit stays open before a trial call.
	Cooldown time.Duration
	// MaxConcurrent limits calls in flight. 0 means unlimited.
	MaxConcurrent int
}

// DefaultBreakerConfig returns the settings used for chart captures.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		Cooldown:         time.Minute,
		MaxConcurrent:    2,
	}
}

// BreakerStats is a snapshot of a breaker.
type BreakerStats struct {
	Name          string       `json:"name"`
	State         CircuitState `json:"state"`
	Failures      int          `json:"consecutive_failures"`
	InFlight      int          `json:"in_flight"`
	TotalRequests int64        `json:"total_requests"`
	TotalFailures int64        `json:"total_failures"`
	TotalRejected int64        `json:"total_rejected"`
}

// Breaker implements the circuit breaker pattern.
type Breaker struct {
	name   string
	config BreakerConfig
	now    func() time.Time

	mu        sync.Mutex
	state     CircuitState
	failures  int
	successes int
	openedAt  time.Time
	inFlight  int
	// trial is set while the single half-open call runs.
	trial bool

	totalRequests int64
	totalFailures int64
	totalRejected int64
}

// BreakerOption configures a Breaker.
type BreakerOption func(*Breaker)

// WithBreakerClock replaces time.Now.
func WithBreakerClock(now func() time.Time) BreakerOption {
	return func(b *Breaker) { b.now = now }
}

// NewBreaker creates a closed circuit breaker.
func NewBreaker(name string, config BreakerConfig, opts ...BreakerOption) *Breaker {
	if config.FailureThreshold < 1 {
		config.FailureThreshold = 1
	}
	if config.SuccessThreshold < 1 {
		config.SuccessThreshold = 1
	}
	b := &Breaker{
		name:   name,
		config: config,
		now:    time.Now,
		state:  CircuitClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.name
}

// Execute runs fn if the circuit allows it and records the outcome.
// Errors caused by ctx ending do not count as failures.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	trial, err := b.acquire()
	if err != nil {
		return err
	}
	err = fn(ctx)
	b.release(err, ctx.Err() != nil, trial)
	return err
}

// Do runs fn through b and returns its result.
func Do[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := b.Execute(ctx, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	return result, err
}

// acquire admits a call. trial is true for the single call let through
// while half-open.
func (b *Breaker) acquire() (trial bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalRequests++
	if b.state == CircuitOpen && b.now().Sub(b.openedAt) >= b.config.Cooldown {
		b.state = CircuitHalfOpen
		b.successes = 0
	}

	switch {
	case b.state == CircuitOpen, b.state == CircuitHalfOpen && b.trial:
		b.totalRejected++
		return false, ErrCircuitOpen
	case b.config.MaxConcurrent > 0 && b.inFlight >= b.config.MaxConcurrent:
		b.totalRejected++
		return false, ErrTooManyConcurrent
	}

	trial = b.state == CircuitHalfOpen
	b.trial = b.trial || trial
	b.inFlight++
	return trial, nil
}

func (b *Breaker) release(err error, cancelled, trial bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.inFlight--
	if trial {
		b.trial = false
	}

	switch {
	case err == nil:
		b.failures = 0
		if trial {
			b.successes++
			if b.successes >= b.config.SuccessThreshold {
				b.state = CircuitClosed
			}
		}
	case cancelled:
	default:
		b.totalFailures++
		b.failures++
		if trial || (b.state == CircuitClosed && b.failures >= b.config.FailureThreshold) {
			b.state = CircuitOpen
			b.openedAt = b.now()
			b.successes = 0
		}
	}
}

// State returns the current state. An open circuit whose cooldown has
// passed reports half-open.
func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == CircuitOpen && b.now().Sub(b.openedAt) >= b.config.Cooldown {
		return CircuitHalfOpen
	}
	return b.state
}

// Stats returns a snapshot of the breaker.
func (b *Breaker) Stats() BreakerStats {
	state := b.State()
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerStats{
		Name:          b.name,
		State:         state,
		Failures:      b.failures,
		InFlight:      b.inFlight,
		TotalRequests: b.totalRequests,
		TotalFailures: b.totalFailures,
		TotalRejected: b.totalRejected,
	}
}

// Reset closes the circuit.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = CircuitClosed
	b.failures = 0
	b.successes = 0
	b.trial = false
}
