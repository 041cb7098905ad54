package resilience

import (
	"context"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentHealth represents the health of a single component.
type ComponentHealth struct {
	Name    string        `json:"name"`
	Status  HealthStatus  `json:"status"`
	Message string        `json:"message,omitempty"`
	Latency time.Duration `json:"latency_ns"`
}

// HealthCheck checks one component.
type HealthCheck func(ctx context.Context) ComponentHealth

// HealthReport is the result of running every check.
type HealthReport struct {
	Status     HealthStatus      `json:"status"`
	Components []ComponentHealth `json:"components"`
	CheckedAt  time.Time         `json:"checked_at"`
	Uptime     string            `json:"uptime"`
}

// HealthChecker runs registered component checks.
type HealthChecker struct {
	mu      sync.RWMutex
	checks  map[string]HealthCheck
	timeout time.Duration
	started time.Time
}

// NewHealthChecker creates a checker that gives each check at most timeout.
func NewHealthChecker(timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthChecker{
		checks:  make(map[string]HealthCheck),
		timeout: timeout,
		started: time.Now(),
	}
}

// Register adds or replaces the check for name.
func (h *HealthChecker) Register(name string, check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// Check runs every check concurrently. The overall status is the worst
// component status.
func (h *HealthChecker) Check(ctx context.Context) HealthReport {
	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	checks := make(map[string]HealthCheck, len(h.checks))
	for name, c := range h.checks {
		checks[name] = c
	}
	h.mu.RUnlock()
	sort.Strings(names)

	results := make([]ComponentHealth, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
			defer cancel()

			start := time.Now()
			res := checks[name](checkCtx)
			res.Name = name
			res.Latency = time.Since(start)
			results[i] = res
		}(i, name)
	}
	wg.Wait()

	report := HealthReport{
		Status:     HealthStatusHealthy,
		Components: results,
		CheckedAt:  time.Now().UTC(),
		Uptime:     time.Since(h.started).Round(time.Second).String(),
	}
	for _, c := range results {
		report.Status = worse(report.Status, c.Status)
	}
	return report
}

func worse(a, b HealthStatus) HealthStatus {
	rank := map[HealthStatus]int{
		HealthStatusHealthy:   0,
		HealthStatusDegraded:  1,
		HealthStatusUnhealthy: 2,
	}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// PingCheck reports unhealthy when ping fails.
func PingCheck(ping func(ctx context.Context) error) HealthCheck {
	return func(ctx context.Context) ComponentHealth {
		if err := ping(ctx); err != nil {
			return ComponentHealth{Status: HealthStatusUnhealthy, Message: err.Error()}
		}
		return ComponentHealth{Status: HealthStatusHealthy}
	}
}

// BreakerCheck reports degraded while b is not closed.
func BreakerCheck(b *Breaker) HealthCheck {
	return func(ctx context.Context) ComponentHealth {
		state := b.State()
		if state != CircuitClosed {
			return ComponentHealth{Status: HealthStatusDegraded, Message: "circuit " + string(state)}
		}
		return ComponentHealth{Status: HealthStatusHealthy}
	}
}
