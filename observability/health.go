package observability

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// HealthStatus is the state reported by a health check.
type HealthStatus string

const (
	HealthStatusUp       HealthStatus = "up"
	HealthStatusDegraded HealthStatus = "degraded"
	HealthStatusDown     HealthStatus = "down"
)

// severity orders statuses so the worst component decides the report.
func (s HealthStatus) severity() int {
	switch s {
	case HealthStatusUp:
		return 0
	case HealthStatusDegraded:
		return 1
	default:
		return 2
	}
}

// Health is one component's check result.
type Health struct {
	Name    string            `json:"name"`
	Status  HealthStatus      `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
	Latency time.Duration     `json:"latency_ns,omitempty"`
}

// HealthChecker is implemented by components that can report their health.
// The store backends implement it.
type HealthChecker interface {
	CheckHealth(ctx context.Context) Health
}

// HealthFunc adapts a function to HealthChecker.
type HealthFunc func(ctx context.Context) Health

func (f HealthFunc) CheckHealth(ctx context.Context) Health { return f(ctx) }

type namedChecker struct {
	name string
	HealthChecker
}

// Named reports c's results under name, including timeouts and panics.
func Named(name string, c HealthChecker) HealthChecker {
	return namedChecker{name: name, HealthChecker: c}
}

func (n namedChecker) CheckHealth(ctx context.Context) Health {
	h := n.HealthChecker.CheckHealth(ctx)
	h.Name = n.name
	return h
}

// ServiceHealth is the aggregated report served at /health.
type ServiceHealth struct {
	Service    string       `json:"service"`
	Status     HealthStatus `json:"status"`
	Version    string       `json:"version,omitempty"`
	Components []Health     `json:"components,omitempty"`
}

// NewServiceHealth creates a report with status up.
func NewServiceHealth(service, version string) *ServiceHealth {
	return &ServiceHealth{Service: service, Status: HealthStatusUp, Version: version}
}

// AddComponent records a result; the report takes the worst status seen.
func (sh *ServiceHealth) AddComponent(h Health) {
	sh.Components = append(sh.Components, h)
	if h.Status.severity() > sh.Status.severity() {
		sh.Status = h.Status
	}
}

// Unhealthy returns the components that are not up.
func (sh *ServiceHealth) Unhealthy() []Health {
	var out []Health
	for _, h := range sh.Components {
		if h.Status != HealthStatusUp {
			out = append(out, h)
		}
	}
	return out
}

// CheckAll runs every checker concurrently and aggregates the results,
// ordered by component name. A checker still running when ctx ends is
// reported down; a panicking checker is reported down with its message.
func CheckAll(ctx context.Context, service, version string, checkers ...HealthChecker) *ServiceHealth {
	results := make([]Health, len(checkers))
	var wg sync.WaitGroup
	for i, c := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = runCheck(ctx, c)
		}()
	}
	wg.Wait()

	slices.SortStableFunc(results, func(a, b Health) int { return cmp.Compare(a.Name, b.Name) })
	report := NewServiceHealth(service, version)
	for _, h := range results {
		report.AddComponent(h)
	}
	return report
}

func runCheck(ctx context.Context, c HealthChecker) Health {
	start := time.Now()
	done := make(chan Health, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- Health{Status: HealthStatusDown, Message: fmt.Sprintf("check panicked: %v", r)}
			}
		}()
		done <- c.CheckHealth(ctx)
	}()

	var h Health
	select {
	case h = <-done:
	case <-ctx.Done():
		h = Health{Status: HealthStatusDown, Message: "check timed out"}
	}
	if n, ok := c.(namedChecker); ok {
		h.Name = n.name
	}
	if h.Status == "" {
		h.Status = HealthStatusDown
	}
	h.Latency = time.Since(start)
	return h
}
