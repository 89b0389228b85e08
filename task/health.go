package task

import (
	"context"
	"fmt"
	"time"
)

// Status is a three-valued health indicator for a Checker's outcome.
type Status int

const (
	StatusHealthy Status = iota
	StatusDegraded
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// HealthResult is one Checker's outcome.
type HealthResult struct {
	Status    Status
	Message   string
	Details   map[string]any
	Timestamp time.Time
}

// Checker reports health. An Engine with a circuit breaker attached
// exposes one via HealthChecker.
type Checker interface {
	Name() string
	Check(ctx context.Context) HealthResult
}

// HealthChecker returns a Checker backed by e's circuit breaker:
// closed maps to healthy, half-open to degraded (the breaker is
// probing recovery), and open to unhealthy. It returns nil if e has
// no circuit breaker configured, since there is then nothing to
// report on beyond "the engine exists."
func (e *Engine) HealthChecker(name string) Checker {
	if e.breaker == nil {
		return nil
	}
	return &breakerChecker{name: name, breaker: e.breaker}
}

type breakerChecker struct {
	name    string
	breaker *CircuitBreaker
}

func (c *breakerChecker) Name() string { return c.name }

func (c *breakerChecker) Check(ctx context.Context) HealthResult {
	state := c.breaker.State()
	details := map[string]any{"state": state.String()}

	switch state {
	case StateClosed:
		return HealthResult{Status: StatusHealthy, Message: "circuit closed", Details: details, Timestamp: defaultNow()}
	case StateHalfOpen:
		return HealthResult{Status: StatusDegraded, Message: "circuit half-open: probing recovery", Details: details, Timestamp: defaultNow()}
	case StateOpen:
		return HealthResult{Status: StatusUnhealthy, Message: "circuit open: rejecting calls", Details: details, Timestamp: defaultNow()}
	default:
		return HealthResult{Status: StatusUnhealthy, Message: fmt.Sprintf("unrecognized circuit state %v", state), Timestamp: defaultNow()}
	}
}
