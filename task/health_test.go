package task

import (
	"context"
	"testing"
	"time"
)

func TestHealthChecker_NilWithoutBreaker(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if c := e.HealthChecker("engine"); c != nil {
		t.Error("HealthChecker should be nil when the Engine has no circuit breaker")
	}
}

func TestHealthChecker_ReflectsBreakerState(t *testing.T) {
	e, err := New(WithCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour}))
	if err != nil {
		t.Fatal(err)
	}

	checker := e.HealthChecker("engine")
	if checker == nil {
		t.Fatal("HealthChecker should be non-nil when a circuit breaker is configured")
	}
	if checker.Name() != "engine" {
		t.Errorf("Name() = %q, want %q", checker.Name(), "engine")
	}

	if got := checker.Check(context.Background()).Status; got != StatusHealthy {
		t.Errorf("initial Status = %v, want StatusHealthy", got)
	}

	Run(context.Background(), e, func(ctx context.Context) (int, error) {
		return 0, fakeHTTPError{status: 500}
	})

	if got := checker.Check(context.Background()).Status; got != StatusUnhealthy {
		t.Errorf("Status after the breaker opens = %v, want StatusUnhealthy", got)
	}
}

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusHealthy, "healthy"},
		{StatusDegraded, "degraded"},
		{StatusUnhealthy, "unhealthy"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
