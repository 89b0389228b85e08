package task

import (
	"sync"
	"testing"
	"time"
)

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})

	if cb.config.FailureThreshold != 5 {
		t.Errorf("FailureThreshold = %d, want 5", cb.config.FailureThreshold)
	}
	if cb.config.ResetTimeout != 30*time.Second {
		t.Errorf("ResetTimeout = %v, want 30s", cb.config.ResetTimeout)
	}
	if cb.config.HalfOpenRequests != 1 {
		t.Errorf("HalfOpenRequests = %d, want 1", cb.config.HalfOpenRequests)
	}
	if cb.State() != StateClosed {
		t.Errorf("initial state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Hour})
	err := newTypedError(CodeNetwork, "boom", true)

	for i := 0; i < 2; i++ {
		admitted, _ := cb.Admit()
		if !admitted {
			t.Fatalf("attempt %d: not admitted while closed", i)
		}
		cb.RecordFailure(err)
		if cb.State() != StateClosed {
			t.Errorf("after %d failures, state = %v, want closed", i+1, cb.State())
		}
	}

	cb.RecordFailure(err)
	if cb.State() != StateOpen {
		t.Fatalf("after 3 failures, state = %v, want open", cb.State())
	}

	admitted, next := cb.Admit()
	if admitted {
		t.Error("Admit() returned true while open")
	}
	if next.IsZero() {
		t.Error("Admit() next attempt time is zero while open")
	}
}

func TestCircuitBreaker_HalfOpenAfterResetTimeout(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Millisecond})
	cb.RecordFailure(newTypedError(CodeNetwork, "boom", true))

	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	time.Sleep(20 * time.Millisecond)

	if cb.State() != StateHalfOpen {
		t.Errorf("state = %v, want half-open", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenProbeBudget(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     10 * time.Millisecond,
		HalfOpenRequests: 1,
	})
	cb.RecordFailure(newTypedError(CodeNetwork, "boom", true))
	time.Sleep(20 * time.Millisecond)

	admitted, _ := cb.Admit()
	if !admitted {
		t.Fatal("first half-open probe should be admitted")
	}
	admitted, _ = cb.Admit()
	if admitted {
		t.Error("second half-open probe should be rejected: budget exhausted")
	}
}

func TestCircuitBreaker_HalfOpenSuccessCloses(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Millisecond})
	cb.RecordFailure(newTypedError(CodeNetwork, "boom", true))
	time.Sleep(20 * time.Millisecond)

	cb.Admit()
	cb.RecordSuccess()

	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Millisecond})
	cb.RecordFailure(newTypedError(CodeNetwork, "boom", true))
	time.Sleep(20 * time.Millisecond)

	cb.Admit()
	cb.RecordFailure(newTypedError(CodeNetwork, "boom again", true))

	if cb.State() != StateOpen {
		t.Errorf("state = %v, want open", cb.State())
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Hour})
	err := newTypedError(CodeNetwork, "boom", true)

	cb.RecordFailure(err)
	cb.RecordFailure(err)
	cb.RecordSuccess()
	cb.RecordFailure(err)
	cb.RecordFailure(err)

	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed: success should have reset the failure count", cb.State())
	}
}

func TestCircuitBreaker_ShouldCountAsFailureSuppression(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold:     1,
		ShouldCountAsFailure: func(e *TypedError) bool { return e.Code != CodeValidation },
	})
	cb.RecordFailure(newTypedError(CodeValidation, "bad input", false))

	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed: validation errors should not count", cb.State())
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour})
	cb.RecordFailure(newTypedError(CodeNetwork, "boom", true))

	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	cb.Reset()

	if cb.State() != StateClosed {
		t.Errorf("after Reset, state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_ConcurrentUse(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1000, ResetTimeout: time.Hour})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cb.Admit()
			cb.RecordFailure(newTypedError(CodeNetwork, "boom", true))
			cb.State()
		}()
	}
	wg.Wait()
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("State.String() = %v, want %v", got, tt.want)
			}
		})
	}
}
