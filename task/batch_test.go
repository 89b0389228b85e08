package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestAll_EmptyInput(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatal(err)
	}
	results := All[int](context.Background(), e, nil)
	if len(results) != 0 {
		t.Errorf("All(nil) = %v, want empty slice", results)
	}
}

func TestAll_PreservesPositionalOrder(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatal(err)
	}

	tasks := make([]Task[int], 10)
	for i := range tasks {
		i := i
		tasks[i] = func(ctx context.Context) (int, error) {
			if i%2 == 0 {
				time.Sleep(time.Millisecond)
			}
			return i, nil
		}
	}

	results := All(context.Background(), e, tasks)
	for i, r := range results {
		if !r.Ok() || r.Data != i {
			t.Errorf("results[%d] = %+v, want Ok with Data=%d", i, r, i)
		}
	}
}

func TestAll_MixedOutcomes(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatal(err)
	}

	tasks := []Task[int]{
		func(ctx context.Context) (int, error) { return 1, nil },
		func(ctx context.Context) (int, error) { return 0, fakeHTTPError{status: 500} },
		func(ctx context.Context) (int, error) { return 0, errors.New("plain failure") },
	}

	results := All(context.Background(), e, tasks)
	p := PartitionAll(results)

	if len(p.OK) != 1 {
		t.Errorf("len(OK) = %d, want 1", len(p.OK))
	}
	if len(p.Errors) != 2 {
		t.Errorf("len(Errors) = %d, want 2", len(p.Errors))
	}
}

func TestAll_RespectsConcurrencyLimit(t *testing.T) {
	e, err := New(WithConcurrency(2))
	if err != nil {
		t.Fatal(err)
	}

	var inFlight, maxInFlight int32
	tasks := make([]Task[int], 8)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) (int, error) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				max := atomic.LoadInt32(&maxInFlight)
				if n <= max || atomic.CompareAndSwapInt32(&maxInFlight, max, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return 1, nil
		}
	}

	All(context.Background(), e, tasks)

	if got := atomic.LoadInt32(&maxInFlight); got > 2 {
		t.Errorf("max concurrent tasks = %d, want <= 2", got)
	}
}

func TestAll_OuterCancellationAbortsRemaining(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tasks := []Task[int]{
		func(ctx context.Context) (int, error) { return 1, nil },
		func(ctx context.Context) (int, error) { return 2, nil },
	}

	results := All(ctx, e, tasks)
	for i, r := range results {
		if r.Type != ResultAborted {
			t.Errorf("results[%d].Type = %v, want ResultAborted", i, r.Type)
		}
	}
}

func TestAllOrThrow_AllSucceed(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatal(err)
	}

	tasks := []Task[int]{
		func(ctx context.Context) (int, error) { return 1, nil },
		func(ctx context.Context) (int, error) { return 2, nil },
	}

	values, err := AllOrThrow(context.Background(), e, tasks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(values) != 2 || values[0] != 1 || values[1] != 2 {
		t.Errorf("values = %v, want [1 2]", values)
	}
}

func TestAllOrThrow_FirstErrorWins(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatal(err)
	}

	tasks := []Task[int]{
		func(ctx context.Context) (int, error) { return 1, nil },
		func(ctx context.Context) (int, error) { return 0, fakeHTTPError{status: 500} },
	}

	_, err = AllOrThrow(context.Background(), e, tasks)
	if err == nil {
		t.Fatal("expected an error when any task fails")
	}
}
