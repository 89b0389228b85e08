package task

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// All runs tasks concurrently through e, bounded by WithConcurrency
// (0 or unset means unbounded), and returns one Result per task in
// the same order as tasks, regardless of completion order. All never
// returns an error itself: per-task failures are reported in each
// Result.
//
// The outer ctx governs every task uniformly: cancelling it aborts
// any task still running or not yet started. All does not fail fast
// on the first error — every task runs to its own completion (success,
// failure, or abort) before All returns.
func All[T any](ctx context.Context, e *Engine, tasks []Task[T], opts ...Option) []Result[T] {
	results := make([]Result[T], len(tasks))
	if len(tasks) == 0 {
		return results
	}

	cfg, _, err := e.mergeCall(opts)
	if err != nil {
		panic(err)
	}

	limit := int64(cfg.concurrency)
	var sem *semaphore.Weighted
	if cfg.concurrencySet && cfg.concurrency > 0 {
		sem = semaphore.NewWeighted(limit)
	}

	done := make(chan struct{})
	for i, t := range tasks {
		i, t := i, t
		go func() {
			if sem != nil {
				if acqErr := sem.Acquire(ctx, 1); acqErr != nil {
					// ctx was cancelled while waiting for a slot: report
					// the slot itself as an aborted result, matching the
					// outcome a task would have reported had it run and
					// observed ctx.Done immediately.
					results[i] = abortedBeforeStart[T](e, cfg)
					done <- struct{}{}
					return
				}
				defer sem.Release(1)
			}
			results[i] = Run(ctx, e, t, opts...)
			done <- struct{}{}
		}()
	}

	for range tasks {
		<-done
	}
	return results
}

// abortedBeforeStart builds the Result a task would have produced had
// it been admitted and immediately observed ctx already done — used
// only for the semaphore-starvation edge case where a batch slot is
// never acquired because the batch's context was cancelled first.
func abortedBeforeStart[T any](e *Engine, cfg config) Result[T] {
	norm := e.normalizer
	err := norm.Normalize(errAborted)
	if cfg.mapError != nil {
		if mapped := cfg.mapError(err); mapped != nil {
			err = mapped
		}
	}
	return failureResult[T](err, Metrics{LastError: err})
}

// AllOrThrow runs All and returns the Error of the first result, in
// task order, that did not succeed, or the slice of successful values
// in task order otherwise. It is a convenience wrapper for callers that want
// all-or-nothing semantics instead of per-task Results.
func AllOrThrow[T any](ctx context.Context, e *Engine, tasks []Task[T], opts ...Option) ([]T, error) {
	results := All(ctx, e, tasks, opts...)
	values := make([]T, len(results))
	for i, r := range results {
		if !r.Ok() {
			return nil, r.Error
		}
		values[i] = r.Data
	}
	return values, nil
}
