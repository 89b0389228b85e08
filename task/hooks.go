package task

import (
	"context"
	"time"
)

// Hooks are optional observability callbacks. They never affect
// control flow or Metrics: every call below goes through safeHook,
// which recovers and discards a panicking hook. Hooks are never
// retried.
//
// OnSuccess/OnError receive data/err as `any` rather than a generic
// T because a single Engine (and its Hooks) is shared across Run
// calls of differing result types.
type Hooks struct {
	OnSuccess            func(ctx context.Context, data any, metrics Metrics)
	OnError              func(ctx context.Context, err *TypedError, metrics Metrics)
	OnRetry              func(ctx context.Context, attempt int, err *TypedError, delay time.Duration)
	OnFinally            func(ctx context.Context, metrics Metrics)
	OnAbort              func(ctx context.Context, err *TypedError)
	OnCircuitStateChange func(from, to State)
}

// safeHook invokes fn, recovering and discarding any panic so a
// misbehaving observability callback can never change a Run call's
// outcome.
func safeHook(fn func()) {
	defer func() { _ = recover() }()
	fn()
}

func (h Hooks) fireSuccess(ctx context.Context, data any, m Metrics) {
	if h.OnSuccess != nil {
		safeHook(func() { h.OnSuccess(ctx, data, m) })
	}
}

func (h Hooks) fireError(ctx context.Context, err *TypedError, m Metrics) {
	if h.OnError != nil {
		safeHook(func() { h.OnError(ctx, err, m) })
	}
}

func (h Hooks) fireRetry(ctx context.Context, attempt int, err *TypedError, delay time.Duration) {
	if h.OnRetry != nil {
		safeHook(func() { h.OnRetry(ctx, attempt, err, delay) })
	}
}

func (h Hooks) fireFinally(ctx context.Context, m Metrics) {
	if h.OnFinally != nil {
		safeHook(func() { h.OnFinally(ctx, m) })
	}
}

func (h Hooks) fireAbort(ctx context.Context, err *TypedError) {
	if h.OnAbort != nil {
		safeHook(func() { h.OnAbort(ctx, err) })
	}
}

func (h Hooks) fireCircuitStateChange(from, to State) {
	if h.OnCircuitStateChange != nil {
		safeHook(func() { h.OnCircuitStateChange(from, to) })
	}
}
