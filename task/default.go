package task

import (
	"context"
	"sync"
)

// defaultEngine is built lazily, once, the first time a package-level
// shortcut is used. It carries no circuit breaker and the built-in
// rules only; the *Default functions are thin sugar over this single
// process-wide Engine instance.
var defaultEngine = sync.OnceValue(func() *Engine {
	e, err := New()
	if err != nil {
		// defaultConfig() is always valid; a failure here means the
		// package itself is broken.
		panic(err)
	}
	return e
})

// Default returns the process-wide default Engine, building it on
// first use.
func Default() *Engine {
	return defaultEngine()
}

// RunDefault is Run against the default Engine.
func RunDefault[T any](ctx context.Context, t Task[T], opts ...Option) Result[T] {
	return Run(ctx, Default(), t, opts...)
}

// RunOrThrowDefault is RunOrThrow against the default Engine.
func RunOrThrowDefault[T any](ctx context.Context, t Task[T], opts ...Option) (T, error) {
	return RunOrThrow(ctx, Default(), t, opts...)
}

// AllDefault is All against the default Engine.
func AllDefault[T any](ctx context.Context, tasks []Task[T], opts ...Option) []Result[T] {
	return All(ctx, Default(), tasks, opts...)
}

// AllOrThrowDefault is AllOrThrow against the default Engine.
func AllOrThrowDefault[T any](ctx context.Context, tasks []Task[T], opts ...Option) ([]T, error) {
	return AllOrThrow(ctx, Default(), tasks, opts...)
}
