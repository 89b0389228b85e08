// Package task provides a resilient asynchronous task executor: typed
// error normalization, configurable backoff and jitter, composite
// cancellation, a circuit breaker, and single-task and bounded-batch
// engines built on top of them.
//
// # Pipeline
//
// Run drives one Task through a fixed sequence; it is not a
// reorderable middleware chain:
//
//	┌────────────────────────────────────────────────────────────────┐
//	│                         Run[T] call                            │
//	├────────────────────────────────────────────────────────────────┤
//	│                                                                 │
//	│  breaker.Admit() ──reject──▶ CIRCUIT_OPEN result                │
//	│       │ admit                                                   │
//	│       ▼                                                         │
//	│  ctx already done ──yes──▶ ABORTED result                       │
//	│       │ no                                                      │
//	│       ▼                                                         │
//	│  ┌──────────────────────────────┐                               │
//	│  │ attempt loop                 │◀─────────────┐                │
//	│  │  composeCancel(ctx)          │               │                │
//	│  │  run task, race timeout/ctx  │               │ retry          │
//	│  │  normalize(raw) -> TypedErr  │               │                │
//	│  │  retryable? strategy+jitter  │───────────────┘                │
//	│  └──────────────────────────────┘                               │
//	│       │ terminal                                                 │
//	│       ▼                                                         │
//	│  breaker.RecordSuccess/Failure ──▶ Result[T] + Metrics           │
//	│                                                                 │
//	└────────────────────────────────────────────────────────────────┘
//
// All[T] runs a slice of Tasks through the same Engine, bounded by
// WithConcurrency, and returns one Result per task in input order.
//
// # Error Normalization
//
// Every failure a Task raises — a panic value, a typed application
// error, a network error, an HTTP status — passes through a
// Normalizer before the engine ever inspects it. Built-in Rules
// recognize context cancellation/deadlines, *TypedError passthrough,
// HTTP-status-shaped errors, and common network error patterns;
// [InstanceOf] builds a Rule matching a specific Go error type.
// Rules are tried in order and the first match wins; an unmatched raw
// value falls through to the fallback Rule.
//
// # Circuit Breaker
//
// [CircuitBreaker] never calls back into anything — it exposes only
// admission, success/failure recording, and a read-only State. The
// engine compares the breaker's state across admission and across the
// final success/failure record, and fires OnCircuitStateChange itself
// when it changes.
//
// # Observability
//
// [Hooks] are fire-and-forget callbacks, isolated from control flow
// by a panic-recovering wrapper; a failing hook can never change a
// Run call's outcome. [Telemetry] wires the same call lifecycle into
// OpenTelemetry metrics and tracing; compose its Hooks with your own
// via [ComposeHooks].
package task
