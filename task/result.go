package task

import "time"

// ResultType discriminates the outcome of a single Run call.
type ResultType string

const (
	ResultSuccess ResultType = "success"
	ResultFailure ResultType = "failure"
	ResultTimeout ResultType = "timeout"
	ResultAborted ResultType = "aborted"
)

// RetryHistoryEntry records one retry decision: the attempt that
// failed, the normalized error that triggered the retry, the delay
// applied before the next attempt, and when the decision was made.
type RetryHistoryEntry struct {
	Attempt   int
	Err       *TypedError
	Delay     time.Duration
	Timestamp time.Time
}

// Metrics summarizes a single Run call. TotalAttempts is at least 1
// whenever the task was entered (it is 0 only for calls rejected
// before the first attempt: breaker-open or already-aborted).
type Metrics struct {
	TotalAttempts int
	TotalRetries  int
	TotalDuration time.Duration
	LastError     *TypedError
	RetryHistory  []RetryHistoryEntry
}

// Result is the non-throwing outcome of a Run call. Exactly one of
// Data/Error is meaningful, selected by Type: Ok() reports whether
// Type is ResultSuccess.
type Result[T any] struct {
	Type    ResultType
	Data    T
	Error   *TypedError
	Metrics Metrics
}

// Ok reports whether the call succeeded.
func (r Result[T]) Ok() bool { return r.Type == ResultSuccess }

func successResult[T any](data T, m Metrics) Result[T] {
	return Result[T]{Type: ResultSuccess, Data: data, Metrics: m}
}

func failureResult[T any](e *TypedError, m Metrics) Result[T] {
	rt := ResultFailure
	switch e.Code {
	case CodeTimeout:
		rt = ResultTimeout
	case CodeAborted:
		rt = ResultAborted
	}
	return Result[T]{Type: rt, Error: e, Metrics: m}
}
