package task

import (
	"context"
	"fmt"
	"time"
)

// Task is the caller's unit of work. It is invoked once per attempt,
// synchronously on a goroutine the engine owns; it may block or
// return immediately.
type Task[T any] func(ctx context.Context) (T, error)

// Engine orchestrates Run/All calls sharing one circuit breaker,
// one normalizer, and one set of default options. An Engine is safe
// for concurrent use: the only mutable shared state is the breaker,
// which guards itself with a mutex.
type Engine struct {
	defaults   config
	normalizer *Normalizer
	breaker    *CircuitBreaker
}

// New creates an Engine from opts, validating the merged config and
// building the normalizer up front so a duplicate-code rule list
// fails at construction rather than on first use.
func New(opts ...Option) (*Engine, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return newEngineFromConfig(cfg)
}

func newEngineFromConfig(cfg config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	norm, err := NewNormalizer(cfg.rules, cfg.rulesMode, cfg.fallback)
	if err != nil {
		return nil, err
	}

	var breaker *CircuitBreaker
	if cfg.breakerConfig != nil {
		breaker = NewCircuitBreaker(*cfg.breakerConfig)
	}

	return &Engine{defaults: cfg, normalizer: norm, breaker: breaker}, nil
}

// WithConfig derives a new Engine, layering opts over e's defaults. A
// WithCircuitBreaker option in opts builds a fresh, independent
// breaker for the derived Engine; otherwise the derived Engine keeps
// using e's breaker instance directly, so both Engines admit and
// record against the same mutable breaker state. The normalizer is
// also shared unless opts override the rules, but it is immutable
// after construction.
func (e *Engine) WithConfig(opts ...Option) (*Engine, error) {
	cfg := e.defaults
	cfg.rebuildBreaker = false
	cfg.rulesOverridden = false
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	norm := e.normalizer
	if cfg.rulesOverridden {
		var err error
		norm, err = NewNormalizer(cfg.rules, cfg.rulesMode, cfg.fallback)
		if err != nil {
			return nil, err
		}
	}

	breaker := e.breaker
	if cfg.rebuildBreaker {
		breaker = NewCircuitBreaker(*cfg.breakerConfig)
	}

	return &Engine{defaults: cfg, normalizer: norm, breaker: breaker}, nil
}

// mergeCall layers per-call opts over e's defaults, returning the
// effective config and the normalizer to use for this call.
func (e *Engine) mergeCall(opts []Option) (config, *Normalizer, error) {
	cfg := e.defaults
	cfg.rulesOverridden = false
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return config{}, nil, err
	}

	norm := e.normalizer
	if cfg.rulesOverridden {
		var err error
		norm, err = NewNormalizer(cfg.rules, cfg.rulesMode, cfg.fallback)
		if err != nil {
			return config{}, nil, err
		}
	}
	return cfg, norm, nil
}

// Run executes t through e's attempt loop once: config resolution,
// breaker admission, an outer-cancellation check, the attempt loop
// itself (attempt, retry decision, delay), outcome packaging, and a
// final breaker update. It never panics on a failed or timed-out or
// aborted task: those are reported through Result.Type. An invalid
// merged configuration is a programmer error and panics synchronously
// instead of surfacing as a runtime failure.
func Run[T any](ctx context.Context, e *Engine, t Task[T], opts ...Option) Result[T] {
	cfg, norm, err := e.mergeCall(opts)
	if err != nil {
		panic(err)
	}

	run := &callRun[T]{
		ctx:    ctx,
		e:      e,
		cfg:    cfg,
		norm:   norm,
		task:   t,
		callID: newCallID(),
		start:  defaultNow(),
	}
	return run.execute()
}

// RunOrThrow executes t and returns (data, nil) on success or
// (zero, normalizedErr) otherwise — the error-returning counterpart
// to Run, for callers that prefer idiomatic Go error handling over
// branching on Result.Type.
func RunOrThrow[T any](ctx context.Context, e *Engine, t Task[T], opts ...Option) (T, error) {
	res := Run(ctx, e, t, opts...)
	if res.Ok() {
		return res.Data, nil
	}
	var zero T
	return zero, res.Error
}

// callRun holds the mutable state of one Run invocation.
type callRun[T any] struct {
	ctx    context.Context
	e      *Engine
	cfg    config
	norm   *Normalizer
	task   Task[T]
	callID string
	start  time.Time

	retryHistory []RetryHistoryEntry
	lastError    *TypedError
	abortFired   bool
}

func (r *callRun[T]) execute() Result[T] {
	// Step 2: breaker admission.
	if r.e.breaker != nil {
		admitted, nextAttempt, prevState, newState := r.e.breaker.admitTransition()
		if prevState != newState {
			r.cfg.hooks.fireCircuitStateChange(prevState, newState)
		}
		if !admitted {
			err := newTypedError(CodeCircuitOpen, "circuit breaker is open", false)
			err.Meta = map[string]any{"nextAttempt": nextAttempt}
			err = r.mapErr(err)
			m := r.metrics(0)
			m.LastError = err
			r.cfg.hooks.fireFinally(r.ctx, m)
			return failureResult[T](err, m)
		}
	}

	// Step 3: outer-signal short-circuit.
	if r.ctx.Err() != nil {
		err := r.normalize(errAborted)
		r.fireAbortOnce(err)
		m := r.metrics(0)
		m.LastError = err
		if !(r.cfg.ignoreAbort && err.Code == CodeAborted) {
			r.cfg.hooks.fireError(r.ctx, err, m)
		}
		r.recordOutcome(err)
		r.cfg.hooks.fireFinally(r.ctx, m)
		return failureResult[T](err, m)
	}

	// Steps 4-6: attempt loop.
	attempt := 1
	for {
		v, normErr, attemptDone := r.runAttempt(attempt)
		if attemptDone {
			m := r.metrics(attempt)
			r.cfg.hooks.fireSuccess(r.ctx, v, m)
			safeLog(func() {
				r.cfg.logger.Info(r.ctx, "task attempt succeeded", Field{"call_id", r.callID}, Field{"attempt", attempt})
			})
			r.recordOutcome(nil)
			r.cfg.hooks.fireFinally(r.ctx, m)
			return successResult[T](v, m)
		}

		r.lastError = normErr
		if normErr.Code == CodeAborted {
			r.fireAbortOnce(normErr)
		}
		if !(r.cfg.ignoreAbort && normErr.Code == CodeAborted) {
			m := r.metrics(attempt)
			r.cfg.hooks.fireError(r.ctx, normErr, m)
			safeLog(func() {
				r.cfg.logger.Error(r.ctx, "task attempt failed", Field{"call_id", r.callID}, Field{"attempt", attempt}, Field{"code", string(normErr.Code)})
			})
		}

		stop, terminalErr := r.shouldStop(attempt, normErr)
		if stop {
			m := r.metrics(attempt)
			m.LastError = terminalErr
			r.recordOutcome(terminalErr)
			r.cfg.hooks.fireFinally(r.ctx, m)
			return failureResult[T](terminalErr, m)
		}

		delay := r.computeDelay(attempt, normErr)
		r.retryHistory = append(r.retryHistory, RetryHistoryEntry{
			Attempt: attempt, Err: normErr, Delay: delay, Timestamp: defaultNow(),
		})
		r.cfg.hooks.fireRetry(r.ctx, attempt, normErr, delay)
		safeLog(func() {
			r.cfg.logger.Info(r.ctx, "retrying task", Field{"call_id", r.callID}, Field{"attempt", attempt}, Field{"delay_ms", delay.Milliseconds()})
		})

		if abortedBySleep, abortErr := r.sleep(delay); abortedBySleep {
			m := r.metrics(attempt)
			m.LastError = abortErr
			r.recordOutcome(abortErr)
			r.cfg.hooks.fireFinally(r.ctx, m)
			return failureResult[T](abortErr, m)
		}

		attempt++
	}
}

// runAttempt runs one attempt, returning either the task's value with
// attemptDone=true, or a normalized error with attemptDone=false.
func (r *callRun[T]) runAttempt(attempt int) (val T, normErr *TypedError, attemptDone bool) {
	attemptCtx, attemptCancel := composeCancel(r.ctx)
	defer attemptCancel()

	type outcome struct {
		v   T
		err error
	}
	resultCh := make(chan outcome, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				var zero T
				resultCh <- outcome{v: zero, err: fmt.Errorf("task: panicked: %v", p)}
			}
		}()
		v, err := r.task(attemptCtx)
		resultCh <- outcome{v: v, err: err}
	}()

	var timeoutCh <-chan time.Time
	if r.cfg.timeout > 0 {
		timer := time.NewTimer(r.cfg.timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case o := <-resultCh:
		if o.err == nil {
			return o.v, nil, true
		}
		return val, r.normalize(o.err), false

	case <-timeoutCh:
		// Trip the inner cancel before surfacing the timeout so a
		// cooperating task observes ctx cancellation and can clean up.
		attemptCancel()
		return val, r.normalize(errAttemptTimeout), false

	case <-r.ctx.Done():
		attemptCancel()
		return val, r.normalize(errAborted), false
	}
}

// shouldStop decides whether attempt's error is terminal: aborted,
// non-retryable, past MaxRetries, or vetoed by ShouldRetry.
func (r *callRun[T]) shouldStop(attempt int, err *TypedError) (stop bool, terminal *TypedError) {
	if err.Code == CodeAborted {
		return true, err
	}
	if !err.Retryable {
		return true, err
	}
	if attempt > r.cfg.retry.MaxRetries {
		return true, err
	}
	if !r.cfg.retry.ShouldRetry(attempt, err) {
		return true, err
	}
	return false, nil
}

// computeDelay applies the retry strategy then the jitter.
func (r *callRun[T]) computeDelay(attempt int, err *TypedError) time.Duration {
	base := r.cfg.retry.Strategy.Delay(attempt, err)
	if base < 0 {
		base = 0
	}
	return r.cfg.retry.Jitter.Apply(base, nil)
}

// sleep waits d, returning (true, abortedError) if the outer context
// fires first.
func (r *callRun[T]) sleep(d time.Duration) (aborted bool, err *TypedError) {
	if d <= 0 {
		select {
		case <-r.ctx.Done():
			return true, r.normalize(errAborted)
		default:
			return false, nil
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return false, nil
	case <-r.ctx.Done():
		return true, r.normalize(errAborted)
	}
}

func (r *callRun[T]) normalize(raw any) *TypedError {
	e := r.norm.Normalize(raw)
	return r.mapErr(e)
}

func (r *callRun[T]) mapErr(e *TypedError) *TypedError {
	if r.cfg.mapError != nil && e != nil {
		if mapped := r.cfg.mapError(e); mapped != nil {
			return mapped
		}
	}
	return e
}

func (r *callRun[T]) fireAbortOnce(err *TypedError) {
	if r.abortFired {
		return
	}
	r.abortFired = true
	r.cfg.hooks.fireAbort(r.ctx, err)
	safeLog(func() {
		r.cfg.logger.Warn(r.ctx, "task aborted", Field{"call_id", r.callID})
	})
}

func (r *callRun[T]) metrics(attempts int) Metrics {
	return Metrics{
		TotalAttempts: attempts,
		TotalRetries:  maxInt(0, attempts-1),
		TotalDuration: defaultNow().Sub(r.start),
		LastError:     r.lastError,
		RetryHistory:  r.retryHistory,
	}
}

// recordOutcome updates the breaker (step 8) and observes/fires a
// second state-change diff. err is nil on success.
func (r *callRun[T]) recordOutcome(err *TypedError) {
	if r.e.breaker == nil {
		return
	}
	prevState := r.e.breaker.State()
	if err == nil {
		r.e.breaker.RecordSuccess()
	} else {
		r.e.breaker.RecordFailure(err)
	}
	newState := r.e.breaker.State()
	if prevState != newState {
		r.cfg.hooks.fireCircuitStateChange(prevState, newState)
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
