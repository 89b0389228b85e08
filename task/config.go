package task

import (
	"fmt"
	"time"
)

// RetryConfig configures the attempt-loop's retry policy.
type RetryConfig struct {
	// MaxRetries is the maximum number of retries after the first
	// attempt. Default: 0 (no retries).
	MaxRetries int
	// Strategy computes the base delay per attempt. Default: Fixed(0).
	Strategy Strategy
	// Jitter perturbs the base delay. Default: NoJitter().
	Jitter Jitter
	// ShouldRetry, when set, can veto a retry that would otherwise be
	// allowed. Default: always true.
	ShouldRetry func(attempt int, err *TypedError) bool
}

func (r RetryConfig) withDefaults() RetryConfig {
	if r.Strategy == nil {
		r.Strategy = Fixed(0)
	}
	if r.Jitter == nil {
		r.Jitter = NoJitter()
	}
	if r.ShouldRetry == nil {
		r.ShouldRetry = func(int, *TypedError) bool { return true }
	}
	return r
}

// config is the effective, merged set of options for one call. An
// Engine holds a fully-resolved config as its defaults; Run layers
// per-call Options over a copy of it.
type config struct {
	timeout     time.Duration
	ignoreAbort bool
	retry       RetryConfig

	breakerConfig    *CircuitBreakerConfig
	rebuildBreaker   bool // set only by WithCircuitBreaker
	concurrency      int  // batch only; 0 = unbounded
	concurrencySet   bool
	rules            []Rule
	rulesMode        RulesMode
	fallback         Rule
	rulesOverridden  bool // set when WithRules/WithRulesMode/WithFallback is used
	mapError         func(*TypedError) *TypedError
	hooks            Hooks
	logger           Logger
}

func defaultConfig() config {
	return config{
		ignoreAbort: true,
		retry:       RetryConfig{}.withDefaults(),
		logger:      NoopLogger{},
	}
}

// Option configures an Engine (via New) or overrides a single call
// (via Run/All). Not every Option is meaningful in both contexts: see
// each constructor's doc comment.
type Option func(*config)

// WithTimeout sets the per-attempt timeout. A zero duration disables
// the timeout (the default).
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithIgnoreAbort controls whether an ABORTED error fires OnError in
// addition to OnAbort. Default: true.
func WithIgnoreAbort(ignore bool) Option {
	return func(c *config) { c.ignoreAbort = ignore }
}

// WithRetry sets the retry policy.
func WithRetry(r RetryConfig) Option {
	return func(c *config) { c.retry = r.withDefaults() }
}

// WithCircuitBreaker attaches a circuit breaker. Meaningful only when
// passed to New: an Engine exclusively owns its breaker state, so
// passing this to Run has no effect on breaker identity — it is
// accepted there only so a single Option slice can be shared between
// New and Run call sites.
func WithCircuitBreaker(cfg CircuitBreakerConfig) Option {
	return func(c *config) {
		resolved := cfg.withDefaults()
		c.breakerConfig = &resolved
		c.rebuildBreaker = true
	}
}

// WithConcurrency sets the batch engine's worker cap. n == 0 means
// unbounded; a negative n fails validation. Meaningless outside All.
func WithConcurrency(n int) Option {
	return func(c *config) {
		c.concurrency = n
		c.concurrencySet = true
	}
}

// WithRules sets the user rule list combined with the built-ins
// according to the prevailing RulesMode (RulesExtend by default).
func WithRules(rules ...Rule) Option {
	return func(c *config) {
		c.rules = rules
		c.rulesOverridden = true
	}
}

// WithRulesMode sets how user rules combine with built-ins.
func WithRulesMode(mode RulesMode) Option {
	return func(c *config) {
		c.rulesMode = mode
		c.rulesOverridden = true
	}
}

// WithFallback overrides the normalizer's fallback rule.
func WithFallback(fallback Rule) Option {
	return func(c *config) {
		c.fallback = fallback
		c.rulesOverridden = true
	}
}

// WithMapError installs a post-normalization transform applied to
// every TypedError the engine produces.
func WithMapError(fn func(*TypedError) *TypedError) Option {
	return func(c *config) { c.mapError = fn }
}

// WithHooks sets the observability hooks.
func WithHooks(h Hooks) Option {
	return func(c *config) { c.hooks = h }
}

// WithLogger sets the structured logger.
func WithLogger(l Logger) Option {
	return func(c *config) {
		if l == nil {
			l = NoopLogger{}
		}
		c.logger = l
	}
}

// validate checks the merged config for programmer errors that must
// surface synchronously rather than fail a running call.
func (c config) validate() error {
	if c.timeout < 0 {
		return fmt.Errorf("task: timeout must be >= 0, got %v", c.timeout)
	}
	if c.retry.MaxRetries < 0 {
		return fmt.Errorf("task: retry.MaxRetries must be >= 0, got %d", c.retry.MaxRetries)
	}
	if c.concurrencySet && c.concurrency < 0 {
		return fmt.Errorf("task: concurrency must be >= 0, got %d", c.concurrency)
	}
	return nil
}
