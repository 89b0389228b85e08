package task

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strings"
)

// errAborted is the internal sentinel the engine raises when it
// observes an already-cancelled or caller-cancelled context. It is
// never returned from Run; it exists only as a normalizer input.
var errAborted = errors.New("task: aborted")

// errAttemptTimeout is the internal sentinel raised when a per-attempt
// timeout fires.
var errAttemptTimeout = errors.New("task: attempt timeout")

// httpStatuser is implemented by raw values that carry an HTTP-style
// numeric status code.
type httpStatuser interface {
	StatusCode() int
}

// networkMessagePattern is a brittle, locale-dependent message
// heuristic. Callers who find it too broad or too narrow should
// override network classification with their own Rule via WithRules
// rather than ask for this pattern to be tightened.
var networkMessagePattern = regexp.MustCompile(`(?i)fetch failed|network`)

// typedRule passes an already-normalized TypedError straight through.
func typedRule(raw any) (*TypedError, bool) {
	if e, ok := raw.(*TypedError); ok {
		return e, true
	}
	return nil, false
}

// abortRule classifies context cancellation (and the engine's own
// abort sentinel) as CodeAborted, never retryable.
func abortRule(raw any) (*TypedError, bool) {
	err, ok := raw.(error)
	if !ok {
		return nil, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, errAborted) {
		e := newTypedError(CodeAborted, "operation was aborted", false)
		e.Cause = err
		e.Raw = raw
		return e, true
	}
	return nil, false
}

// timeoutRule classifies context deadline exceeded (and the engine's
// own attempt-timeout sentinel) as CodeTimeout, retryable by default.
func timeoutRule(raw any) (*TypedError, bool) {
	err, ok := raw.(error)
	if !ok {
		return nil, false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, errAttemptTimeout) {
		e := newTypedError(CodeTimeout, "operation timed out", true)
		e.Cause = err
		e.Raw = raw
		return e, true
	}
	return nil, false
}

// httpRule classifies values carrying an HTTP status >= 400 as
// CodeHTTP, retryable iff status >= 500 or status == 429.
func httpRule(raw any) (*TypedError, bool) {
	hs, ok := raw.(httpStatuser)
	if !ok {
		return nil, false
	}
	status := hs.StatusCode()
	if status < 400 {
		return nil, false
	}
	e := newTypedError(CodeHTTP, "http error response", status >= 500 || status == 429)
	e.Status = status
	e.Raw = raw
	if asErr, ok := raw.(error); ok {
		e.Cause = asErr
	}
	return e, true
}

// networkErrorCode is implemented by raw values carrying a POSIX-style
// errno-ish code string, the Go analogue of the Node.js
// ECONNRESET/ECONNREFUSED/... family.
type networkErrorCode interface {
	NetworkErrorCode() string
}

var retryableNetworkCodes = map[string]bool{
	"ECONNRESET":   true,
	"ECONNREFUSED": true,
	"ETIMEDOUT":    true,
	"ENOTFOUND":    true,
	"EAI_AGAIN":    true,
}

// networkRule classifies net.Error values, values exposing a
// recognized network error code, or errors whose message matches the
// brittle fetch-failed/network heuristic, as CodeNetwork, always
// retryable.
func networkRule(raw any) (*TypedError, bool) {
	if nec, ok := raw.(networkErrorCode); ok && retryableNetworkCodes[nec.NetworkErrorCode()] {
		e := newTypedError(CodeNetwork, "network error", true)
		e.Raw = raw
		if asErr, ok := raw.(error); ok {
			e.Cause = asErr
		}
		return e, true
	}

	err, ok := raw.(error)
	if !ok {
		return nil, false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		e := newTypedError(CodeNetwork, "network error", true)
		e.Cause = err
		e.Raw = raw
		return e, true
	}

	if networkMessagePattern.MatchString(err.Error()) {
		e := newTypedError(CodeNetwork, "network error", true)
		e.Cause = err
		e.Raw = raw
		return e, true
	}

	return nil, false
}

// unknownRule is the normalizer's fallback: it always matches and
// always produces CodeUnknown, which is what keeps Normalize total
// over any raw value.
func unknownRule(raw any) (*TypedError, bool) {
	e := newTypedError(CodeUnknown, describeUnknown(raw), true)
	e.Raw = raw
	if asErr, ok := raw.(error); ok {
		e.Cause = asErr
		e.Message = asErr.Error()
	}
	return e, true
}

func describeUnknown(raw any) string {
	if raw == nil {
		return "unknown error"
	}
	if s, ok := raw.(string); ok {
		return s
	}
	if err, ok := raw.(error); ok {
		return err.Error()
	}
	return strings.TrimSpace("unclassified failure")
}

// builtinRules returns the built-in rule chain in priority order,
// ending just before the fallback (the fallback is applied separately
// by the Normalizer so RulesReplace mode can supply its own).
func builtinRules() []Rule {
	return []Rule{
		RuleFunc(typedRule),
		RuleFunc(abortRule),
		RuleFunc(timeoutRule),
		RuleFunc(httpRule),
		RuleFunc(networkRule),
	}
}
