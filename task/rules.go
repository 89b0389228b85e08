package task

import "errors"

// Rule classifies a raw thrown value into a TypedError, or declines
// by returning ok=false. Rules are tried in order; the first match
// wins. Custom rules can be built directly from a RuleFunc, or
// through the When/InstanceOf fluent builders below, which also
// record a statically-known output Code so NewNormalizer can reject
// duplicate codes at construction time.
type Rule interface {
	Match(raw any) (err *TypedError, ok bool)
}

// staticCoder is implemented by rules whose output Code is a
// compile-time literal. Rules built by plain RuleFunc do not
// implement it and are treated as having no declared code.
type staticCoder interface {
	StaticCode() (Code, bool)
}

// RuleFunc adapts a bare matching function into a Rule with no
// statically-declared code.
type RuleFunc func(raw any) (*TypedError, bool)

// Match implements Rule.
func (f RuleFunc) Match(raw any) (*TypedError, bool) { return f(raw) }

// codedRule is the concrete type produced by the fluent builders; it
// carries both the matcher and the declared output code.
type codedRule struct {
	match func(any) (*TypedError, bool)
	code  Code
	has   bool
}

func (r codedRule) Match(raw any) (*TypedError, bool) { return r.match(raw) }
func (r codedRule) StaticCode() (Code, bool)          { return r.code, r.has }

// ruleCode returns the statically-declared code for a rule, if any.
func ruleCode(r Rule) (Code, bool) {
	if sc, ok := r.(staticCoder); ok {
		return sc.StaticCode()
	}
	return "", false
}

// predicateBuilder is the fluent entry point returned by When.
type predicateBuilder struct {
	predicate func(any) bool
}

// When starts a rule definition matching raw values for which
// predicate returns true.
func When(predicate func(any) bool) *predicateBuilder {
	return &predicateBuilder{predicate: predicate}
}

// ToError completes the rule with a mapper producing the full
// TypedError shape. The mapper is only invoked for matching values.
// The resulting rule has no statically-declared code, since the
// mapper may choose it dynamically.
func (b *predicateBuilder) ToError(mapper func(any) TypedError) Rule {
	predicate := b.predicate
	return RuleFunc(func(raw any) (*TypedError, bool) {
		if !predicate(raw) {
			return nil, false
		}
		e := mapper(raw)
		if e.Timestamp.IsZero() {
			e.Timestamp = defaultNow()
		}
		return &e, true
	})
}

// codeBuilder is returned by ToCode, awaiting a body.
type codeBuilder struct {
	predicate func(any) bool
	code      Code
}

// ToCode fixes the rule's output code, deferring the remaining fields
// to With. The fixed code is statically known for duplicate detection.
func (b *predicateBuilder) ToCode(code Code) *codeBuilder {
	return &codeBuilder{predicate: b.predicate, code: code}
}

// With supplies the remaining TypedError fields. Cause and Raw default
// to the original raw value when the body leaves them unset.
func (b *codeBuilder) With(body func(any) TypedError) Rule {
	code := b.code
	predicate := b.predicate
	match := func(raw any) (*TypedError, bool) {
		if !predicate(raw) {
			return nil, false
		}
		e := body(raw)
		e.Code = code
		if e.Timestamp.IsZero() {
			e.Timestamp = defaultNow()
		}
		if e.Cause == nil {
			if asErr, ok := raw.(error); ok {
				e.Cause = asErr
			}
		}
		if e.Raw == nil {
			e.Raw = raw
		}
		return &e, true
	}
	return codedRule{match: match, code: code, has: true}
}

// InstanceOf builds a rule matching any raw value that errors.As can
// assign to *E. When E implements the optional coder/metaer/statuser/
// retryabler/pather/titler interfaces, those are consulted to build
// the TypedError; otherwise the value is wrapped as CodeUnknown.
func InstanceOf[E error]() Rule {
	return RuleFunc(func(raw any) (*TypedError, bool) {
		asErr, ok := raw.(error)
		if !ok {
			return nil, false
		}
		var target E
		if !errors.As(asErr, &target) {
			return nil, false
		}
		e := &TypedError{
			Code:      CodeUnknown,
			Message:   asErr.Error(),
			Cause:     asErr,
			Raw:       raw,
			Retryable: true,
			Timestamp: defaultNow(),
		}
		var iface any = target
		if c, ok := iface.(coder); ok {
			e.Code = c.Code()
		}
		if m, ok := iface.(metaer); ok {
			e.Meta = m.Meta()
		}
		if s, ok := iface.(statuser); ok {
			e.Status = s.Status()
		}
		if r, ok := iface.(retryabler); ok {
			e.Retryable = r.Retryable()
		}
		if p, ok := iface.(pather); ok {
			e.Path = p.Path()
		}
		if t, ok := iface.(titler); ok {
			e.Title = t.Title()
		}
		return e, true
	})
}
