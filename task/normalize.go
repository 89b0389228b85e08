package task

import "fmt"

// RulesMode controls how user-supplied rules combine with the
// built-in classification rules.
type RulesMode int

const (
	// RulesExtend tries user rules first, then the built-ins. This is
	// the default.
	RulesExtend RulesMode = iota
	// RulesReplace tries only the user rules; built-ins are skipped
	// entirely.
	RulesReplace
)

// Normalizer turns any raw thrown value into a TypedError. It is
// total: Normalize never returns nil.
type Normalizer struct {
	rules    []Rule
	fallback Rule
}

// NewNormalizer builds a Normalizer from userRules combined with the
// built-ins according to mode, and fallback (nil selects the default
// CodeUnknown fallback). It rejects configurations where two rules
// statically declare the same Code.
func NewNormalizer(userRules []Rule, mode RulesMode, fallback Rule) (*Normalizer, error) {
	var rules []Rule
	switch mode {
	case RulesReplace:
		rules = append(rules, userRules...)
	default:
		rules = append(rules, userRules...)
		rules = append(rules, builtinRules()...)
	}

	if err := checkDuplicateCodes(rules); err != nil {
		return nil, err
	}

	if fallback == nil {
		fallback = RuleFunc(unknownRule)
	}

	return &Normalizer{rules: rules, fallback: fallback}, nil
}

// checkDuplicateCodes rejects a rule list in which two rules both
// statically declare the same output Code.
func checkDuplicateCodes(rules []Rule) error {
	seen := make(map[Code]int)
	for i, r := range rules {
		code, ok := ruleCode(r)
		if !ok {
			continue
		}
		if prev, exists := seen[code]; exists {
			return fmt.Errorf("task: duplicate rule code %q declared by rules at index %d and %d", code, prev, i)
		}
		seen[code] = i
	}
	return nil
}

// Normalize applies the rule chain in order, returning the first
// match, or the fallback's result if nothing matches. It never
// returns nil.
func (n *Normalizer) Normalize(raw any) *TypedError {
	for _, r := range n.rules {
		if e, ok := r.Match(raw); ok && e != nil {
			return e
		}
	}
	if e, ok := n.fallback.Match(raw); ok && e != nil {
		return e
	}
	// Defensive: a misbehaving custom fallback that declines still
	// must not break totality.
	return newTypedError(CodeUnknown, describeUnknown(raw), true)
}
