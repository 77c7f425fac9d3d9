package rewrite

import "regexp"

// Rule is one entry of an externally supplied, opaque rewrite table: a
// regex pattern and its literal replacement, applied the way
// regexp.ReplaceAllString applies it. The core does not validate that a
// rule preserves program semantics.
type Rule struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// RuleTable is an ordered set of Rules, applied in order.
type RuleTable []Rule

// ApplyRules runs every rule in the table against src, in order, repeating
// the whole table until a full pass makes no further change (fixpoint).
// An empty table is a no-op.
func ApplyRules(src string, rules RuleTable) string {
	if len(rules) == 0 {
		return src
	}
	for {
		changed := false
		for _, r := range rules {
			next := r.Pattern.ReplaceAllString(src, r.Replacement)
			if next != src {
				src = next
				changed = true
			}
		}
		if !changed {
			return src
		}
	}
}
