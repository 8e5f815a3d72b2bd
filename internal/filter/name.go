// Package filter implements the name filter (-k) and hosts the marker
// expression DSL in its markerexpr subpackage (spec §4.3).
package filter

import (
	"path/filepath"
	"strings"

	"taut/internal/model"
)

// NameFilter matches a TestItem against a -k argument: a space-separated
// list of rules, OR'd together (spec §4.3 "the argument is a union").
type NameFilter struct {
	rules []nameRule
}

type ruleKind int

const (
	ruleSubstring ruleKind = iota
	ruleFileAndName
	ruleClassAndMethod
	ruleGlob
)

type nameRule struct {
	kind  ruleKind
	a, b  string // meaning depends on kind: substring text, or (file,name)/(class,method) pair, or glob pattern
}

// ParseNameFilter builds a NameFilter from a raw -k argument.
func ParseNameFilter(arg string) NameFilter {
	var rules []nameRule
	for _, tok := range strings.Fields(arg) {
		rules = append(rules, classifyRule(tok))
	}
	return NameFilter{rules: rules}
}

func classifyRule(tok string) nameRule {
	if strings.ContainsAny(tok, "*?") {
		return nameRule{kind: ruleGlob, a: tok}
	}
	if strings.Contains(tok, "::") {
		parts := strings.SplitN(tok, "::", 2)
		return nameRule{kind: ruleFileAndName, a: parts[0], b: parts[1]}
	}
	if strings.Contains(tok, "/") {
		parts := strings.SplitN(tok, "/", 2)
		return nameRule{kind: ruleClassAndMethod, a: parts[0], b: parts[1]}
	}
	return nameRule{kind: ruleSubstring, a: tok}
}

// Empty reports whether no rules were supplied (an empty -k matches
// everything).
func (f NameFilter) Empty() bool {
	return len(f.rules) == 0
}

// Match reports whether item satisfies at least one rule.
func (f NameFilter) Match(item model.TestItem) bool {
	if f.Empty() {
		return true
	}
	for _, r := range f.rules {
		if r.match(item) {
			return true
		}
	}
	return false
}

func (r nameRule) match(item model.TestItem) bool {
	switch r.kind {
	case ruleSubstring:
		return strings.Contains(item.Callable, r.a)

	case ruleFileAndName:
		return filepath.Base(item.RelPath) == r.a && item.Callable == r.b

	case ruleClassAndMethod:
		return item.Class == r.a && item.Callable == r.b

	case ruleGlob:
		return globMatch(r.a, item.ID)
	}
	return false
}

// globMatch matches pattern against s where "*" matches any run of
// characters (including "::" or "/") and "?" matches exactly one rune.
// Identifiers routinely contain "/" (relative paths), so path.Match's
// segment-boundary restriction on "*" does not apply here.
func globMatch(pattern, s string) bool {
	return globMatchRunes([]rune(pattern), []rune(s))
}

func globMatchRunes(pattern, s []rune) bool {
	if len(pattern) == 0 {
		return len(s) == 0
	}
	switch pattern[0] {
	case '*':
		for i := 0; i <= len(s); i++ {
			if globMatchRunes(pattern[1:], s[i:]) {
				return true
			}
		}
		return false
	case '?':
		if len(s) == 0 {
			return false
		}
		return globMatchRunes(pattern[1:], s[1:])
	default:
		if len(s) == 0 || s[0] != pattern[0] {
			return false
		}
		return globMatchRunes(pattern[1:], s[1:])
	}
}
