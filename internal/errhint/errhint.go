package errhint

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule maps an error-message pattern to operator-authored guidance.
type Rule struct {
	Pattern string
	Message string
}

type compiledRule struct {
	pattern *regexp.Regexp
	message string
}

// Hinter matches database error messages against patterns and collects
// guidance to append to the message returned to the caller.
type Hinter struct {
	rules []compiledRule
}

// NewHinter creates a new Hinter. Panics on invalid regex patterns.
func NewHinter(rules []Rule) *Hinter {
	compiled := make([]compiledRule, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			panic(fmt.Sprintf("errhint: invalid regex pattern %q: %v", r.Pattern, err))
		}
		compiled[i] = compiledRule{pattern: re, message: r.Message}
	}
	return &Hinter{rules: compiled}
}

// Hint evaluates errMsg against all rules top to bottom and returns the
// matching guidance messages joined by newlines. Empty string when nothing
// matches.
func (h *Hinter) Hint(errMsg string) string {
	var hints []string
	for _, rule := range h.rules {
		if rule.pattern.MatchString(errMsg) {
			hints = append(hints, rule.message)
		}
	}
	return strings.Join(hints, "\n")
}

// MatchedPatterns returns the patterns that matched errMsg, for logging.
// Nil when nothing matches.
func (h *Hinter) MatchedPatterns(errMsg string) []string {
	var patterns []string
	for _, rule := range h.rules {
		if rule.pattern.MatchString(errMsg) {
			patterns = append(patterns, rule.pattern.String())
		}
	}
	return patterns
}
