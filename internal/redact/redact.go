package redact

import (
	"fmt"
	"regexp"
)

// Rule is the redactor's own rule type.
type Rule struct {
	Pattern     string
	Replacement string
}

type compiledRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Redactor rewrites string values in result rows according to an ordered set
// of regex rules. Rules apply top to bottom; later rules see the output of
// earlier ones.
type Redactor struct {
	rules []compiledRule
}

// NewRedactor creates a new Redactor. Panics on invalid regex patterns.
func NewRedactor(rules []Rule) *Redactor {
	compiled := make([]compiledRule, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			panic(fmt.Sprintf("redact: invalid regex pattern %q: %v", r.Pattern, err))
		}
		compiled[i] = compiledRule{pattern: re, replacement: r.Replacement}
	}
	return &Redactor{rules: compiled}
}

// HasRules reports whether any rules are configured.
func (r *Redactor) HasRules() bool {
	return len(r.rules) > 0
}

// Rows applies the rules to every field value in place and returns the rows.
// JSONB objects and arrays are descended into; only string leaves are
// rewritten.
func (r *Redactor) Rows(rows []map[string]interface{}) []map[string]interface{} {
	if len(r.rules) == 0 {
		return rows
	}
	for _, row := range rows {
		for k, v := range row {
			row[k] = r.value(v)
		}
	}
	return rows
}

func (r *Redactor) value(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		out := val
		for _, rule := range r.rules {
			out = rule.pattern.ReplaceAllString(out, rule.replacement)
		}
		return out
	case map[string]interface{}:
		for k, item := range val {
			val[k] = r.value(item)
		}
		return val
	case []interface{}:
		for i, item := range val {
			val[i] = r.value(item)
		}
		return val
	default:
		return v
	}
}
