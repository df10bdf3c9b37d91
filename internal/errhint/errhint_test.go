package errhint

import (
	"strings"
	"testing"
)

func timeoutHinter() *Hinter {
	return NewHinter([]Rule{
		{Pattern: `context deadline exceeded`, Message: "The query timed out. Add a LIMIT or narrow the WHERE clause."},
		{Pattern: `permission denied`, Message: "The connected role lacks access to this relation."},
	})
}

// --- Matching ---

func TestHint_SingleMatch(t *testing.T) {
	t.Parallel()
	h := timeoutHinter()
	hint := h.Hint("ERROR: context deadline exceeded")
	if !strings.Contains(hint, "timed out") {
		t.Fatalf("expected timeout hint, got %q", hint)
	}
}

func TestHint_NoMatch(t *testing.T) {
	t.Parallel()
	h := timeoutHinter()
	if hint := h.Hint("ERROR: relation \"users\" does not exist"); hint != "" {
		t.Fatalf("expected no hint, got %q", hint)
	}
}

func TestHint_MultipleMatchesJoined(t *testing.T) {
	t.Parallel()
	h := NewHinter([]Rule{
		{Pattern: `slow`, Message: "first"},
		{Pattern: `query`, Message: "second"},
	})
	hint := h.Hint("slow query detected")
	if hint != "first\nsecond" {
		t.Fatalf("expected both hints joined, got %q", hint)
	}
}

func TestHint_RulesOrderPreserved(t *testing.T) {
	t.Parallel()
	h := NewHinter([]Rule{
		{Pattern: `x`, Message: "one"},
		{Pattern: `x`, Message: "two"},
	})
	if hint := h.Hint("x"); hint != "one\ntwo" {
		t.Fatalf("expected rules evaluated in order, got %q", hint)
	}
}

// --- MatchedPatterns ---

func TestMatchedPatterns(t *testing.T) {
	t.Parallel()
	h := timeoutHinter()
	patterns := h.MatchedPatterns("permission denied for table users")
	if len(patterns) != 1 || patterns[0] != `permission denied` {
		t.Fatalf("expected matched pattern, got %v", patterns)
	}
}

func TestMatchedPatterns_NilOnNoMatch(t *testing.T) {
	t.Parallel()
	h := timeoutHinter()
	if patterns := h.MatchedPatterns("all fine"); patterns != nil {
		t.Fatalf("expected nil, got %v", patterns)
	}
}

// --- Construction ---

func TestNewHinter_Empty(t *testing.T) {
	t.Parallel()
	h := NewHinter(nil)
	if hint := h.Hint("anything"); hint != "" {
		t.Fatalf("expected empty hint, got %q", hint)
	}
}

func TestNewHinter_PanicsOnInvalidPattern(t *testing.T) {
	t.Parallel()
	defer func() {
		msg := recover()
		if msg == nil {
			t.Fatal("expected panic on invalid pattern")
		}
		if !strings.Contains(msg.(string), "invalid regex pattern") {
			t.Fatalf("unexpected panic message: %v", msg)
		}
	}()
	NewHinter([]Rule{{Pattern: `(unclosed`, Message: "x"}})
}
