package redact

import (
	"strings"
	"testing"
)

func emailRedactor() *Redactor {
	return NewRedactor([]Rule{
		{Pattern: `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+`, Replacement: "[email]"},
	})
}

// --- Basic Redaction ---

func TestRows_RedactsStringField(t *testing.T) {
	t.Parallel()
	r := emailRedactor()
	rows := []map[string]interface{}{
		{"email": "alice@example.com", "name": "alice"},
	}
	out := r.Rows(rows)
	if out[0]["email"] != "[email]" {
		t.Fatalf("expected redacted email, got %v", out[0]["email"])
	}
	if out[0]["name"] != "alice" {
		t.Fatalf("expected name untouched, got %v", out[0]["name"])
	}
}

func TestRows_MultipleRulesApplyInOrder(t *testing.T) {
	t.Parallel()
	r := NewRedactor([]Rule{
		{Pattern: `secret`, Replacement: "hidden"},
		{Pattern: `hidden`, Replacement: "gone"},
	})
	rows := []map[string]interface{}{{"v": "secret"}}
	out := r.Rows(rows)
	if out[0]["v"] != "gone" {
		t.Fatalf("expected chained replacement 'gone', got %v", out[0]["v"])
	}
}

func TestRows_NonStringValuesUntouched(t *testing.T) {
	t.Parallel()
	r := emailRedactor()
	rows := []map[string]interface{}{
		{"n": 42, "b": true, "nul": nil},
	}
	out := r.Rows(rows)
	if out[0]["n"] != 42 || out[0]["b"] != true || out[0]["nul"] != nil {
		t.Fatalf("expected non-string values untouched, got %v", out[0])
	}
}

// --- Nested Values ---

func TestRows_RecursesIntoJSONBObject(t *testing.T) {
	t.Parallel()
	r := emailRedactor()
	rows := []map[string]interface{}{
		{"doc": map[string]interface{}{"contact": "bob@example.com"}},
	}
	out := r.Rows(rows)
	doc := out[0]["doc"].(map[string]interface{})
	if doc["contact"] != "[email]" {
		t.Fatalf("expected nested redaction, got %v", doc["contact"])
	}
}

func TestRows_RecursesIntoArray(t *testing.T) {
	t.Parallel()
	r := emailRedactor()
	rows := []map[string]interface{}{
		{"emails": []interface{}{"a@example.com", "b@example.com"}},
	}
	out := r.Rows(rows)
	arr := out[0]["emails"].([]interface{})
	if arr[0] != "[email]" || arr[1] != "[email]" {
		t.Fatalf("expected array elements redacted, got %v", arr)
	}
}

// --- Edge Cases ---

func TestRows_NoRulesReturnsRowsUnchanged(t *testing.T) {
	t.Parallel()
	r := NewRedactor(nil)
	if r.HasRules() {
		t.Fatal("expected no rules")
	}
	rows := []map[string]interface{}{{"email": "alice@example.com"}}
	out := r.Rows(rows)
	if out[0]["email"] != "alice@example.com" {
		t.Fatalf("expected value untouched, got %v", out[0]["email"])
	}
}

func TestRows_EmptyRows(t *testing.T) {
	t.Parallel()
	r := emailRedactor()
	if out := r.Rows(nil); out != nil {
		t.Fatalf("expected nil rows passthrough, got %v", out)
	}
}

func TestNewRedactor_PanicsOnInvalidPattern(t *testing.T) {
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
	NewRedactor([]Rule{{Pattern: `([`, Replacement: "x"}})
}
