package classify

import (
	"fmt"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// Verdict is the classification outcome for a single SQL statement.
type Verdict int

const (
	Allowed Verdict = iota
	Rejected
)

// String returns "allowed" or "rejected".
func (v Verdict) String() string {
	if v == Allowed {
		return "allowed"
	}
	return "rejected"
}

// allowPrefixes and denyPrefixes are matched case-insensitively against the
// first keyword of a statement, after leading whitespace.
var (
	allowPrefixes = []string{"SELECT", "WITH", "SHOW", "DESCRIBE", "EXPLAIN"}
	denyPrefixes  = []string{"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER", "TRUNCATE", "GRANT", "REVOKE"}
)

// Classify applies the prefix policy to a statement: allowed iff the leading
// keyword is in the allow set and not in the deny set. This is a prefix test,
// not a parse: a statement like "SELECT 1; DROP TABLE t" passes because only
// the first keyword is inspected. Deterministic, no side effects.
func Classify(sql string) Verdict {
	for _, kw := range denyPrefixes {
		if hasKeywordPrefix(sql, kw) {
			return Rejected
		}
	}
	for _, kw := range allowPrefixes {
		if hasKeywordPrefix(sql, kw) {
			return Allowed
		}
	}
	return Rejected
}

// hasKeywordPrefix reports whether s, after leading whitespace, starts with
// the keyword kw (case-insensitive) followed by a non-identifier character
// or end of input.
func hasKeywordPrefix(s, kw string) bool {
	i := 0
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	if len(s)-i < len(kw) {
		return false
	}
	for j := 0; j < len(kw); j++ {
		if upper(s[i+j]) != kw[j] {
			return false
		}
	}
	rest := i + len(kw)
	return rest == len(s) || !isIdentChar(s[rest])
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}

func isIdentChar(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// Config is the classifier's own config type.
type Config struct {
	// RejectMultiStatement additionally parses statements and rejects
	// payloads containing more than one statement. Off by default; the plain
	// prefix policy inspects only the leading keyword.
	RejectMultiStatement bool
}

// Classifier validates SQL statements against the read-only policy.
type Classifier struct {
	config Config
}

// NewClassifier creates a new Classifier with the given config.
func NewClassifier(config Config) *Classifier {
	return &Classifier{config: config}
}

// Check returns nil if the statement is allowed, or a descriptive error if
// rejected.
func (c *Classifier) Check(sql string) error {
	if Classify(sql) == Rejected {
		return fmt.Errorf("query rejected: only read-only queries are allowed (SELECT, WITH, SHOW, DESCRIBE, EXPLAIN)")
	}
	if c.config.RejectMultiStatement {
		if n := statementCount(sql); n > 1 {
			return fmt.Errorf("query rejected: multi-statement queries are not allowed: found %d statements", n)
		}
	}
	return nil
}

// statementCount parses sql and returns the number of statements it contains.
// Returns 0 when the statement does not parse; unparseable input is left to
// the database to reject, since a failed parse proves nothing about statement
// count.
func statementCount(sql string) int {
	result, err := pg_query.Parse(sql)
	if err != nil {
		return 0
	}
	return len(result.Stmts)
}
