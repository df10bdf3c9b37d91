package pgscope

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"
)

// Query runs the query tool pipeline: length cap, read-only classification,
// gateway execution, redaction, and result truncation. All failures
// (classifier rejections, database errors, limit violations) are converted to
// output.Error, with matching error_hints guidance appended. Callers only
// need to check output.Error, never a Go error.
func (s *Server) Query(ctx context.Context, input QueryInput) *QueryOutput {
	startTime := time.Now()
	sql := input.SQL

	// 1. Check SQL length before any other processing.
	if max := s.config.Query.MaxSQLLength; max > 0 && len(sql) > max {
		return s.queryError(fmt.Errorf("SQL query too long: %d bytes exceeds maximum of %d bytes", len(sql), max))
	}

	// 2. Classify. Rejected statements never reach the pool.
	if err := s.classifier.Check(sql); err != nil {
		return s.queryError(err)
	}

	// 3. Execute through the gateway.
	result, err := s.Execute(ctx, sql, nil)
	if err != nil {
		return s.queryError(err)
	}

	// 4. Apply redaction (per-field, recursive into JSONB/arrays).
	result.Rows = s.redactor.Rows(result.Rows)

	// 5. Apply max result length truncation.
	if out, truncated := s.truncateIfNeeded(result); truncated {
		return out
	}

	logEvent := s.logger.Info().
		Str("sql", truncateForLog(sql, 200)).
		Dur("duration", time.Since(startTime)).
		Int("row_count", result.RowCount)
	if s.redactor.HasRules() {
		logEvent = logEvent.Bool("redacted", true)
	}
	logEvent.Msg("query executed")

	return &QueryOutput{Result: result}
}

// queryError converts any pipeline error into a QueryOutput with an error
// message. The message is evaluated against error_hints; matching guidance is
// appended.
func (s *Server) queryError(err error) *QueryOutput {
	errMsg := err.Error()
	patterns := s.hints.MatchedPatterns(errMsg)

	logEvent := s.logger.Error().Err(err)
	if len(patterns) > 0 {
		logEvent = logEvent.Strs("error_hints", patterns)
	}
	logEvent.Msg("query error")

	if hint := s.hints.Hint(errMsg); hint != "" {
		errMsg = errMsg + "\n\n" + hint
	}
	return &QueryOutput{Error: errMsg}
}

// truncateIfNeeded checks the serialized result length against
// MaxResultLength, measured on the pretty-printed form the query tool
// delivers. Oversized results are replaced by an error output carrying the
// truncated JSON, so agents see what they got and why it stopped.
func (s *Server) truncateIfNeeded(result *QueryResult) (*QueryOutput, bool) {
	max := s.config.Query.MaxResultLength
	if max <= 0 {
		return nil, false
	}
	jsonBytes, _ := json.MarshalIndent(result, "", "  ")
	jsonStr := string(jsonBytes)
	if utf8.RuneCountInString(jsonStr) <= max {
		return nil, false
	}
	runes := []rune(jsonStr)
	return &QueryOutput{
		Error: string(runes[:max]) + "...[truncated] Result is too long! Add limits in your query!",
	}, true
}

// truncateForLog truncates a string for log output to avoid oversized log
// entries.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	truncateAt := maxLen
	for truncateAt > 0 && !utf8.RuneStart(s[truncateAt]) {
		truncateAt--
	}
	return s[:truncateAt] + "...[truncated]"
}
