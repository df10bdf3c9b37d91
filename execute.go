package pgscope

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Execute runs a single statement through the pooled gateway inside a
// read-only transaction and collects the full result set. sql and params are
// never mutated; the statement is sent over the extended query protocol with
// params bound server-side.
//
// Every failure is returned as a flat "database error" message. The
// underlying driver error is not wrapped, so callers see one uniform shape
// regardless of what failed. At most one execution per call, no retries.
func (s *Server) Execute(ctx context.Context, sql string, params []any) (*QueryResult, error) {
	select {
	case s.semaphore <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("database error: failed to acquire query slot: all %d connection slots are in use: %v", cap(s.semaphore), ctx.Err())
	}
	defer func() { <-s.semaphore }()

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("database error: %v", err)
	}
	defer conn.Release()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("database error: %v", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, sql, params...)
	if err != nil {
		return nil, fmt.Errorf("database error: %v", err)
	}

	result, err := collectRows(rows)
	if err != nil {
		return nil, fmt.Errorf("database error: %v", err)
	}
	return result, nil
}

// collectRows drains rows into a QueryResult, preserving column order in
// Fields and row order in Rows.
func collectRows(rows pgx.Rows) (*QueryResult, error) {
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	fields := make([]Field, len(fieldDescs))
	for i, fd := range fieldDescs {
		fields[i] = Field{Name: fd.Name, DataTypeID: fd.DataTypeOID}
	}

	resultRows := make([]map[string]interface{}, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(fields))
		for i, f := range fields {
			row[f.Name] = convertValue(values[i])
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &QueryResult{
		RowCount: len(resultRows),
		Rows:     resultRows,
		Fields:   fields,
	}, nil
}

// convertValue converts a pgx-returned value to a JSON-friendly Go type.
// Timestamps become RFC 3339 strings, non-finite floats become their Postgres
// spellings, binary data is base64-encoded, and composite values are
// converted recursively.
func convertValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case float32:
		return convertFloat(float64(val), v)
	case float64:
		return convertFloat(val, v)
	case netip.Prefix:
		return val.String()
	case net.HardwareAddr:
		return val.String()
	case pgtype.Numeric:
		if !val.Valid {
			return nil
		}
		if val.NaN {
			return "NaN"
		}
		if val.InfinityModifier == pgtype.Infinity {
			return "Infinity"
		}
		if val.InfinityModifier == pgtype.NegativeInfinity {
			return "-Infinity"
		}
		b, err := val.MarshalJSON()
		if err != nil {
			return nil
		}
		return string(b)
	case pgtype.Time:
		if !val.Valid {
			return nil
		}
		return formatMicroseconds(val.Microseconds)
	case pgtype.Interval:
		if !val.Valid {
			return nil
		}
		return formatInterval(val)
	case [16]byte:
		// UUID
		return fmt.Sprintf("%x-%x-%x-%x-%x", val[0:4], val[4:6], val[6:8], val[8:10], val[10:16])
	case []byte:
		// bytea, xml
		return base64.StdEncoding.EncodeToString(val)
	case string:
		return val
	case map[string]interface{}:
		result := make(map[string]interface{}, len(val))
		for k, item := range val {
			result[k] = convertValue(item)
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(val))
		for i, item := range val {
			result[i] = convertValue(item)
		}
		return result
	default:
		return val
	}
}

// convertFloat maps NaN and infinities to their Postgres text spellings and
// returns the original value otherwise.
func convertFloat(f float64, orig interface{}) interface{} {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	default:
		return orig
	}
}

// formatMicroseconds renders a time-of-day microsecond count as HH:MM:SS with
// fractional seconds when present.
func formatMicroseconds(us int64) string {
	hours := us / 3_600_000_000
	us -= hours * 3_600_000_000
	minutes := us / 60_000_000
	us -= minutes * 60_000_000
	seconds := us / 1_000_000
	us -= seconds * 1_000_000
	if us > 0 {
		return fmt.Sprintf("%02d:%02d:%02d.%06d", hours, minutes, seconds, us)
	}
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// formatInterval renders an interval in the year/month/day plus duration
// style Postgres uses for its human-readable output.
func formatInterval(val pgtype.Interval) string {
	var parts []string
	if val.Months != 0 {
		years := val.Months / 12
		months := val.Months % 12
		if years != 0 {
			parts = append(parts, fmt.Sprintf("%d year(s)", years))
		}
		if months != 0 {
			parts = append(parts, fmt.Sprintf("%d mon(s)", months))
		}
	}
	if val.Days != 0 {
		parts = append(parts, fmt.Sprintf("%d day(s)", val.Days))
	}
	if val.Microseconds != 0 {
		dur := time.Duration(val.Microseconds) * time.Microsecond
		parts = append(parts, dur.String())
	}
	if len(parts) == 0 {
		return "0"
	}
	return strings.Join(parts, " ")
}
