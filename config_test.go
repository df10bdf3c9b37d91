package pgscope_test

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	pgscope "github.com/pgscope/pgscope"
)

// configTestLogger returns a disabled zerolog logger for config tests.
func configTestLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

// validConfig returns a minimal valid Config for testing.
func validConfig() pgscope.Config {
	return pgscope.Config{
		Pool: pgscope.PoolConfig{MaxConns: 5},
	}
}

// expectPanic calls f and asserts that it panics with a message containing substr.
func expectPanic(t *testing.T, substr string, f func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic containing %q, but no panic occurred", substr)
		}
		msg := ""
		switch v := r.(type) {
		case string:
			msg = v
		case error:
			msg = v.Error()
		default:
			t.Fatalf("expected panic string/error containing %q, got %T: %v", substr, r, r)
		}
		if !strings.Contains(msg, substr) {
			t.Fatalf("expected panic containing %q, got %q", substr, msg)
		}
	}()
	f()
}

// expectNoPanic calls f and asserts that it does NOT panic.
func expectNoPanic(t *testing.T, f func()) {
	t.Helper()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("unexpected panic: %v", r)
		}
	}()
	f()
}

// --- New() validation panics ---

func TestNewInvalidRedactionRegex(t *testing.T) {
	t.Parallel()
	config := validConfig()
	config.Redaction = []pgscope.RedactionRule{
		{Pattern: "[invalid(regex", Replacement: "***"},
	}

	expectPanic(t, "redaction", func() {
		pgscope.New(context.Background(), dummyConnString, config, configTestLogger())
	})
}

func TestNewInvalidErrorHintRegex(t *testing.T) {
	t.Parallel()
	config := validConfig()
	config.ErrorHints = []pgscope.ErrorHintRule{
		{Pattern: "[invalid(regex", Message: "try again"},
	}

	expectPanic(t, "error_hints", func() {
		pgscope.New(context.Background(), dummyConnString, config, configTestLogger())
	})
}

func TestNewValidation_ZeroMaxConns(t *testing.T) {
	t.Parallel()
	config := validConfig()
	config.Pool.MaxConns = 0

	expectPanic(t, "pool.max_conns", func() {
		pgscope.New(context.Background(), dummyConnString, config, configTestLogger())
	})
}

func TestNewValidation_NegativeMaxConns(t *testing.T) {
	t.Parallel()
	config := validConfig()
	config.Pool.MaxConns = -1

	expectPanic(t, "pool.max_conns", func() {
		pgscope.New(context.Background(), dummyConnString, config, configTestLogger())
	})
}

func TestNewValidation_NegativeMinConns(t *testing.T) {
	t.Parallel()
	config := validConfig()
	config.Pool.MinConns = -1

	expectPanic(t, "pool.min_conns", func() {
		pgscope.New(context.Background(), dummyConnString, config, configTestLogger())
	})
}

func TestNewValidation_MinConnsAboveMaxConns(t *testing.T) {
	t.Parallel()
	config := validConfig()
	config.Pool.MaxConns = 2
	config.Pool.MinConns = 3

	expectPanic(t, "pool.min_conns must be <= pool.max_conns", func() {
		pgscope.New(context.Background(), dummyConnString, config, configTestLogger())
	})
}

func TestNewValidation_BadPoolDuration(t *testing.T) {
	t.Parallel()
	config := validConfig()
	config.Pool.MaxConnLifetime = "one hour"

	expectPanic(t, "pool.max_conn_lifetime", func() {
		pgscope.New(context.Background(), dummyConnString, config, configTestLogger())
	})
}

func TestNewValidation_NegativeMaxSQLLength(t *testing.T) {
	t.Parallel()
	config := validConfig()
	config.Query.MaxSQLLength = -1

	expectPanic(t, "query.max_sql_length", func() {
		pgscope.New(context.Background(), dummyConnString, config, configTestLogger())
	})
}

func TestNewValidation_NegativeMaxResultLength(t *testing.T) {
	t.Parallel()
	config := validConfig()
	config.Query.MaxResultLength = -1

	expectPanic(t, "query.max_result_length", func() {
		pgscope.New(context.Background(), dummyConnString, config, configTestLogger())
	})
}

func TestNewValidation_EmptySchemaName(t *testing.T) {
	t.Parallel()
	config := validConfig()
	config.Resources.ExposedSchemas = []string{"public", ""}

	expectPanic(t, "resources.exposed_schemas", func() {
		pgscope.New(context.Background(), dummyConnString, config, configTestLogger())
	})
}

func TestNewValidation_SchemaNameWithSlash(t *testing.T) {
	t.Parallel()
	config := validConfig()
	config.Resources.ExposedSchemas = []string{"public/extra"}

	expectPanic(t, "must not contain '/'", func() {
		pgscope.New(context.Background(), dummyConnString, config, configTestLogger())
	})
}

func TestNewEmptyConnString(t *testing.T) {
	t.Parallel()

	expectPanic(t, "connString must be non-empty", func() {
		pgscope.New(context.Background(), "", validConfig(), configTestLogger())
	})
}

// --- New() non-panic paths ---

func TestNewValidConfigDoesNotPanic(t *testing.T) {
	t.Parallel()
	config := validConfig()
	config.Pool.MaxConnLifetime = "1h"
	config.Pool.MaxConnIdleTime = "30m"
	config.Pool.HealthCheckPeriod = "1m"
	config.Resources.ExposedSchemas = []string{"public", "sales"}

	expectNoPanic(t, func() {
		// Pool creation is lazy, so New succeeds without a reachable database.
		s, err := pgscope.New(context.Background(), dummyConnString, config, configTestLogger())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		s.Close(context.Background())
	})
}

func TestNewUnparseableConnString(t *testing.T) {
	t.Parallel()

	expectNoPanic(t, func() {
		_, err := pgscope.New(context.Background(), "this is not a connection string", validConfig(), configTestLogger())
		if err == nil {
			t.Fatal("expected error for unparseable connection string")
		}
		if !strings.Contains(err.Error(), "failed to parse connection string") {
			t.Fatalf("expected parse error, got: %v", err)
		}
	})
}

// --- Config JSON parsing ---

func TestConfigJSONDefaults(t *testing.T) {
	t.Parallel()
	// Parse a minimal config JSON; everything else takes the Go zero value.
	configJSON := `{"pool": {"max_conns": 5}}`

	var config pgscope.Config
	if err := json.Unmarshal([]byte(configJSON), &config); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	if config.Query.RejectMultiStatement {
		t.Fatal("expected RejectMultiStatement to default to false")
	}
	if config.Query.MaxSQLLength != 0 || config.Query.MaxResultLength != 0 {
		t.Fatal("expected query limits to default to 0")
	}
	if len(config.Resources.ExposedSchemas) != 0 {
		t.Fatalf("expected no exposed schemas, got %v", config.Resources.ExposedSchemas)
	}
	if len(config.ErrorHints) != 0 || len(config.Redaction) != 0 {
		t.Fatal("expected no error hint or redaction rules")
	}
	if config.Timezone != "" {
		t.Fatalf("expected empty timezone, got %q", config.Timezone)
	}
}

func TestConfigJSONExplicitFields(t *testing.T) {
	t.Parallel()
	configJSON := `{
		"pool": {"max_conns": 10, "min_conns": 2, "max_conn_lifetime": "1h"},
		"query": {
			"max_sql_length": 50000,
			"max_result_length": 20000,
			"reject_multi_statement": true
		},
		"resources": {"exposed_schemas": ["public", "reporting"]},
		"error_hints": [
			{"pattern": "permission denied", "message": "The role is read-only."}
		],
		"redaction": [
			{"pattern": "\\d{16}", "replacement": "[CARD]", "description": "card numbers"}
		],
		"timezone": "UTC"
	}`

	var config pgscope.Config
	if err := json.Unmarshal([]byte(configJSON), &config); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	if config.Pool.MaxConns != 10 || config.Pool.MinConns != 2 {
		t.Fatalf("unexpected pool config: %+v", config.Pool)
	}
	if config.Pool.MaxConnLifetime != "1h" {
		t.Fatalf("expected max_conn_lifetime 1h, got %q", config.Pool.MaxConnLifetime)
	}
	if !config.Query.RejectMultiStatement {
		t.Fatal("expected RejectMultiStatement to be true")
	}
	if config.Query.MaxSQLLength != 50000 || config.Query.MaxResultLength != 20000 {
		t.Fatalf("unexpected query limits: %+v", config.Query)
	}
	if len(config.Resources.ExposedSchemas) != 2 || config.Resources.ExposedSchemas[1] != "reporting" {
		t.Fatalf("unexpected exposed schemas: %v", config.Resources.ExposedSchemas)
	}
	if len(config.ErrorHints) != 1 || config.ErrorHints[0].Message != "The role is read-only." {
		t.Fatalf("unexpected error hints: %+v", config.ErrorHints)
	}
	if len(config.Redaction) != 1 || config.Redaction[0].Replacement != "[CARD]" {
		t.Fatalf("unexpected redaction rules: %+v", config.Redaction)
	}
	if config.Timezone != "UTC" {
		t.Fatalf("expected timezone UTC, got %q", config.Timezone)
	}

	if err := config.Validate(); err != nil {
		t.Fatalf("expected parsed config to validate, got: %v", err)
	}
}

// --- Defaults ---

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	config := pgscope.DefaultConfig()

	if config.Pool.MaxConns != 4 {
		t.Fatalf("expected MaxConns 4, got %d", config.Pool.MaxConns)
	}
	if len(config.Resources.ExposedSchemas) != 1 || config.Resources.ExposedSchemas[0] != "public" {
		t.Fatalf("expected exposed schemas [public], got %v", config.Resources.ExposedSchemas)
	}
	if err := config.Validate(); err != nil {
		t.Fatalf("expected default config to validate, got: %v", err)
	}
}

func TestDefaultServerConfig(t *testing.T) {
	t.Parallel()
	config := pgscope.DefaultServerConfig()

	if config.Connection.Host != "localhost" || config.Connection.Port != 5432 {
		t.Fatalf("unexpected connection defaults: %+v", config.Connection)
	}
	if config.Connection.SSLMode != "prefer" {
		t.Fatalf("expected sslmode prefer, got %q", config.Connection.SSLMode)
	}
	if config.Server.Transport != "stdio" {
		t.Fatalf("expected stdio transport, got %q", config.Server.Transport)
	}
	if config.Server.ShutdownTimeoutSeconds != 5 {
		t.Fatalf("expected shutdown timeout 5, got %d", config.Server.ShutdownTimeoutSeconds)
	}
	if config.Logging.Level != "info" || config.Logging.Output != "stderr" {
		t.Fatalf("unexpected logging defaults: %+v", config.Logging)
	}
	if config.Pool.MaxConns != 4 {
		t.Fatalf("expected embedded MaxConns 4, got %d", config.Pool.MaxConns)
	}
}

// --- Validate ---

func TestValidateValid(t *testing.T) {
	t.Parallel()
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidateReportsFirstError(t *testing.T) {
	t.Parallel()
	config := validConfig()
	config.Pool.MaxConns = 0
	config.Query.MaxSQLLength = -1

	err := config.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "pool.max_conns") {
		t.Fatalf("expected pool.max_conns error first, got: %v", err)
	}
}
