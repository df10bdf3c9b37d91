package pgscope

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Config is the base configuration used by library mode via New().
type Config struct {
	Pool       PoolConfig      `json:"pool"`
	Query      QueryConfig     `json:"query"`
	Resources  ResourcesConfig `json:"resources"`
	ErrorHints []ErrorHintRule `json:"error_hints"`
	Redaction  []RedactionRule `json:"redaction"`
	Timezone   string          `json:"timezone"`
}

// ServerConfig embeds Config and adds server-only fields for CLI mode.
type ServerConfig struct {
	Config
	Connection ConnectionConfig `json:"connection"`
	Server     ServerSettings   `json:"server"`
	Logging    LoggingConfig    `json:"logging"`
}

// ConnectionConfig holds database connection parameters used by CLI mode.
// Password is deliberately absent: it comes from the environment or an
// interactive prompt, never the config file.
type ConnectionConfig struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	DBName  string `json:"dbname"`
	User    string `json:"user"`
	SSLMode string `json:"sslmode"`
}

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	MaxConns          int    `json:"max_conns"`
	MinConns          int    `json:"min_conns"`
	MaxConnLifetime   string `json:"max_conn_lifetime"`
	MaxConnIdleTime   string `json:"max_conn_idle_time"`
	HealthCheckPeriod string `json:"health_check_period"`
}

// ServerSettings holds transport settings for CLI mode. Transport is "stdio"
// (default) or "http"; the HTTP fields apply only to the http transport.
type ServerSettings struct {
	Transport              string `json:"transport"`
	Port                   int    `json:"port"`
	HealthCheckEnabled     bool   `json:"health_check_enabled"`
	HealthCheckPath        string `json:"health_check_path"`
	ShutdownTimeoutSeconds int    `json:"shutdown_timeout_seconds"`
}

// LoggingConfig holds logging settings for CLI mode.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
	Output string `json:"output"` // stderr, stdout, or file path
}

// QueryConfig holds query tool settings.
type QueryConfig struct {
	// MaxSQLLength rejects statements longer than this many bytes before
	// classification. 0 disables the cap.
	MaxSQLLength int `json:"max_sql_length"`
	// MaxResultLength truncates serialized result rows longer than this many
	// characters. 0 disables truncation.
	MaxResultLength int `json:"max_result_length"`
	// RejectMultiStatement enables strict multi-statement rejection on top of
	// the prefix policy.
	RejectMultiStatement bool `json:"reject_multi_statement"`
}

// ResourcesConfig controls which schemas are browsable as resources.
type ResourcesConfig struct {
	ExposedSchemas []string `json:"exposed_schemas"`
}

// ErrorHintRule maps an error message pattern to a guidance message.
type ErrorHintRule struct {
	Pattern string `json:"pattern"`
	Message string `json:"message"`
}

// RedactionRule defines a regex-based result redaction rule.
type RedactionRule struct {
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement"`
	Description string `json:"description"`
}

// DefaultConfig returns the library config used when no config file exists:
// a small pool and the public schema exposed.
func DefaultConfig() Config {
	return Config{
		Pool:      PoolConfig{MaxConns: 4},
		Resources: ResourcesConfig{ExposedSchemas: []string{"public"}},
	}
}

// DefaultServerConfig returns DefaultConfig wrapped with stdio transport and
// stderr logging defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Config: DefaultConfig(),
		Connection: ConnectionConfig{
			Host:    "localhost",
			Port:    5432,
			SSLMode: "prefer",
		},
		Server: ServerSettings{
			Transport:              "stdio",
			ShutdownTimeoutSeconds: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stderr",
		},
	}
}

// Validate checks the library config. New() panics on the same conditions;
// the CLI calls Validate first so configuration mistakes exit with status 1
// instead of a panic trace.
func (c Config) Validate() error {
	if c.Pool.MaxConns <= 0 {
		return fmt.Errorf("pool.max_conns must be > 0")
	}
	if c.Pool.MinConns < 0 {
		return fmt.Errorf("pool.min_conns must be >= 0")
	}
	if c.Pool.MinConns > c.Pool.MaxConns {
		return fmt.Errorf("pool.min_conns must be <= pool.max_conns")
	}
	for _, field := range []struct {
		name  string
		value string
	}{
		{"pool.max_conn_lifetime", c.Pool.MaxConnLifetime},
		{"pool.max_conn_idle_time", c.Pool.MaxConnIdleTime},
		{"pool.health_check_period", c.Pool.HealthCheckPeriod},
	} {
		if field.value == "" {
			continue
		}
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("invalid %s %q: %v", field.name, field.value, err)
		}
	}
	if c.Query.MaxSQLLength < 0 {
		return fmt.Errorf("query.max_sql_length must be >= 0")
	}
	if c.Query.MaxResultLength < 0 {
		return fmt.Errorf("query.max_result_length must be >= 0")
	}
	for i, schema := range c.Resources.ExposedSchemas {
		if schema == "" {
			return fmt.Errorf("resources.exposed_schemas[%d] must be non-empty", i)
		}
		if strings.Contains(schema, "/") {
			return fmt.Errorf("resources.exposed_schemas[%d] %q must not contain '/'", i, schema)
		}
	}
	for i, rule := range c.ErrorHints {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			return fmt.Errorf("error_hints[%d] has invalid pattern %q: %v", i, rule.Pattern, err)
		}
	}
	for i, rule := range c.Redaction {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			return fmt.Errorf("redaction[%d] has invalid pattern %q: %v", i, rule.Pattern, err)
		}
	}
	return nil
}
