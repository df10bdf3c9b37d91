package pgscope

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/pgscope/pgscope/internal/classify"
	"github.com/pgscope/pgscope/internal/errhint"
	"github.com/pgscope/pgscope/internal/redact"
	"github.com/pgscope/pgscope/internal/schemauri"
)

// Server is the core engine wiring the statement classifier, the resource
// router, and the pooled execution gateway. All exported methods are safe for
// concurrent use from multiple goroutines.
type Server struct {
	config     Config
	pool       *pgxpool.Pool
	semaphore  chan struct{}
	classifier *classify.Classifier
	router     *schemauri.Router
	redactor   *redact.Redactor
	hints      *errhint.Hinter
	logger     zerolog.Logger
}

// New creates a new Server. connString is the PostgreSQL connection string
// (must include credentials). Every pooled session is forced read-only via
// default_transaction_read_only; the classifier is the primary barrier and
// the session setting backs it up.
//
// Pool creation is lazy: no connection is dialed until first use, so New
// succeeds against an unreachable database. Call Ping to probe liveness.
// Panics on invalid config. Returns error only for runtime failures.
func New(ctx context.Context, connString string, config Config, logger zerolog.Logger) (*Server, error) {
	if connString == "" {
		panic("pgscope: connString must be non-empty")
	}
	if err := config.Validate(); err != nil {
		panic("pgscope: " + err.Error())
	}

	// --- Configure pgxpool ---

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(config.Pool.MaxConns)
	poolConfig.MinConns = int32(config.Pool.MinConns)
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	// Durations already validated; ParseDuration cannot fail here.
	if config.Pool.MaxConnLifetime != "" {
		d, _ := time.ParseDuration(config.Pool.MaxConnLifetime)
		poolConfig.MaxConnLifetime = d
	}
	if config.Pool.MaxConnIdleTime != "" {
		d, _ := time.ParseDuration(config.Pool.MaxConnIdleTime)
		poolConfig.MaxConnIdleTime = d
	}
	if config.Pool.HealthCheckPeriod != "" {
		d, _ := time.ParseDuration(config.Pool.HealthCheckPeriod)
		poolConfig.HealthCheckPeriod = d
	}

	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if _, err := conn.Exec(ctx, "SET default_transaction_read_only = on"); err != nil {
			return fmt.Errorf("failed to SET default_transaction_read_only: %w", err)
		}
		if config.Timezone != "" {
			escaped := strings.ReplaceAll(config.Timezone, "'", "''")
			if _, err := conn.Exec(ctx, fmt.Sprintf("SET timezone = '%s'", escaped)); err != nil {
				return fmt.Errorf("failed to SET timezone: %w", err)
			}
		}
		return nil
	}

	// --- Create pool ---

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// --- Initialize components ---

	// Resource URIs are addressed under the connected database's name.
	database := poolConfig.ConnConfig.Database
	if database == "" {
		database = "database"
	}

	return &Server{
		config:    config,
		pool:      pool,
		semaphore: make(chan struct{}, config.Pool.MaxConns),
		classifier: classify.NewClassifier(classify.Config{
			RejectMultiStatement: config.Query.RejectMultiStatement,
		}),
		router:   schemauri.NewRouter(database, config.Resources.ExposedSchemas),
		redactor: redact.NewRedactor(mapRedactionRules(config.Redaction)),
		hints:    errhint.NewHinter(mapErrorHintRules(config.ErrorHints)),
		logger:   logger,
	}, nil
}

// Ping acquires one pooled connection as a liveness probe and releases it.
func (s *Server) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close drains and closes the connection pool, waiting for borrowed
// connections to be returned. The wait is bounded by ctx; when it expires the
// pool is abandoned so shutdown can complete.
func (s *Server) Close(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.pool.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn().Msg("pool drain cut short by shutdown deadline")
	}
}

// mapRedactionRules converts pgscope RedactionRules to internal redact.Rules.
func mapRedactionRules(rules []RedactionRule) []redact.Rule {
	result := make([]redact.Rule, len(rules))
	for i, r := range rules {
		result[i] = redact.Rule{
			Pattern:     r.Pattern,
			Replacement: r.Replacement,
		}
	}
	return result
}

// mapErrorHintRules converts pgscope ErrorHintRules to internal errhint.Rules.
func mapErrorHintRules(rules []ErrorHintRule) []errhint.Rule {
	result := make([]errhint.Rule, len(rules))
	for i, r := range rules {
		result[i] = errhint.Rule{
			Pattern: r.Pattern,
			Message: r.Message,
		}
	}
	return result
}
