package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	pgscope "github.com/pgscope/pgscope"
	"github.com/pgscope/pgscope/internal/meta"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

func runServe() error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	connFlag := fs.String("connstring", "", "PostgreSQL connection string (overrides PGSCOPE_PG_CONNSTRING)")
	fs.Parse(os.Args[2:])

	ctx := context.Background()

	// 1. Resolve connection string
	connString := *connFlag
	if connString == "" {
		connString = os.Getenv("PGSCOPE_PG_CONNSTRING")
	}

	// 2. Load and validate ServerConfig
	serverConfig, err := loadServerConfig(resolveConfigPath(*configPath), connString != "")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := validateServerSettings(serverConfig); err != nil {
		return err
	}
	if err := serverConfig.Config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// 3. Fill in credentials when no connection string was given
	if connString == "" {
		username := serverConfig.Connection.User
		if username == "" {
			username = promptInput("Username: ")
		}
		password, err := promptPassword("Password: ")
		if err != nil {
			return err
		}
		connString = buildConnString(serverConfig.Connection, username, password)
	}

	// 4. Setup logger
	logger := setupLogger(serverConfig.Logging)

	// 5. Create the Server; drain the pool on the way out, bounded by the
	// shutdown timeout.
	s, err := pgscope.New(ctx, connString, serverConfig.Config, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	drainTimeout := time.Duration(serverConfig.Server.ShutdownTimeoutSeconds) * time.Second
	if drainTimeout <= 0 {
		drainTimeout = 5 * time.Second
	}
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		s.Close(drainCtx)
	}()

	// 6. Startup probe. A database that cannot be reached now means no
	// partial service later.
	logger.Info().Msg("testing database connection")
	if err := s.Ping(ctx); err != nil {
		logger.Error().Err(err).Msg("database connection test failed")
		return fmt.Errorf("database connection test failed: %w", err)
	}
	logger.Info().Msg("database connection test successful")

	// 7. Create MCP server with initialize lifecycle logging
	hooks := &server.Hooks{}
	hooks.AddAfterInitialize(func(ctx context.Context, id any, req *mcp.InitializeRequest, result *mcp.InitializeResult) {
		logger.Info().
			Str("client_name", req.Params.ClientInfo.Name).
			Str("client_version", req.Params.ClientInfo.Version).
			Msg("AI agent connected (MCP initialize)")
	})

	mcpServer := server.NewMCPServer("pgscope", meta.Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithHooks(hooks),
	)

	pgscope.RegisterMCP(mcpServer, s)

	// 8. Serve the selected transport
	if serverConfig.Server.Transport == "http" {
		return serveHTTP(mcpServer, serverConfig, logger, drainTimeout)
	}
	return serveStdio(mcpServer, logger)
}

// serveStdio serves MCP over stdin/stdout. ServeStdio installs its own
// SIGINT/SIGTERM handling and returns context.Canceled when a signal
// arrives, so both signals and client EOF end up as a clean exit.
func serveStdio(mcpServer *server.MCPServer, logger zerolog.Logger) error {
	logger.Info().Msg("starting pgscope server on stdio")
	if err := server.ServeStdio(mcpServer); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info().Msg("shutdown complete")
	return nil
}

// serveHTTP serves MCP over streamable HTTP with an optional health check
// endpoint, shutting down gracefully on SIGINT/SIGTERM.
func serveHTTP(mcpServer *server.MCPServer, serverConfig *pgscope.ServerConfig, logger zerolog.Logger, drainTimeout time.Duration) error {
	addr := fmt.Sprintf(":%d", serverConfig.Server.Port)
	mux := http.NewServeMux()

	// Health check endpoint (process liveness only, not DB connectivity)
	if serverConfig.Server.HealthCheckEnabled {
		mux.HandleFunc(serverConfig.Server.HealthCheckPath, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})
	}

	httpSrv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	streamableServer := server.NewStreamableHTTPServer(mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithStateLess(true),
		server.WithStreamableHTTPServer(httpSrv),
	)

	// Start() does not register the handler on a custom *http.Server
	// provided via WithStreamableHTTPServer; it must be added to the mux
	// manually.
	mux.Handle("/mcp", streamableServer)

	errCh := make(chan error, 1)
	go func() {
		errCh <- streamableServer.Start(addr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	logger.Info().Int("port", serverConfig.Server.Port).Msg("starting pgscope server on http")
	select {
	case err := <-errCh:
		return err
	case <-sig:
		logger.Info().Msg("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("http server shutdown incomplete")
		}
		logger.Info().Msg("shutdown complete")
		return nil
	}
}

// resolveConfigPath returns the config file path from the --config flag, the
// PGSCOPE_CONFIG_PATH env var, or the default location, in that order.
func resolveConfigPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if env := os.Getenv("PGSCOPE_CONFIG_PATH"); env != "" {
		return env
	}
	return ".pgscope/config.json"
}

// loadServerConfig reads the JSON config file at path. A missing file is an
// error unless a connection string was supplied, in which case the built-in
// defaults are returned so a connection string alone is enough to serve.
func loadServerConfig(path string, haveConnString bool) (*pgscope.ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && haveConnString {
			config := pgscope.DefaultServerConfig()
			return &config, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config pgscope.ServerConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// validateServerSettings checks the transport settings. Returned errors exit
// the CLI with status 1; they are configuration mistakes, not bugs.
func validateServerSettings(config *pgscope.ServerConfig) error {
	switch config.Server.Transport {
	case "", "stdio":
		if config.Logging.Output == "stdout" {
			return fmt.Errorf("invalid config: logging.output must not be stdout with the stdio transport")
		}
	case "http":
		if config.Server.Port <= 0 {
			return fmt.Errorf("invalid config: server.port must be > 0 with the http transport")
		}
	default:
		return fmt.Errorf("invalid config: unknown server.transport %q (use \"stdio\" or \"http\")", config.Server.Transport)
	}
	if config.Server.HealthCheckEnabled && config.Server.HealthCheckPath == "" {
		return fmt.Errorf("invalid config: server.health_check_path must be set when server.health_check_enabled is true")
	}
	if config.Server.ShutdownTimeoutSeconds < 0 {
		return fmt.Errorf("invalid config: server.shutdown_timeout_seconds must be >= 0")
	}
	return nil
}

func buildConnString(conn pgscope.ConnectionConfig, username, password string) string {
	parts := []string{}
	if conn.Host != "" {
		parts = append(parts, fmt.Sprintf("host=%s", conn.Host))
	}
	if conn.Port > 0 {
		parts = append(parts, fmt.Sprintf("port=%d", conn.Port))
	}
	if conn.DBName != "" {
		parts = append(parts, fmt.Sprintf("dbname=%s", conn.DBName))
	}
	if username != "" {
		parts = append(parts, fmt.Sprintf("user=%s", username))
	}
	if password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", password))
	}
	if conn.SSLMode != "" {
		parts = append(parts, fmt.Sprintf("sslmode=%s", conn.SSLMode))
	}
	return strings.Join(parts, " ")
}

func setupLogger(config pgscope.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(config.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	var output io.Writer = os.Stderr
	if config.Output == "stdout" {
		output = os.Stdout
	} else if config.Output != "" && config.Output != "stderr" {
		f, err := os.OpenFile(config.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			output = f
		}
	}

	if config.Format == "text" {
		output = zerolog.ConsoleWriter{Out: output}
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

func promptInput(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	var input string
	fmt.Scanln(&input)
	return input
}

// promptPassword reads a password without echo. Refuses to prompt when stdin
// is not a terminal; with the stdio transport, stdin belongs to the protocol
// client.
func promptPassword(prompt string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("connection password required: set PGSCOPE_PG_CONNSTRING or run from a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // newline after password input
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}
