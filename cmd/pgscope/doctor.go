package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	pgscope "github.com/pgscope/pgscope"
	"github.com/pgscope/pgscope/internal/meta"

	"github.com/rs/zerolog"
)

func runDoctor() error {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	fs.Parse(os.Args[2:])

	useColor := isTTY(os.Stderr.Fd())
	return doctor(os.Stderr, useColor, resolveConfigPath(*configPath), os.Getenv("PGSCOPE_PG_CONNSTRING"))
}

func doctor(w io.Writer, useColor bool, configPath string, connString string) error {
	printBanner(w, useColor)
	fmt.Fprintf(w, "pgscope %s\n\n", meta.Version)

	// Load and validate config
	config, ok := doctorValidateConfig(w, useColor, configPath)

	// Live connection probe, only when a connection string is available and
	// the config already passed (New panics on invalid config).
	if ok && connString != "" {
		if !doctorCheckConnection(w, useColor, config, connString) {
			ok = false
		}
	}

	if !ok {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Fix the issues above and run 'pgscope doctor' again.")
		return nil
	}

	// Print agent connection snippets
	fmt.Fprintln(w)
	printAgentSnippets(w, useColor, config)
	return nil
}

// doctorValidateConfig loads and validates the config file, printing check results.
// Returns the parsed config and true if all checks passed.
func doctorValidateConfig(w io.Writer, useColor bool, configPath string) (*pgscope.ServerConfig, bool) {
	allPassed := true

	// Check 1: Config file exists and is valid JSON
	data, err := os.ReadFile(configPath)
	if err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Config file readable (%s)", configPath))
		allPassed = false
		return nil, allPassed
	}
	printCheck(w, useColor, true, fmt.Sprintf("Config file readable (%s)", configPath))

	var config pgscope.ServerConfig
	if err := json.Unmarshal(data, &config); err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Config file is valid JSON: %v", err))
		allPassed = false
		return nil, allPassed
	}
	printCheck(w, useColor, true, "Config file is valid JSON")

	// Check 2: connection.dbname is set
	if config.Connection.DBName == "" {
		printCheck(w, useColor, false, "connection.dbname is set")
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("connection.dbname is set (%s)", config.Connection.DBName))
	}

	// Check 3: server.transport is stdio or http
	transport := config.Server.Transport
	if transport == "" {
		transport = "stdio"
	}
	if transport != "stdio" && transport != "http" {
		printCheck(w, useColor, false, fmt.Sprintf("server.transport is stdio or http (got %q)", config.Server.Transport))
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("server.transport is stdio or http (%s)", transport))
	}

	// Check 4: server.port > 0 when serving http
	if transport == "http" {
		if config.Server.Port <= 0 {
			printCheck(w, useColor, false, "server.port is > 0 (required with the http transport)")
			allPassed = false
		} else {
			printCheck(w, useColor, true, fmt.Sprintf("server.port is > 0 (%d)", config.Server.Port))
		}
	}

	// Check 5: Health check path set when enabled
	if config.Server.HealthCheckEnabled {
		if config.Server.HealthCheckPath == "" {
			printCheck(w, useColor, false, "health_check_path is set (required when health_check_enabled)")
			allPassed = false
		} else {
			printCheck(w, useColor, true, fmt.Sprintf("health_check_path is set (%s)", config.Server.HealthCheckPath))
		}
	}

	// Check 6: Regex patterns compile
	regexOK := true

	for i, rule := range config.ErrorHints {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("error_hints[%d] regex compiles: %v", i, err))
			regexOK = false
			allPassed = false
		}
	}

	for i, rule := range config.Redaction {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("redaction[%d] regex compiles: %v", i, err))
			regexOK = false
			allPassed = false
		}
	}

	if regexOK {
		printCheck(w, useColor, true, "All regex patterns compile")
	}

	// Check 7: The full library validation the server runs at startup
	if err := config.Config.Validate(); err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Configuration valid: %v", err))
		allPassed = false
	} else {
		printCheck(w, useColor, true, "Configuration valid")
	}

	return &config, allPassed
}

// doctorCheckConnection probes the database with the serve-time pool config.
func doctorCheckConnection(w io.Writer, useColor bool, config *pgscope.ServerConfig, connString string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := pgscope.New(ctx, connString, config.Config, zerolog.Nop())
	if err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Database reachable: %v", err))
		return false
	}
	defer s.Close(ctx)

	if err := s.Ping(ctx); err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Database reachable: %v", err))
		return false
	}
	printCheck(w, useColor, true, "Database reachable")
	return true
}

// printCheck prints a colored ✓ or ✗ check line.
func printCheck(w io.Writer, useColor bool, pass bool, msg string) {
	if pass {
		if useColor {
			fmt.Fprintf(w, "  \033[32m✓\033[0m %s\n", msg)
		} else {
			fmt.Fprintf(w, "  ✓ %s\n", msg)
		}
	} else {
		if useColor {
			fmt.Fprintf(w, "  \033[31m✗\033[0m %s\n", msg)
		} else {
			fmt.Fprintf(w, "  ✗ %s\n", msg)
		}
	}
}

// printAgentSnippets prints MCP connection config snippets for various AI
// agents, matching the configured transport.
func printAgentSnippets(w io.Writer, useColor bool, config *pgscope.ServerConfig) {
	heading := func(title string) {
		if useColor {
			fmt.Fprintf(w, "\033[1;36m%s\033[0m\n", title)
		} else {
			fmt.Fprintln(w, title)
		}
	}

	heading("Agent Connection Snippets")
	fmt.Fprintln(w)

	if config.Server.Transport == "http" {
		printHTTPSnippets(w, useColor, config.Server.Port)
	} else {
		printStdioSnippets(w, useColor)
	}
}

func snippetSubheading(w io.Writer, useColor bool, title string) {
	if useColor {
		fmt.Fprintf(w, "  \033[1m%s\033[0m\n", title)
	} else {
		fmt.Fprintf(w, "  %s\n", title)
	}
}

// printStdioSnippets prints command-launch snippets for the stdio transport.
func printStdioSnippets(w io.Writer, useColor bool) {
	// Claude Code
	snippetSubheading(w, useColor, "Claude Code")
	fmt.Fprintf(w, "  Run this command to add the server:\n\n")
	fmt.Fprintf(w, "    claude mcp add postgres -- pgscope serve\n\n")
	fmt.Fprintf(w, "  Or add to .mcp.json (project scope):\n\n")
	fmt.Fprint(w, `  {
    "mcpServers": {
      "postgres": {
        "command": "pgscope",
        "args": ["serve"]
      }
    }
  }
`)
	fmt.Fprintln(w)

	// Copilot CLI
	snippetSubheading(w, useColor, "Copilot CLI (~/.copilot/mcp-config.json)")
	fmt.Fprint(w, `  {
    "mcpServers": {
      "postgres": {
        "type": "local",
        "command": "pgscope",
        "args": ["serve"]
      }
    }
  }
`)
	fmt.Fprintln(w)

	// Gemini CLI
	snippetSubheading(w, useColor, "Gemini CLI (~/.gemini/settings.json)")
	fmt.Fprint(w, `  {
    "mcpServers": {
      "postgres": {
        "command": "pgscope",
        "args": ["serve"]
      }
    }
  }
`)
	fmt.Fprintln(w)

	// OpenCode
	snippetSubheading(w, useColor, "OpenCode (opencode.json)")
	fmt.Fprint(w, `  {
    "mcp": {
      "postgres": {
        "type": "local",
        "command": ["pgscope", "serve"]
      }
    }
  }
`)
	fmt.Fprintln(w)

	// Cursor
	snippetSubheading(w, useColor, "Cursor (.cursor/mcp.json)")
	fmt.Fprint(w, `  {
    "mcpServers": {
      "postgres": {
        "command": "pgscope",
        "args": ["serve"]
      }
    }
  }
`)
	fmt.Fprintln(w)

	// Windsurf
	snippetSubheading(w, useColor, "Windsurf (~/.codeium/windsurf/mcp_config.json)")
	fmt.Fprint(w, `  {
    "mcpServers": {
      "postgres": {
        "command": "pgscope",
        "args": ["serve"]
      }
    }
  }
`)
}

// printHTTPSnippets prints URL-based snippets for the http transport.
func printHTTPSnippets(w io.Writer, useColor bool, port int) {
	url := fmt.Sprintf("http://localhost:%d/mcp", port)

	// Claude Code
	snippetSubheading(w, useColor, "Claude Code")
	fmt.Fprintf(w, "  Run this command to add the server:\n\n")
	fmt.Fprintf(w, "    claude mcp add --transport http postgres %s\n\n", url)
	fmt.Fprintf(w, "  Or add to .mcp.json (project scope):\n\n")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "postgres": {
        "type": "http",
        "url": "%s"
      }
    }
  }
`, url)
	fmt.Fprintln(w)

	// Copilot CLI
	snippetSubheading(w, useColor, "Copilot CLI (~/.copilot/mcp-config.json)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "postgres": {
        "type": "http",
        "url": "%s"
      }
    }
  }
`, url)
	fmt.Fprintln(w)

	// Gemini CLI
	snippetSubheading(w, useColor, "Gemini CLI (~/.gemini/settings.json)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "postgres": {
        "httpUrl": "%s"
      }
    }
  }
`, url)
	fmt.Fprintln(w)

	// OpenCode
	snippetSubheading(w, useColor, "OpenCode (opencode.json)")
	fmt.Fprintf(w, `  {
    "mcp": {
      "postgres": {
        "type": "remote",
        "url": "%s"
      }
    }
  }
`, url)
	fmt.Fprintln(w)

	// Cursor
	snippetSubheading(w, useColor, "Cursor (.cursor/mcp.json)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "postgres": {
        "url": "%s"
      }
    }
  }
`, url)
	fmt.Fprintln(w)

	// Windsurf
	snippetSubheading(w, useColor, "Windsurf (~/.codeium/windsurf/mcp_config.json)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "postgres": {
        "serverUrl": "%s"
      }
    }
  }
`, url)
}
