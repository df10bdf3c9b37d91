package pgscope

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/pgscope/pgscope/internal/schemauri"
)

// RegisterMCP registers the query tool and the schema browsing resources on
// the given MCP server. One concrete resource is added per exposed schema
// (these drive resources/list), plus a single catch-all template that routes
// every other URI through the resource router so rejections carry the
// router's reasons. mcp-go iterates templates in map order, so only one
// template may ever be registered here.
func RegisterMCP(mcpServer *server.MCPServer, s *Server) {
	queryTool := mcp.NewTool("query",
		mcp.WithDescription("Execute a read-only SQL query against the PostgreSQL database. Returns results as JSON. Only SELECT, WITH, SHOW, DESCRIBE, and EXPLAIN statements are accepted."),
		mcp.WithString("sql",
			mcp.Required(),
			mcp.Description("The SQL query to execute"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(queryTool, s.loggedToolHandler("query", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, err := req.RequireString("sql")
		if err != nil {
			return nil, fmt.Errorf("invalid params: %v", err)
		}
		output := s.Query(ctx, QueryInput{SQL: sql})
		if output.Error != "" {
			return mcp.NewToolResultError(output.Error), nil
		}
		jsonBytes, err := json.MarshalIndent(output.Result, "", "  ")
		if err != nil {
			return mcp.NewToolResultError("failed to marshal query result"), nil
		}
		return mcp.NewToolResultText(string(jsonBytes)), nil
	}))

	for _, schema := range s.router.Schemas() {
		resource := mcp.NewResource(
			s.router.SchemaURI(schema),
			fmt.Sprintf("Tables in schema %q", schema),
			mcp.WithResourceDescription(fmt.Sprintf("JSON listing of the tables in the %s schema. Read a listed table URI for its column layout.", schema)),
			mcp.WithMIMEType("application/json"),
		)
		mcpServer.AddResource(resource, s.readResourceHandler)
	}

	catchAll := mcp.NewResourceTemplate(
		"{+uri}",
		"Database schema browser",
		mcp.WithTemplateDescription(fmt.Sprintf("Resolves %s://{database}/schema/{schema} to a table listing and %s://{database}/schema/{schema}/table/{table} to a column layout. A leading '@' is ignored.", schemauri.Scheme, schemauri.Scheme)),
		mcp.WithTemplateMIMEType("text/plain"),
	)
	mcpServer.AddResourceTemplate(catchAll, s.readResourceHandler)
}

// readResourceHandler serves resources/read for both the per-schema
// resources and the catch-all template. Every failure is returned as a
// handler error, which the protocol layer surfaces as a JSON-RPC fault;
// router rejections carry their reason ("schema not exposed", "resource
// not found") in the fault message.
func (s *Server) readResourceHandler(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	content, err := s.ReadResource(ctx, req.Params.URI)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      content.URI,
			MIMEType: content.MimeType,
			Text:     content.Text,
		},
	}, nil
}

// loggedToolHandler wraps a tool handler to log request and response lengths.
func (s *Server) loggedToolHandler(tool string, handler server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reqLen := requestLength(req)
		result, err := handler(ctx, req)
		respLen := resultLength(result)
		s.logger.Info().
			Str("tool", tool).
			Int("request_bytes", reqLen).
			Int("response_bytes", respLen).
			Msg("tool call")
		return result, err
	}
}

// requestLength returns the JSON-encoded byte length of the request arguments.
func requestLength(req mcp.CallToolRequest) int {
	args := req.GetArguments()
	if len(args) == 0 {
		return 0
	}
	b, err := json.Marshal(args)
	if err != nil {
		return 0
	}
	return len(b)
}

// resultLength returns the total byte length of text content in a CallToolResult.
func resultLength(result *mcp.CallToolResult) int {
	if result == nil {
		return 0
	}
	total := 0
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			total += len(tc.Text)
		}
	}
	return total
}
