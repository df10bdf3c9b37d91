package pgscope

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pgscope/pgscope/internal/schemauri"
)

// ResourceContent is the payload of one resource read.
type ResourceContent struct {
	URI      string
	MimeType string
	Text     string
}

// ReadResource resolves a resource URI through the router and serves the
// catalog listing it addresses. Schema URIs return a JSON array of table
// descriptors; table URIs return a plain text column layout.
//
// Routing failures are returned as the router's errors
// (schemauri.ErrSchemaNotExposed, schemauri.ErrNotFound) so the protocol
// layer can map them; catalog execution failures come back from the gateway
// in its uniform "database error" shape.
func (s *Server) ReadResource(ctx context.Context, uri string) (*ResourceContent, error) {
	startTime := time.Now()

	res, err := s.router.Resolve(uri)
	if err != nil {
		s.logger.Error().Err(err).Str("uri", uri).Msg("resource rejected")
		return nil, err
	}

	result, err := s.Execute(ctx, res.SQL, res.Params)
	if err != nil {
		s.logger.Error().Err(err).Str("uri", uri).Msg("resource read failed")
		return nil, err
	}

	var content *ResourceContent
	if res.Kind == schemauri.KindTableColumns {
		content = s.tableContent(uri, res, result)
	} else {
		content, err = s.schemaContent(uri, res, result)
		if err != nil {
			return nil, err
		}
	}

	s.logger.Info().
		Str("uri", uri).
		Dur("duration", time.Since(startTime)).
		Int("row_count", result.RowCount).
		Msg("resource read")
	return content, nil
}

// schemaContent shapes a list-tables result into a JSON array of table
// descriptors. Each descriptor's URI resolves back through the router to the
// column layout of that table.
func (s *Server) schemaContent(uri string, res *schemauri.Resolution, result *QueryResult) (*ResourceContent, error) {
	descriptors := make([]TableDescriptor, 0, len(result.Rows))
	for _, row := range result.Rows {
		name, ok := row["table_name"].(string)
		if !ok {
			continue
		}
		descriptors = append(descriptors, TableDescriptor{
			URI:         s.router.TableURI(res.Schema, name),
			Name:        name,
			Description: fmt.Sprintf("Table %s.%s", res.Schema, name),
			MimeType:    "text/plain",
		})
	}
	jsonBytes, err := json.MarshalIndent(descriptors, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal table listing: %v", err)
	}
	return &ResourceContent{
		URI:      uri,
		MimeType: "application/json",
		Text:     string(jsonBytes),
	}, nil
}

// tableContent shapes a describe-columns result into a plain text column
// layout, one line per column in ordinal order.
func (s *Server) tableContent(uri string, res *schemauri.Resolution, result *QueryResult) *ResourceContent {
	var b strings.Builder
	fmt.Fprintf(&b, "Schema for table: %s.%s\n\n", res.Schema, res.Table)
	for _, row := range result.Rows {
		name, _ := row["column_name"].(string)
		dataType, _ := row["data_type"].(string)
		nullable := "NOT NULL"
		if v, _ := row["is_nullable"].(string); v == "YES" {
			nullable = "NULLABLE"
		}
		fmt.Fprintf(&b, "- %s: %s (%s)\n", name, dataType, nullable)
	}
	return &ResourceContent{
		URI:      uri,
		MimeType: "text/plain",
		Text:     b.String(),
	}
}
