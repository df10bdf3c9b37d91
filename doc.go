// Package pgscope provides read-only PostgreSQL access for AI agents through
// the Model Context Protocol (MCP).
//
// It exposes a single query tool plus schema-browsing resources, with a full
// execution pipeline: statement classification, pooled read-only execution,
// data redaction, result truncation, and agent steering via error hints.
//
// Writes are blocked twice. A prefix classifier accepts only statements
// beginning with SELECT, WITH, SHOW, DESCRIBE, or EXPLAIN, and every pooled
// session runs with default_transaction_read_only = on, so anything that
// slips past the classifier is refused by PostgreSQL itself. SQL injection
// into catalog queries is prevented at the protocol level using the pgx
// extended query protocol (QueryExecModeExec).
//
// # Library Usage
//
//	s, err := pgscope.New(ctx, connString, pgscope.Config{
//		Pool:      pgscope.PoolConfig{MaxConns: 10},
//		Resources: pgscope.ResourcesConfig{ExposedSchemas: []string{"public"}},
//	}, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer s.Close(ctx)
//
//	// Use directly
//	output := s.Query(ctx, pgscope.QueryInput{SQL: "SELECT * FROM users LIMIT 10"})
//
//	// Or register on an MCP server
//	pgscope.RegisterMCP(mcpServer, s)
//
// # Resources
//
// Each exposed schema is published as a resource at
// postgres://{database}/schema/{schema}; reading it returns a JSON listing of
// the schema's tables. Each listed table URI
// (postgres://{database}/schema/{schema}/table/{table}) reads as a plain text
// column layout. Schemas outside the exposed set are rejected with a
// protocol error naming the reason, as are URIs that do not fit either
// shape. A
// leading '@' on a URI is ignored; some clients prepend one.
//
// For full documentation, configuration reference, and examples, see:
// https://github.com/pgscope/pgscope
package pgscope
