package schemauri

import (
	"errors"
	"fmt"
	"strings"
)

// Scheme is the URI scheme under which database resources are addressed.
const Scheme = "postgres"

// Catalog queries compiled by Resolve. Fixed statements; caller text reaches
// them only as bound parameter values, never by interpolation.
const (
	listTablesSQL = `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = $1
ORDER BY table_name;
`

	describeColumnsSQL = `
SELECT column_name, data_type, is_nullable
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position;
`
)

// Resolution errors. Wrapped errors carry the offending schema or URI;
// callers distinguish the two cases with errors.Is.
var (
	ErrSchemaNotExposed = errors.New("schema not exposed")
	ErrNotFound         = errors.New("resource not found")
)

// Kind identifies the catalog query a URI resolved to.
type Kind int

const (
	// KindSchemaTables lists the tables of one schema.
	KindSchemaTables Kind = iota
	// KindTableColumns lists the columns of one table.
	KindTableColumns
)

// Resolution is a resolved resource address: a fixed catalog statement with
// its bound parameters, plus the address parts it was resolved from.
type Resolution struct {
	Kind   Kind
	Schema string
	Table  string
	SQL    string
	Params []any
}

// Router resolves resource URIs of the shape
// postgres://{database}/schema/{schema} and
// postgres://{database}/schema/{schema}/table/{table} against a fixed set of
// exposed schemas. Immutable after construction; safe for concurrent use.
type Router struct {
	base    string
	exposed map[string]struct{}
	schemas []string
}

// NewRouter creates a Router for the given database name and exposed schema
// list. The schema list order is preserved for resource listings. Panics on
// invalid configuration.
func NewRouter(database string, schemas []string) *Router {
	if database == "" {
		panic("schemauri: database must be non-empty")
	}
	if strings.Contains(database, "/") {
		panic(fmt.Sprintf("schemauri: database %q must not contain '/'", database))
	}
	exposed := make(map[string]struct{}, len(schemas))
	ordered := make([]string, 0, len(schemas))
	for _, s := range schemas {
		if s == "" {
			panic("schemauri: exposed schema names must be non-empty")
		}
		if strings.Contains(s, "/") {
			panic(fmt.Sprintf("schemauri: exposed schema %q must not contain '/'", s))
		}
		if _, dup := exposed[s]; dup {
			continue
		}
		exposed[s] = struct{}{}
		ordered = append(ordered, s)
	}
	return &Router{
		base:    Scheme + "://" + database,
		exposed: exposed,
		schemas: ordered,
	}
}

// Schemas returns the exposed schema names in configuration order.
func (r *Router) Schemas() []string {
	out := make([]string, len(r.schemas))
	copy(out, r.schemas)
	return out
}

// Exposed reports whether the schema is in the exposed set.
func (r *Router) Exposed(schema string) bool {
	_, ok := r.exposed[schema]
	return ok
}

// SchemaURI returns the resource URI for a schema.
func (r *Router) SchemaURI(schema string) string {
	return r.base + "/schema/" + schema
}

// TableURI returns the resource URI for a table within a schema.
func (r *Router) TableURI(schema, table string) string {
	return r.base + "/schema/" + schema + "/table/" + table
}

// Resolve parses a resource URI and compiles it to a catalog query. A single
// leading '@' is stripped first; some clients prepend one. Returns
// ErrSchemaNotExposed when the address parses but names a schema outside the
// exposed set, and ErrNotFound for every other mismatch.
func (r *Router) Resolve(uri string) (*Resolution, error) {
	trimmed := strings.TrimPrefix(uri, "@")

	rest, ok := strings.CutPrefix(trimmed, r.base+"/schema/")
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
	}

	segments := strings.Split(rest, "/")
	switch len(segments) {
	case 1:
		schema := segments[0]
		if schema == "" {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
		}
		if !r.Exposed(schema) {
			return nil, fmt.Errorf("%w: %s", ErrSchemaNotExposed, schema)
		}
		return &Resolution{
			Kind:   KindSchemaTables,
			Schema: schema,
			SQL:    listTablesSQL,
			Params: []any{schema},
		}, nil
	case 3:
		schema, sep, table := segments[0], segments[1], segments[2]
		if schema == "" || sep != "table" || table == "" {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
		}
		if !r.Exposed(schema) {
			return nil, fmt.Errorf("%w: %s", ErrSchemaNotExposed, schema)
		}
		return &Resolution{
			Kind:   KindTableColumns,
			Schema: schema,
			Table:  table,
			SQL:    describeColumnsSQL,
			Params: []any{schema, table},
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
}
