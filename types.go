package pgscope

// QueryInput is the input for the query tool.
type QueryInput struct {
	SQL string `json:"sql"`
}

// Field describes one column of a result set. DataTypeID is the PostgreSQL
// type OID reported by the wire protocol.
type Field struct {
	Name       string `json:"name"`
	DataTypeID uint32 `json:"dataTypeID"`
}

// QueryResult is the structured result of one statement execution. Produced
// fresh per execution, never cached.
type QueryResult struct {
	RowCount int                      `json:"rowCount"`
	Rows     []map[string]interface{} `json:"rows"`
	Fields   []Field                  `json:"fields"`
}

// QueryOutput is the outcome of the query tool pipeline. Exactly one of
// Result and Error is set. All failures (classifier rejections, database
// errors, limit violations) land in Error with any matching error hint
// guidance appended, so callers only check Error, never a Go error.
type QueryOutput struct {
	Result *QueryResult
	Error  string
}

// TableDescriptor is one entry in a schema resource listing.
type TableDescriptor struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MimeType    string `json:"mimeType"`
}
