package port

import (
	"context"

	"github.com/portcullisdb/portcullis/internal/core/domain"
)

// FieldDescriptor describes one column of a result set with a stable,
// human-readable type tag.
type FieldDescriptor struct {
	Name    string `json:"name"`
	TypeTag string `json:"type"`
}

// Outcome is the result of one executed statement. Truncated is true iff
// the underlying result held strictly more rows than the requested limit;
// the extra probe row is never included.
type Outcome struct {
	Rows      []map[string]any  `json:"rows"`
	Fields    []FieldDescriptor `json:"fields"`
	RowCount  int               `json:"row_count"`
	Truncated bool              `json:"truncated"`
}

// StatementExecutor runs an admission-approved statement against a named
// backend target with a hard row cap. Implementations must detect
// truncation, enforce the execution deadline server-side, and sanitize
// every error. Statements reach an executor only through the classifier.
type StatementExecutor interface {
	Execute(ctx context.Context, target string, stmt domain.Statement, params []any, limit int) (*Outcome, error)
}
