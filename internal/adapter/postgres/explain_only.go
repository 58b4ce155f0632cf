package postgres

import (
	"context"

	"github.com/portcullisdb/portcullis/internal/core/domain"
	"github.com/portcullisdb/portcullis/internal/core/port"
)

// ExplainOnlyExecutor wraps a StatementExecutor and routes every wrappable
// statement through EXPLAIN, so no caller query actually runs. Used for
// dry-run deployments.
type ExplainOnlyExecutor struct {
	inner port.StatementExecutor
}

func NewExplainOnlyExecutor(inner port.StatementExecutor) *ExplainOnlyExecutor {
	return &ExplainOnlyExecutor{inner: inner}
}

func (e *ExplainOnlyExecutor) Execute(ctx context.Context, target string, stmt domain.Statement, params []any, limit int) (*port.Outcome, error) {
	if stmt.Kind.Wrappable() {
		stmt = domain.Statement{Text: "EXPLAIN " + stmt.Text, Kind: domain.StatementExplain}
	}
	return e.inner.Execute(ctx, target, stmt, params, limit)
}
