package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/portcullisdb/portcullis/internal/core/domain"
	"github.com/portcullisdb/portcullis/internal/core/port"
)

// sqlstateQueryCanceled is raised when statement_timeout cancels a query
// server-side.
const sqlstateQueryCanceled = "57014"

// Executor runs admission-approved statements against the registry's pools
// with a hard row cap and a server-enforced deadline. Every error it
// returns has passed the sanitizer.
type Executor struct {
	registry       *Registry
	queryTimeout   time.Duration
	acquireTimeout time.Duration
}

func NewExecutor(registry *Registry, queryTimeout, acquireTimeout time.Duration) *Executor {
	return &Executor{
		registry:       registry,
		queryTimeout:   queryTimeout,
		acquireTimeout: acquireTimeout,
	}
}

func (e *Executor) Execute(ctx context.Context, target string, stmt domain.Statement, params []any, limit int) (*port.Outcome, error) {
	pool, err := e.registry.Pool(target)
	if err != nil {
		return nil, err
	}

	// Backpressure: wait for a pooled connection up to the acquisition
	// deadline. Exhaustion is reported distinctly from a statement timeout.
	acquireCtx, cancelAcquire := context.WithTimeout(ctx, e.acquireTimeout)
	conn, err := pool.Acquire(acquireCtx)
	cancelAcquire()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, domain.NewPoolExhaustedError(target, e.acquireTimeout)
		}
		return nil, domain.NewBackendError(target, err)
	}
	defer conn.Release()

	// The client deadline runs slightly past statement_timeout so the
	// backend cancels first and stops doing wasted work; a client-side race
	// win is still reported as a timeout, never as success.
	ctx, cancel := context.WithTimeout(ctx, e.queryTimeout+2*time.Second)
	defer cancel()

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, e.mapError(target, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// SET LOCAL scopes to this transaction only — no global side effects.
	timeoutMS := e.queryTimeout.Milliseconds()
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = '%d'", timeoutMS)); err != nil {
		return nil, e.mapError(target, err)
	}

	rows, err := tx.Query(ctx, capStatement(stmt, limit), params...)
	if err != nil {
		return nil, e.mapError(target, err)
	}

	outcome, err := collectOutcome(rows, limit)
	if err != nil {
		return nil, e.mapError(target, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, e.mapError(target, err)
	}

	return outcome, nil
}

// capStatement wraps the approved statement in an outer bounded projection
// that requests one row beyond the cap — the truncation probe. Wrapping
// instead of appending a LIMIT keeps the cap correct no matter what
// trailing clauses the caller's SQL carries. EXPLAIN and SHOW cannot be
// wrapped; their output is capped while scanning instead.
func capStatement(stmt domain.Statement, limit int) string {
	if !stmt.Kind.Wrappable() {
		return stmt.Text
	}
	return fmt.Sprintf("SELECT * FROM (%s) AS gate LIMIT %d", stmt.Text, limit+1)
}

// mapError folds driver failures into the gate taxonomy. Server-side
// cancellation (SQLSTATE 57014) and a client deadline both count as
// Timeout; everything else is a sanitized backend error.
func (e *Executor) mapError(target string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == sqlstateQueryCanceled {
		return domain.NewTimeoutError(target, e.queryTimeout)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewTimeoutError(target, e.queryTimeout)
	}
	return domain.NewBackendError(target, err)
}
