package port

import "context"

// AuditEntry represents a single decision of the admission gate, accepted
// or refused.
type AuditEntry struct {
	Tool       string
	Target     string
	SQL        string
	Kind       string // statement kind when accepted
	Rejected   bool
	Reason     string // rejection reason code, when rejected
	Rows       int
	Truncated  bool
	DurationMS int64
	Err        error
}

// QueryAuditor records gate decisions.
type QueryAuditor interface {
	Record(ctx context.Context, entry AuditEntry)
	Close() error
}
