package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/portcullisdb/portcullis/internal/core/domain"
	"github.com/portcullisdb/portcullis/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type toolNameKey struct{}

// WithToolName returns a context carrying the MCP tool name for audit logging.
func WithToolName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, toolNameKey{}, name)
}

func toolNameFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(toolNameKey{}).(string); ok {
		return v
	}
	return ""
}

// QueryRequest is one caller submission to the admission gate. SQL and
// MaxRows are caller-controlled and never trusted; Limits is chosen by the
// call site, not the caller.
type QueryRequest struct {
	Target  string
	SQL     string
	Params  []any
	MaxRows int
	Limits  domain.LimitProfile
}

// QueryService is the admission gate: it classifies every submitted
// statement and dispatches only accepted ones to the executor. A rejected
// statement never touches a connection.
type QueryService struct {
	classifier *domain.Classifier
	executor   port.StatementExecutor
	auditor    port.QueryAuditor
	logger     *slog.Logger
	tracer     trace.Tracer
	inst       port.Instrumentation
}

func NewQueryService(classifier *domain.Classifier, executor port.StatementExecutor, auditor port.QueryAuditor, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *QueryService {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	return &QueryService{
		classifier: classifier,
		executor:   executor,
		auditor:    auditor,
		logger:     logger,
		tracer:     tracer,
		inst:       inst,
	}
}

// Execute classifies the statement and, if accepted, runs it with a clamped
// row cap. Per call the path is Received → Classified → Rewritten →
// Executing → Succeeded|Failed, with no retries anywhere.
func (s *QueryService) Execute(ctx context.Context, req QueryRequest) (*port.Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "QueryService.Execute",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.target", req.Target),
			attribute.String("db.statement", req.SQL),
		),
	)
	defer span.End()

	verdict := s.classifier.Classify(req.SQL)
	if !verdict.Accepted {
		err := verdict.Err()
		s.logger.WarnContext(ctx, "statement rejected",
			slog.String("db.target", req.Target),
			slog.String("reject.reason", string(verdict.Reason)),
			slog.String("db.statement", req.SQL),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.inst.IncrementRejections(ctx, string(verdict.Reason))
		s.auditor.Record(ctx, port.AuditEntry{
			Tool:     toolNameFromCtx(ctx),
			Target:   req.Target,
			SQL:      req.SQL,
			Rejected: true,
			Reason:   string(verdict.Reason),
			Err:      err,
		})
		return nil, err
	}

	limit := req.Limits.Clamp(req.MaxRows)

	start := time.Now()
	outcome, err := s.executor.Execute(ctx, req.Target, verdict.Statement, req.Params, limit)
	durationMS := time.Since(start).Milliseconds()

	s.inst.RecordQueryDuration(ctx, float64(durationMS))

	entry := port.AuditEntry{
		Tool:       toolNameFromCtx(ctx),
		Target:     req.Target,
		SQL:        req.SQL,
		Kind:       string(verdict.Statement.Kind),
		DurationMS: durationMS,
		Err:        err,
	}
	if outcome != nil {
		entry.Rows = outcome.RowCount
		entry.Truncated = outcome.Truncated
	}
	s.auditor.Record(ctx, entry)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.inst.IncrementQueryErrors(ctx)
		return nil, err
	}

	s.inst.IncrementQueryCount(ctx)
	if outcome.Truncated {
		s.inst.IncrementTruncations(ctx)
	}
	span.SetAttributes(
		attribute.Int("db.response.rows", outcome.RowCount),
		attribute.Bool("db.response.truncated", outcome.Truncated),
	)

	return outcome, nil
}
