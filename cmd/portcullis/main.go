package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/portcullisdb/portcullis/internal/adapter/mcp"
	"github.com/portcullisdb/portcullis/internal/adapter/postgres"
	"github.com/portcullisdb/portcullis/internal/audit"
	"github.com/portcullisdb/portcullis/internal/config"
	"github.com/portcullisdb/portcullis/internal/core/domain"
	"github.com/portcullisdb/portcullis/internal/core/port"
	"github.com/portcullisdb/portcullis/internal/core/service"
	"github.com/portcullisdb/portcullis/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags builds config overrides from CLI arguments. Flags beat
// environment variables; unset flags leave the env value alone.
func parseFlags(args []string) (config.Overrides, error) {
	var o config.Overrides

	fs := flag.NewFlagSet("portcullis", flag.ContinueOnError)

	targetsFile := fs.String("targets-file", "", "path to YAML file of named database targets")
	databaseURL := fs.String("database-url", "", "PostgreSQL connection URL for a single target")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn, error")
	queryTimeout := fs.Duration("query-timeout", 0, "server-enforced statement timeout")
	acquireTimeout := fs.Duration("acquire-timeout", 0, "max wait for a pooled connection")
	maxRows := fs.Int("max-rows", 0, "hard ceiling on rows returned per query")
	transport := fs.String("transport", "", "transport: stdio or http")
	httpAddr := fs.String("http-addr", "", "listen address for the HTTP transport")
	httpBearerToken := fs.String("http-bearer-token", "", "bearer token required by the HTTP transport")
	poolMaxConns := fs.Int("pool-max-conns", 0, "max connections per target pool")
	poolMinConns := fs.Int("pool-min-conns", -1, "min idle connections per target pool")
	poolMaxConnLifetime := fs.Duration("pool-max-conn-lifetime", 0, "max lifetime of a pooled connection")

	fs.BoolVar(&o.OTelEnabled, "otel", false, "enable OpenTelemetry traces and metrics")
	fs.BoolVar(&o.AllowExtended, "allow-extended", false, "admit EXPLAIN, SHOW, WITH, and VALUES besides SELECT")
	fs.BoolVar(&o.StrictParse, "strict-parse", false, "additionally run accepted statements through the PostgreSQL parser")
	fs.BoolVar(&o.ExplainOnly, "explain-only", false, "plan statements with EXPLAIN instead of executing them")
	fs.StringVar(&o.AuditLog, "audit-log", "", "path to an NDJSON audit log file")

	if err := fs.Parse(args); err != nil {
		return o, err
	}

	if *targetsFile != "" {
		o.TargetsFile = targetsFile
	}
	if *databaseURL != "" {
		o.DatabaseURL = databaseURL
	}
	if *logLevel != "" {
		o.LogLevel = logLevel
	}
	if *queryTimeout != 0 {
		o.QueryTimeout = queryTimeout
	}
	if *acquireTimeout != 0 {
		o.AcquireTimeout = acquireTimeout
	}
	if *maxRows != 0 {
		o.MaxRows = maxRows
	}
	if *transport != "" {
		o.Transport = transport
	}
	if *httpAddr != "" {
		o.HTTPAddr = httpAddr
	}
	if *httpBearerToken != "" {
		o.HTTPBearerToken = httpBearerToken
	}
	if *poolMaxConns != 0 {
		n := int32(*poolMaxConns)
		o.PoolMaxConns = &n
	}
	if *poolMinConns >= 0 {
		n := int32(*poolMinConns)
		o.PoolMinConns = &n
	}
	if *poolMaxConnLifetime != 0 {
		o.PoolMaxConnLifetime = poolMaxConnLifetime
	}

	return o, nil
}

func run(args []string) error {
	overrides, err := parseFlags(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Logs go to stderr — stdout is reserved for the MCP stdio transport.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	logger.Info("starting portcullis",
		slog.String("version", version),
		slog.String("log_level", cfg.LogLevel.String()),
		slog.Int("targets", len(cfg.Targets)),
		slog.String("transport", cfg.Transport),
		slog.String("query_timeout", cfg.QueryTimeout.String()),
		slog.Int("max_rows", cfg.AdHocMaxRows),
		slog.Bool("allow_extended", cfg.AllowExtended),
		slog.Bool("strict_parse", cfg.StrictParse),
		slog.Bool("explain_only", cfg.ExplainOnly),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Telemetry (optional).
	var tracer trace.Tracer
	var inst *telemetry.Instruments
	if cfg.OTelEnabled {
		provider, err := telemetry.Init(ctx, "portcullis", version)
		if err != nil {
			return fmt.Errorf("initializing telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				logger.Error("telemetry shutdown", slog.String("error", err.Error()))
			}
		}()
		tracer = otel.Tracer("github.com/portcullisdb/portcullis")
		inst = telemetry.NewInstruments()
		logger.Info("telemetry enabled")
	} else {
		tracer = telemetry.NoopTracer()
		inst = telemetry.NoopInstruments()
	}

	// Connection pools, one per target.
	registry, err := postgres.NewRegistry(ctx, cfg.Targets, postgres.PoolSettings{
		MaxConns:        cfg.PoolMaxConns,
		MinConns:        cfg.PoolMinConns,
		MaxConnLifetime: cfg.PoolMaxConnLifetime,
	})
	if err != nil {
		return fmt.Errorf("connecting to targets: %w", err)
	}
	defer registry.Close()

	for _, t := range cfg.Targets {
		logger.Info("target connected",
			slog.String("target", t.Name),
			slog.String("dsn", redactDSN(t.DSN())),
		)
	}

	// Adapters
	var executor port.StatementExecutor = postgres.NewExecutor(registry, cfg.QueryTimeout, cfg.AcquireTimeout)
	if cfg.ExplainOnly {
		executor = postgres.NewExplainOnlyExecutor(executor)
		logger.Info("explain-only mode: statements are planned, not executed")
	}
	explorer := postgres.NewExplorer(registry)

	// Audit sink (optional).
	var auditor port.QueryAuditor = audit.NoopAuditor{}
	if cfg.AuditLog != "" {
		fa, err := audit.NewFileAuditor(cfg.AuditLog)
		if err != nil {
			return fmt.Errorf("opening audit log: %w", err)
		}
		auditor = fa
		logger.Info("audit log enabled", slog.String("file", cfg.AuditLog))
	}
	defer func() {
		if err := auditor.Close(); err != nil {
			logger.Error("closing audit log", slog.String("error", err.Error()))
		}
	}()

	// Domain
	var classifierOpts []domain.ClassifierOption
	if cfg.AllowExtended {
		classifierOpts = append(classifierOpts, domain.WithExtendedStatements())
	}
	if cfg.StrictParse {
		classifierOpts = append(classifierOpts, domain.WithStrictParse())
	}
	classifier := domain.NewClassifier(classifierOpts...)

	// Services
	querySvc := service.NewQueryService(classifier, executor, auditor, logger, tracer, inst)

	// MCP server with tool handlers.
	mcpServer := mcp.NewServer(version, explorer, querySvc, mcp.ToolConfig{
		DefaultTarget: cfg.Targets[0].Name,
		AdHocLimits:   domain.LimitProfile{Default: cfg.AdHocDefaultRows, Max: cfg.AdHocMaxRows},
		PreviewLimits: domain.LimitProfile{Default: cfg.PreviewDefaultRows, Max: cfg.PreviewMaxRows},
		AllowExplain:  cfg.AllowExtended,
	}, logger, tracer, inst)

	if cfg.Transport == "http" {
		return serveHTTP(ctx, mcpServer, cfg, logger)
	}

	stdioServer := mcpserver.NewStdioServer(mcpServer)

	logger.Info("serving MCP over stdio")
	if err := stdioServer.Listen(ctx, os.Stdin, os.Stdout); err != nil {
		return fmt.Errorf("stdio server: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func serveHTTP(ctx context.Context, mcpServer *mcpserver.MCPServer, cfg *config.Config, logger *slog.Logger) error {
	streamable := mcpserver.NewStreamableHTTPServer(mcpServer)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/mcp", bearerAuthMiddleware(streamable, cfg.HTTPBearerToken))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           recoveryMiddleware(mux, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving MCP over HTTP", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// redactDSN hides the password in a connection URL for logging.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		if _, has := u.User.Password(); has {
			u.User = url.UserPassword(u.User.Username(), "***")
		}
	}
	return u.String()
}
