package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"
	"github.com/portcullisdb/portcullis/internal/core/port"
	"github.com/portcullisdb/portcullis/internal/core/service"
	"go.opentelemetry.io/otel/trace"
)

// NewServer creates an MCPServer with the gate's tools and logging hooks.
func NewServer(version string, explorer port.CatalogExplorer, query *service.QueryService, cfg ToolConfig, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		version,
		server.WithHooks(ToolCallHooks(logger, tracer, inst)),
	)

	RegisterTools(s, explorer, query, cfg)

	return s
}
