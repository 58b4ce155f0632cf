package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/portcullisdb/portcullis/internal/core/domain"
	"github.com/portcullisdb/portcullis/internal/core/port"
	"github.com/portcullisdb/portcullis/internal/core/service"
)

// Server metadata
const serverName = "portcullis"

// Tool descriptions
const (
	descQuery = "Execute a read-only SQL query against a named database target and return rows, " +
		"field types, and a truncation flag as JSON. Only SELECT-shaped statements are admitted; " +
		"a server-side row cap and query timeout are always enforced. " +
		"Use specific column names instead of SELECT * and add WHERE clauses to keep results small."

	descQuerySQL    = "SQL query to execute (read-only statements only)"
	descQueryRows   = "Maximum number of rows to return (clamped to the server's ceiling)"
	descTargetParam = "Named database target (optional, defaults to the first configured target)"

	descExplainQuery = "Show the PostgreSQL execution plan for a SQL query. " +
		"Returns the planner's strategy including scan types, join methods, and cost estimates. " +
		"Supports ANALYZE to include actual execution statistics (the query WILL be executed)."

	descExplainQuerySQL = "The SELECT query to explain (without the EXPLAIN keyword)"

	descPreviewTable = "Return a small sample of rows from one table. " +
		"Use this to see the shape of real data before writing queries; the row cap is much " +
		"smaller than the query tool's."

	descPreviewTableParam = "Name of the table to preview"

	descListSchemas = "List all available database schemas on a target. " +
		"Call this first to discover what exists before listing tables or describing them."

	descListTables = "List all tables and views with schema, type, estimated row count, total size, " +
		"column count, and comment. Table sizes tell you which tables are large (avoid SELECT * on them) " +
		"and row estimates help you plan queries with appropriate LIMIT clauses."

	descDescribeTable = "Describe a table's structure: columns with types, nullability, defaults, and " +
		"comments; primary keys; foreign keys with referenced tables; indexes; row estimate; and size. " +
		"Use foreign keys to find JOIN paths before writing queries."

	descDescribeTableParam = "Name of the table to describe"
)

// ToolConfig carries the per-call-site row-cap profiles and target names.
// The two ceilings are deliberately different: previews are small, ad-hoc
// queries larger.
type ToolConfig struct {
	DefaultTarget string
	AdHocLimits   domain.LimitProfile
	PreviewLimits domain.LimitProfile
	AllowExplain  bool
}

func RegisterTools(s *server.MCPServer, explorer port.CatalogExplorer, query *service.QueryService, cfg ToolConfig) {
	s.AddTool(
		mcp.NewTool("query",
			mcp.WithDescription(descQuery),
			mcp.WithString("sql",
				mcp.Required(),
				mcp.Description(descQuerySQL),
			),
			mcp.WithNumber("max_rows",
				mcp.Description(descQueryRows),
			),
			mcp.WithString("target",
				mcp.Description(descTargetParam),
			),
		),
		queryHandler(query, cfg),
	)

	if cfg.AllowExplain {
		s.AddTool(
			mcp.NewTool("explain_query",
				mcp.WithDescription(descExplainQuery),
				mcp.WithString("sql",
					mcp.Required(),
					mcp.Description(descExplainQuerySQL),
				),
				mcp.WithBoolean("analyze",
					mcp.Description("Include actual execution statistics (executes the query). Defaults to false."),
				),
				mcp.WithString("target",
					mcp.Description(descTargetParam),
				),
			),
			explainQueryHandler(query, cfg),
		)
	}

	s.AddTool(
		mcp.NewTool("preview_table",
			mcp.WithDescription(descPreviewTable),
			mcp.WithString("table_name",
				mcp.Required(),
				mcp.Description(descPreviewTableParam),
			),
			mcp.WithString("schema",
				mcp.Description("Schema name (optional)"),
			),
			mcp.WithNumber("max_rows",
				mcp.Description("Rows to sample (clamped to the preview ceiling)"),
			),
			mcp.WithString("target",
				mcp.Description(descTargetParam),
			),
		),
		previewTableHandler(query, cfg),
	)

	s.AddTool(
		mcp.NewTool("list_schemas",
			mcp.WithDescription(descListSchemas),
			mcp.WithString("target",
				mcp.Description(descTargetParam),
			),
		),
		listSchemasHandler(explorer, cfg),
	)

	s.AddTool(
		mcp.NewTool("list_tables",
			mcp.WithDescription(descListTables),
			mcp.WithString("target",
				mcp.Description(descTargetParam),
			),
		),
		listTablesHandler(explorer, cfg),
	)

	s.AddTool(
		mcp.NewTool("describe_table",
			mcp.WithDescription(descDescribeTable),
			mcp.WithString("table_name",
				mcp.Required(),
				mcp.Description(descDescribeTableParam),
			),
			mcp.WithString("schema",
				mcp.Description("Schema name (optional, resolves automatically if omitted)"),
			),
			mcp.WithString("target",
				mcp.Description(descTargetParam),
			),
		),
		describeTableHandler(explorer, cfg),
	)
}

// targetArg picks the request's target name, falling back to the default.
func targetArg(request mcp.CallToolRequest, cfg ToolConfig) string {
	if t, ok := request.GetArguments()["target"].(string); ok && t != "" {
		return t
	}
	return cfg.DefaultTarget
}

// intArg reads an optional numeric argument; JSON numbers arrive as float64.
func intArg(request mcp.CallToolRequest, name string) int {
	if v, ok := request.GetArguments()[name].(float64); ok {
		return int(v)
	}
	return 0
}

// toolError renders an error for the caller. Every outbound message passes
// the sanitizer once more, even ones the gate already scrubbed.
func toolError(msg string, err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(domain.Sanitize(fmt.Sprintf("%s: %v", msg, err)))
}

func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func queryHandler(query *service.QueryService, cfg ToolConfig) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, ok := request.GetArguments()["sql"].(string)
		if !ok || sql == "" {
			return mcp.NewToolResultError("sql is required"), nil
		}

		ctx = service.WithToolName(ctx, "query")
		outcome, err := query.Execute(ctx, service.QueryRequest{
			Target:  targetArg(request, cfg),
			SQL:     sql,
			MaxRows: intArg(request, "max_rows"),
			Limits:  cfg.AdHocLimits,
		})
		if err != nil {
			return toolError("query failed", err), nil
		}

		return marshalResult(outcome)
	}
}

func explainQueryHandler(query *service.QueryService, cfg ToolConfig) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, ok := request.GetArguments()["sql"].(string)
		if !ok || sql == "" {
			return mcp.NewToolResultError("sql is required"), nil
		}

		analyze, _ := request.GetArguments()["analyze"].(bool)

		prefix := "EXPLAIN "
		if analyze {
			prefix = "EXPLAIN ANALYZE "
		}

		ctx = service.WithToolName(ctx, "explain_query")
		outcome, err := query.Execute(ctx, service.QueryRequest{
			Target: targetArg(request, cfg),
			SQL:    prefix + sql,
			Limits: cfg.AdHocLimits,
		})
		if err != nil {
			return toolError("explain failed", err), nil
		}

		return marshalResult(outcome)
	}
}

func previewTableHandler(query *service.QueryService, cfg ToolConfig) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tableName, ok := request.GetArguments()["table_name"].(string)
		if !ok || tableName == "" {
			return mcp.NewToolResultError("table_name is required"), nil
		}

		rel := domain.QuoteIdentifier(tableName)
		if schema, _ := request.GetArguments()["schema"].(string); schema != "" {
			rel = domain.QuoteIdentifier(schema) + "." + rel
		}

		ctx = service.WithToolName(ctx, "preview_table")
		outcome, err := query.Execute(ctx, service.QueryRequest{
			Target:  targetArg(request, cfg),
			SQL:     "SELECT * FROM " + rel,
			MaxRows: intArg(request, "max_rows"),
			Limits:  cfg.PreviewLimits,
		})
		if err != nil {
			return toolError("preview failed", err), nil
		}

		return marshalResult(outcome)
	}
}

func listSchemasHandler(explorer port.CatalogExplorer, cfg ToolConfig) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		schemas, err := explorer.ListSchemas(ctx, targetArg(request, cfg))
		if err != nil {
			return toolError("failed to list schemas", err), nil
		}
		return marshalResult(schemas)
	}
}

func listTablesHandler(explorer port.CatalogExplorer, cfg ToolConfig) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tables, err := explorer.ListTables(ctx, targetArg(request, cfg))
		if err != nil {
			return toolError("failed to list tables", err), nil
		}
		return marshalResult(tables)
	}
}

func describeTableHandler(explorer port.CatalogExplorer, cfg ToolConfig) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tableName, ok := request.GetArguments()["table_name"].(string)
		if !ok || tableName == "" {
			return mcp.NewToolResultError("table_name is required"), nil
		}

		schema, _ := request.GetArguments()["schema"].(string)

		detail, err := explorer.DescribeTable(ctx, targetArg(request, cfg), schema, tableName)
		if err != nil {
			return toolError("failed to describe table", err), nil
		}
		return marshalResult(detail)
	}
}
