// Package mcpserver exposes read-only schema tools over MCP stdio.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hurou927/schemashift/internal/evolve"
)

// Name and Version identify the server to MCP clients.
const (
	Name    = "schemashift"
	Version = "0.1.0"
)

// New returns an MCP server with every tool registered.
func New(catalog evolve.Catalog, planner Planner) *server.MCPServer {
	s := server.NewMCPServer(
		Name,
		Version,
		server.WithToolCapabilities(false),
		server.WithLogging(),
	)
	RegisterTools(s, catalog, planner)
	return s
}

// RegisterTools adds list_tables, describe_table and plan_migration to s.
func RegisterTools(s *server.MCPServer, catalog evolve.Catalog, planner Planner) {
	listTool := mcp.NewTool("list_tables",
		mcp.WithDescription("List the user tables in the database"),
	)

	describeTool := mcp.NewTool("describe_table",
		mcp.WithDescription("Describe the columns, foreign keys and row count of a table"),
		mcp.WithString("table",
			mcp.Required(),
			mcp.Description("Name of the table to describe"),
		),
	)

	planTool := mcp.NewTool("plan_migration",
		mcp.WithDescription("Validate a table rebuild plan and return the SQL it would run, without changing anything"),
		mcp.WithString("plan",
			mcp.Required(),
			mcp.Description("Plan document in YAML: source, target columns and mapping"),
		),
	)

	s.AddTool(listTool, ListTablesHandler(catalog))
	s.AddTool(describeTool, DescribeTableHandler(catalog))
	s.AddTool(planTool, PlanMigrationHandler(planner))
}
