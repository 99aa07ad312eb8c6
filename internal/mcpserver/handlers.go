package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hurou927/schemashift/internal/evolve"
	"github.com/hurou927/schemashift/internal/plan"
	"github.com/hurou927/schemashift/internal/schema"
)

// Planner validates a plan without executing it. *evolve.Executor implements it.
type Planner interface {
	DryRun(ctx context.Context, p *plan.Plan) *evolve.Result
}

// ListTablesHandler creates a handler for the list_tables tool.
func ListTablesHandler(catalog evolve.Catalog) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tables, err := catalog.ListTables(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Listing tables failed: %v", err)), nil
		}
		return jsonResult(tables)
	}
}

// DescribeTableHandler creates a handler for the describe_table tool.
func DescribeTableHandler(catalog evolve.Catalog) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := request.RequireString("table")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Missing table parameter: %v", err)), nil
		}

		tbl, err := catalog.GetTableSchema(ctx, table)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Describe failed: %v", err)), nil
		}
		n, err := catalog.GetRowCount(ctx, table)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Row count failed: %v", err)), nil
		}
		return jsonResult(&schema.TableInfo{Table: tbl, RowCount: n})
	}
}

// PlanMigrationHandler creates a handler for the plan_migration tool.
func PlanMigrationHandler(planner Planner) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		doc, err := request.RequireString("plan")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Missing plan parameter: %v", err)), nil
		}

		p, err := plan.Parse([]byte(doc))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		res := planner.DryRun(ctx, p)
		if res.Err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("%s: %v", evolve.Kind(res.Err), res.Err)), nil
		}
		return jsonResult(res)
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}
