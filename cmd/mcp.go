package cmd

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hurou927/schemashift/internal/evolve"
	"github.com/hurou927/schemashift/internal/mcpserver"
	"github.com/hurou927/schemashift/internal/schema"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve read-only schema tools over MCP stdio",
	Long: `Starts an MCP server on stdin/stdout exposing list_tables, describe_table and
plan_migration. plan_migration only validates; it never changes the database.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		conn, dialect, err := connect(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		introspector := schema.NewIntrospector(conn.DB, dialect)
		planner := evolve.New(conn.DB, dialect, evolve.WithCatalog(introspector), evolve.WithLogger(log.StandardLogger()))

		log.Info("serving MCP on stdio")
		if err := server.ServeStdio(mcpserver.New(introspector, planner)); err != nil {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
