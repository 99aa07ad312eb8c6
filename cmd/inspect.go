package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hurou927/schemashift/internal/report"
	"github.com/hurou927/schemashift/internal/schema"
)

var inspectFormat string

var inspectCmd = &cobra.Command{
	Use:   "inspect [table...]",
	Short: "Report tables, columns, row counts and the FK dependency graph",
	Long: `Connects to the database, introspects the named tables (all user tables when
none are given), builds the FK dependency graph, and outputs it in the specified format.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		conn, dialect, err := connect(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		snapshot, err := schema.NewIntrospector(conn.DB, dialect).Snapshot(ctx, args)
		if err != nil {
			return fmt.Errorf("introspecting schema: %w", err)
		}

		in, g := report.NewInspection(snapshot)
		return report.WriteInspection(cmd.OutOrStdout(), in, g, inspectFormat)
	},
}

func init() {
	inspectCmd.Flags().StringVar(&inspectFormat, "format", "text", "output format: text, json, yaml or mermaid")
	rootCmd.AddCommand(inspectCmd)
}
