package cmd

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hurou927/schemashift/internal/evolve"
)

var repairCmd = &cobra.Command{
	Use:   "repair <table>",
	Short: "Rename the shadow table left by a partial swap into place",
	Long: `After migrate exits with code 2 the source table is gone and its rebuilt shadow
remains. repair renames that shadow back to the table name. It refuses to act
when the table exists or when more than one shadow is left.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		table := args[0]

		conn, dialect, err := connect(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		shadow, err := evolve.New(conn.DB, dialect, evolve.WithLogger(log.StandardLogger())).Repair(ctx, table)
		if errors.Is(err, evolve.ErrNothingToRepair) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: nothing to repair\n", table)
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: renamed %s into place\n", table, shadow)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(repairCmd)
}
