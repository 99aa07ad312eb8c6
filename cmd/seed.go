package cmd

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hurou927/schemashift/internal/fixture"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the charter sample schema and rows",
	Long: `Applies the embedded fixture migrations: users, operators, airports, flights
and bookings with sample rows. Already applied fixtures are skipped.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		conn, _, err := connect(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := fixture.Apply(ctx, conn.DB.DB, conn.Driver, log.StandardLogger()); err != nil {
			return fmt.Errorf("seeding: %w", err)
		}
		v, err := fixture.Version(ctx, conn.DB.DB, conn.Driver)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "charter fixtures at version %d\n", v)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
