package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hurou927/schemashift/internal/evolve"
	"github.com/hurou927/schemashift/internal/plan"
	"github.com/hurou927/schemashift/internal/report"
)

var (
	migrateDryRun bool
	migrateBackup string
	migrateFormat string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate <table> <planFile>",
	Short: "Rebuild a table into the shape described by a plan file",
	Long: `Validates the plan against the live schema, copies the table into a shadow
table, verifies the row count and swaps the shadow into place.

Exit codes: 0 success, 1 aborted (nothing changed), 2 partial swap (run repair).`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		table, planPath := args[0], args[1]

		p, err := plan.Load(planPath)
		if err != nil {
			return err
		}
		if p.Source != table {
			return fmt.Errorf("plan %s rebuilds %q, not %q", planPath, p.Source, table)
		}

		ctx := context.Background()
		conn, dialect, err := connect(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		opts := []evolve.Option{evolve.WithLogger(log.StandardLogger())}
		if path := backupPath(table); path != "" && !migrateDryRun {
			opts = append(opts, evolve.WithBackup(backupOpener(path)))
		}

		executor := evolve.New(conn.DB, dialect, opts...)
		var res *evolve.Result
		if migrateDryRun {
			res = executor.DryRun(ctx, p)
		} else {
			res = executor.Execute(ctx, p)
		}

		if err := report.WriteResult(cmd.OutOrStdout(), res, migrateFormat); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		if res.Err != nil {
			cmd.SilenceErrors = true
		}
		return res.Err
	},
}

// backupPath is --backup, or a timestamped file in the config backup dir.
// It is empty when no backup is wanted.
func backupPath(table string) string {
	if migrateBackup != "" || cfg.Backup.Dir == "" {
		return migrateBackup
	}
	name := fmt.Sprintf("%s-%s.sql", table, time.Now().UTC().Format("20060102T150405Z"))
	return filepath.Join(cfg.Backup.Dir, name)
}

// backupOpener creates path when the executor is about to swap. An existing
// file is never overwritten.
func backupOpener(path string) evolve.BackupOpener {
	return func() (io.WriteCloser, error) {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("backup file %s already exists", path)
		}
		if err != nil {
			return nil, fmt.Errorf("creating backup file: %w", err)
		}
		log.WithField("path", path).Info("writing backup before swap")
		return f, nil
	}
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "validate the plan and print the SQL without executing it")
	migrateCmd.Flags().StringVar(&migrateBackup, "backup", "", "write the source rows as SQL to this file before the swap")
	migrateCmd.Flags().StringVar(&migrateFormat, "format", "text", "report format: text or json")
	rootCmd.AddCommand(migrateCmd)
}
