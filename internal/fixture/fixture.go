// Package fixture creates the charter sample schema and rows.
package fixture

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/hurou927/schemashift/internal/config"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// VersionTable is where goose records applied fixture versions.
const VersionTable = "schemashift_seed_version"

// Expected row counts after Apply, keyed by table.
var RowCounts = map[string]int64{
	"users":     4,
	"operators": 2,
	"airports":  5,
	"flights":   3,
	"bookings":  3,
}

func gooseDialect(driver string) (string, error) {
	switch driver {
	case config.DriverSQLite:
		return "sqlite3", nil
	case config.DriverPostgres:
		return "postgres", nil
	case config.DriverMySQL:
		return "mysql", nil
	default:
		return "", fmt.Errorf("no fixture dialect for driver %q", driver)
	}
}

// Apply runs the pending fixture migrations against db. logger may be nil.
func Apply(ctx context.Context, db *sql.DB, driver string, logger goose.Logger) error {
	dialect, err := gooseDialect(driver)
	if err != nil {
		return err
	}

	goose.SetBaseFS(embedMigrations)
	goose.SetTableName(VersionTable)
	if logger != nil {
		goose.SetLogger(logger)
	}

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("goose set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Version returns the latest applied fixture version.
func Version(ctx context.Context, db *sql.DB, driver string) (int64, error) {
	dialect, err := gooseDialect(driver)
	if err != nil {
		return 0, err
	}
	goose.SetTableName(VersionTable)
	if err := goose.SetDialect(dialect); err != nil {
		return 0, fmt.Errorf("goose set dialect: %w", err)
	}
	v, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("reading fixture version: %w", err)
	}
	return v, nil
}
