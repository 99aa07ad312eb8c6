package fixture

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/hurou927/schemashift/internal/config"
	"github.com/hurou927/schemashift/internal/db"
)

// OpenTestCharter opens a rebuild session on a SQLite file in t.TempDir(),
// applies the charter fixtures, and registers cleanup.
func OpenTestCharter(t *testing.T) *sqlx.DB {
	t.Helper()

	conn := OpenTestSQLite(t)
	if err := Apply(context.Background(), conn.DB, config.DriverSQLite, nil); err != nil {
		t.Fatalf("apply charter fixtures: %v", err)
	}
	return conn
}

// OpenTestSQLite opens an empty rebuild session on a SQLite file in t.TempDir().
func OpenTestSQLite(t *testing.T) *sqlx.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "charter.sqlite")
	conn, err := db.OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("open test sqlite: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
