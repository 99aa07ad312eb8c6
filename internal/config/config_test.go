package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_SQLiteDefaults(t *testing.T) {
	t.Setenv("SCHEMASHIFT_SQLITE_PATH", "")

	cfg, err := Parse([]byte("database:\n  path: charter.db\n"))
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "charter.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestParse_SQLitePathFromEnv(t *testing.T) {
	t.Setenv("SCHEMASHIFT_SQLITE_PATH", "/data/charter.db")

	cfg, err := Parse([]byte("log:\n  level: debug\n  format: json\n"))
	require.NoError(t, err)
	assert.Equal(t, "/data/charter.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestParse_Postgres(t *testing.T) {
	for _, name := range []string{"PGHOST", "POSTGRES_HOST", "PGPORT", "POSTGRES_PORT", "PGDATABASE", "POSTGRES_DB",
		"PGUSER", "POSTGRES_USER", "PGPASSWORD", "POSTGRES_PASSWORD", "PGSSLMODE"} {
		t.Setenv(name, "")
	}
	t.Setenv("PGPASSWORD", "s3cret")
	t.Setenv("POSTGRES_PORT", "6543")

	cfg, err := Parse([]byte(`
database:
  driver: postgres
  connection:
    host: db.internal
    database: charter
    user: shift
`))
	require.NoError(t, err)

	conn := cfg.Database.Connection
	assert.Equal(t, 6543, conn.Port)
	assert.Equal(t, "s3cret", conn.Password)
	assert.Equal(t, "disable", conn.SSLMode)
	assert.Equal(t, "public", cfg.Database.Schema)
	assert.Equal(t, "host=db.internal port=6543 dbname=charter user=shift password=s3cret sslmode=disable", conn.DSN())
}

func TestParse_YAMLWinsOverEnv(t *testing.T) {
	t.Setenv("MYSQL_DSN", "env:pw@tcp(env:3306)/env")

	cfg, err := Parse([]byte("database:\n  driver: mysql\n  dsn: shift:pw@tcp(localhost:3306)/charter\n"))
	require.NoError(t, err)
	assert.Equal(t, "shift:pw@tcp(localhost:3306)/charter", cfg.Database.DSN)
}

func TestParse_Invalid(t *testing.T) {
	t.Setenv("SCHEMASHIFT_SQLITE_PATH", "")
	t.Setenv("MYSQL_DSN", "")
	t.Setenv("PGHOST", "")
	t.Setenv("POSTGRES_HOST", "")

	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"sqlite without path", "database:\n  driver: sqlite\n", "database.path is required"},
		{"mysql without dsn", "database:\n  driver: mysql\n", "database.dsn is required"},
		{"postgres without host", "database:\n  driver: postgres\n", "database.connection.host is required"},
		{"unknown driver", "database:\n  driver: oracle\n", `unsupported database.driver "oracle"`},
		{"bad yaml", "database: [", "parsing config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schemashift.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  path: x.db\nbackup:\n  dir: /var/backups\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/backups", cfg.Backup.Dir)

	_, err = Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "reading config file")
}
