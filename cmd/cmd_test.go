package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurou927/schemashift/internal/evolve"
)

func writeConfig(t *testing.T) (cfgFile, dbFile string) {
	t.Helper()
	return writeConfigWith(t, "")
}

func writeConfigWith(t *testing.T, extra string) (cfgFile, dbFile string) {
	t.Helper()
	dir := t.TempDir()
	dbFile = filepath.Join(dir, "charter.sqlite")
	cfgFile = filepath.Join(dir, "schemashift.yaml")
	doc := fmt.Sprintf("database:\n  driver: sqlite\n  path: %s\nlog:\n  level: warn\n%s", dbFile, extra)
	require.NoError(t, os.WriteFile(cfgFile, []byte(doc), 0o600))
	return cfgFile, dbFile
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestMigrateWorkflow(t *testing.T) {
	cfgFile, _ := writeConfig(t)
	backupFile := filepath.Join(t.TempDir(), "airports.sql")

	out, err := run(t, "--config", cfgFile, "seed")
	require.NoError(t, err)
	assert.Equal(t, "charter fixtures at version 2\n", out)

	out, err = run(t, "--config", cfgFile, "migrate", "airports", "testdata/drop_airport_audit.yaml",
		"--dry-run", "--format", "text")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "dry run airports: success\n"))
	assert.Contains(t, out, `DROP TABLE "airports";`)

	out, err = run(t, "--config", cfgFile, "migrate", "airports", "testdata/drop_airport_audit.yaml",
		"--dry-run=false", "--backup", backupFile, "--format", "text")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "migrate airports: success\n  rows: 5 -> 5\n"))

	script, err := os.ReadFile(backupFile)
	require.NoError(t, err)
	assert.Equal(t, 5, strings.Count(string(script), `INSERT INTO "airports_backup"`))

	// re-running with the same backup path fails validation and keeps the dump
	out, err = run(t, "--config", cfgFile, "migrate", "airports", "testdata/drop_airport_audit.yaml",
		"--backup", backupFile, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, evolve.ExitAborted, evolve.ExitCode(err))
	assert.Contains(t, out, `"error_kind": "ValidationError"`)

	kept, err := os.ReadFile(backupFile)
	require.NoError(t, err)
	assert.Equal(t, string(script), string(kept))
	assert.Equal(t, 5, strings.Count(string(kept), `INSERT INTO "airports_backup"`))

	out, err = run(t, "--config", cfgFile, "inspect", "airports", "--format", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "airports (3 cols, PK: id, 5 rows)")

	out, err = run(t, "--config", cfgFile, "repair", "airports")
	require.NoError(t, err)
	assert.Equal(t, "airports: nothing to repair\n", out)
}

func TestMigrate_RefusesToOverwriteBackup(t *testing.T) {
	cfgFile, _ := writeConfig(t)
	backupFile := filepath.Join(t.TempDir(), "airports.sql")
	require.NoError(t, os.WriteFile(backupFile, []byte("-- earlier dump\n"), 0o600))

	_, err := run(t, "--config", cfgFile, "seed")
	require.NoError(t, err)

	out, err := run(t, "--config", cfgFile, "migrate", "airports", "testdata/drop_airport_audit.yaml",
		"--dry-run=false", "--backup", backupFile, "--format", "text")
	require.Error(t, err)
	assert.Equal(t, evolve.ExitAborted, evolve.ExitCode(err))
	assert.Contains(t, out, "migrate airports: aborted at swap")

	kept, err := os.ReadFile(backupFile)
	require.NoError(t, err)
	assert.Equal(t, "-- earlier dump\n", string(kept))

	out, err = run(t, "--config", cfgFile, "inspect", "airports", "--format", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "airports (5 cols, PK: id, 5 rows)")
}

func TestMigrate_BackupDirOnlyGetsSuccessfulDumps(t *testing.T) {
	backupDir := t.TempDir()
	cfgFile, _ := writeConfigWith(t, fmt.Sprintf("backup:\n  dir: %s\n", backupDir))

	_, err := run(t, "--config", cfgFile, "seed")
	require.NoError(t, err)

	for range 2 {
		_, _ = run(t, "--config", cfgFile, "migrate", "airports", "testdata/drop_airport_audit.yaml",
			"--dry-run=false", "--backup", "", "--format", "text")
	}

	entries, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	script, err := os.ReadFile(filepath.Join(backupDir, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, 5, strings.Count(string(script), `INSERT INTO "airports_backup"`))
}

func TestMigrate_TableMustMatchPlan(t *testing.T) {
	cfgFile, _ := writeConfig(t)

	_, err := run(t, "--config", cfgFile, "migrate", "flights", "testdata/drop_airport_audit.yaml")
	assert.ErrorContains(t, err, `rebuilds "airports", not "flights"`)
}

func TestConfigRequired(t *testing.T) {
	cfgPath = ""
	_, err := run(t, "inspect", "--config", "")
	assert.ErrorContains(t, err, "--config is required")
}

func TestSetupLogging_RejectsUnknownFormat(t *testing.T) {
	cfgFile, _ := writeConfig(t)

	_, err := run(t, "--config", cfgFile, "--log-format", "xml", "inspect")
	assert.ErrorContains(t, err, "unknown log format: xml")
	logFormat = ""
}
