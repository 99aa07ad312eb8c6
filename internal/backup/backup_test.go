package backup

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurou927/schemashift/internal/fixture"
	"github.com/hurou927/schemashift/internal/schema"
)

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, schema.SQLite{})

	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	require.NoError(t, w.WriteHeader("airports", at))
	require.NoError(t, w.WriteCreate("airports_backup", []schema.Column{
		{Name: "id", Type: "INTEGER"},
		{Name: "code", Type: "TEXT"},
	}))
	require.NoError(t, w.WriteRow("airports_backup", []string{"id", "code"}, []any{int64(1), "TEB"}))
	require.NoError(t, w.WriteRow("airports_backup", []string{"id", "code"}, []any{int64(2), nil}))
	require.NoError(t, w.WriteFooter())

	assert.Equal(t, `-- backup of airports taken 2026-10-19T12:00:00Z
BEGIN;

CREATE TABLE "airports_backup" ("id" INTEGER, "code" TEXT);
INSERT INTO "airports_backup" ("id", "code") VALUES (1, 'TEB');
INSERT INTO "airports_backup" ("id", "code") VALUES (2, NULL);

COMMIT;
`, buf.String())
}

func TestDump(t *testing.T) {
	db := fixture.OpenTestCharter(t)
	ctx := context.Background()
	d := schema.SQLite{}

	users, err := schema.NewIntrospector(db, d).GetTableSchema(ctx, "users")
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := Dump(ctx, db, d, users, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.Equal(t, 4, strings.Count(buf.String(), `INSERT INTO "users_backup"`))
	assert.Contains(t, buf.String(), `VALUES (1, 'admin@charter.test', 'Ada Admin', 'admin');`)
}
