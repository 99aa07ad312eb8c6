package schema_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurou927/schemashift/internal/fixture"
	"github.com/hurou927/schemashift/internal/schema"
)

func TestIntrospector_ListTables(t *testing.T) {
	db := fixture.OpenTestCharter(t)

	names, err := schema.NewIntrospector(db, schema.SQLite{}).ListTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"airports", "bookings", "flights", "operators", fixture.VersionTable, "users"}, names)
}

func TestIntrospector_GetTableSchema(t *testing.T) {
	db := fixture.OpenTestCharter(t)
	in := schema.NewIntrospector(db, schema.SQLite{})

	airports, err := in.GetTableSchema(context.Background(), "airports")
	require.NoError(t, err)
	assert.Equal(t, "airports", airports.Name)
	assert.Equal(t, []string{"id", "code", "name", "created_by", "reviewed_by"}, airports.ColumnNames())
	assert.Equal(t, []string{"id"}, airports.PKColumnNames())

	code, ok := airports.Column("code")
	require.True(t, ok)
	assert.Equal(t, schema.Column{Name: "code", Type: "VARCHAR(8)", Unique: true}, code)

	created, ok := airports.Column("created_by")
	require.True(t, ok)
	assert.True(t, created.Nullable)

	require.Len(t, airports.ForeignKeys, 2)
	for _, fk := range airports.ForeignKeys {
		assert.Equal(t, "airports", fk.ChildTable)
		assert.Equal(t, "users", fk.ParentTable)
		assert.Equal(t, []string{"id"}, fk.ParentColumns)
	}

	bookings, err := in.GetTableSchema(context.Background(), "bookings")
	require.NoError(t, err)
	status, ok := bookings.Column("status")
	require.True(t, ok)
	require.NotNil(t, status.Default)
	assert.Equal(t, "'pending'", *status.Default)
	assert.False(t, status.Nullable)
}

func TestIntrospector_NotFound(t *testing.T) {
	db := fixture.OpenTestCharter(t)
	in := schema.NewIntrospector(db, schema.SQLite{})

	_, err := in.GetTableSchema(context.Background(), "hangars")
	assert.ErrorIs(t, err, schema.ErrNotFound)

	_, err = in.GetRowCount(context.Background(), "hangars")
	assert.ErrorIs(t, err, schema.ErrNotFound)
	assert.EqualError(t, err, `table "hangars" not found`)
}

func TestIntrospector_GetRowCount(t *testing.T) {
	db := fixture.OpenTestCharter(t)
	in := schema.NewIntrospector(db, schema.SQLite{})

	for table, want := range fixture.RowCounts {
		n, err := in.GetRowCount(context.Background(), table)
		require.NoError(t, err)
		assert.Equal(t, want, n, table)
	}
}

func TestIntrospector_Snapshot(t *testing.T) {
	db := fixture.OpenTestCharter(t)
	in := schema.NewIntrospector(db, schema.SQLite{})

	snap, err := in.Snapshot(context.Background(), []string{"airports", "flights"})
	require.NoError(t, err)
	require.Len(t, snap, 2)
	assert.Equal(t, int64(5), snap["airports"].RowCount)
	assert.Equal(t, int64(3), snap["flights"].RowCount)
	assert.Len(t, snap["flights"].ForeignKeys, 3)

	all, err := in.Snapshot(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, all, 6)

	_, err = in.Snapshot(context.Background(), []string{"airports", "hangars"})
	assert.ErrorIs(t, err, schema.ErrNotFound)
}

func TestCheckForeignKeys(t *testing.T) {
	db := fixture.OpenTestCharter(t)
	ctx := context.Background()
	d := schema.SQLite{}

	require.NoError(t, d.CheckForeignKeys(ctx, db, "flights"))

	_, err := db.ExecContext(ctx, `INSERT INTO flights (id, operator_id, origin_id, destination_id, departs_at, seats)
		VALUES (9, 1, 99, 1, '2026-12-01T00:00:00Z', 4)`)
	require.NoError(t, err)

	err = d.CheckForeignKeys(ctx, db, "airports")
	assert.ErrorContains(t, err, "1 foreign key violation(s): flights rowid 9 -> airports")
	assert.NoError(t, d.CheckForeignKeys(ctx, db, "bookings"))
}

func TestSameShape(t *testing.T) {
	a := []schema.Column{{Name: "id", Type: "INTEGER", PrimaryKey: true}, {Name: "code", Type: "text"}}
	b := []schema.Column{{Name: "id", Type: "integer", PrimaryKey: true}, {Name: "code", Type: "TEXT "}}
	assert.True(t, schema.SameShape(a, b))

	b[1].Nullable = true
	assert.False(t, schema.SameShape(a, b))
	assert.False(t, schema.SameShape(a, a[:1]))

	b[1].Nullable = false
	b[1].Default = ptr("'XXX'")
	assert.False(t, schema.SameShape(a, b))
}

func TestSameDefault(t *testing.T) {
	tests := []struct {
		a, b *string
		want bool
	}{
		{nil, nil, true},
		{nil, ptr("NULL"), true},
		{ptr("'US'"), ptr("'US'"), true},
		{ptr("'US'"), ptr("'US'::character varying"), true},
		{ptr("'US'"), ptr("US"), true},
		{ptr("(0)"), ptr("0"), true},
		{ptr("'US'"), ptr("'CA'"), false},
		{ptr("'null'"), nil, false},
		{ptr("'a::b'"), ptr("'a'"), false},
		{ptr("0"), nil, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, schema.SameDefault(tt.a, tt.b), "%v vs %v", deref(tt.a), deref(tt.b))
	}
}

func TestSameForeignKeys(t *testing.T) {
	created := schema.ForeignKey{Name: "fk_1", ChildTable: "airports", ChildColumns: []string{"created_by"}, ParentTable: "users", ParentColumns: []string{"id"}}
	reviewed := schema.ForeignKey{ChildTable: "airports", ChildColumns: []string{"reviewed_by"}, ParentTable: "users", ParentColumns: []string{"id"}}
	implicit := reviewed
	implicit.ParentColumns = []string{""}

	assert.True(t, schema.SameForeignKeys(nil, nil))
	assert.True(t, schema.SameForeignKeys([]schema.ForeignKey{created, reviewed}, []schema.ForeignKey{reviewed, created}))
	assert.True(t, schema.SameForeignKeys([]schema.ForeignKey{reviewed}, []schema.ForeignKey{implicit}))
	assert.False(t, schema.SameForeignKeys([]schema.ForeignKey{created}, nil))
	assert.False(t, schema.SameForeignKeys([]schema.ForeignKey{created}, []schema.ForeignKey{reviewed}))
}

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

func TestLiterals(t *testing.T) {
	at := time.Date(2026, 11, 2, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		d    schema.Dialect
		v    any
		want string
	}{
		{"sqlite null", schema.SQLite{}, nil, "NULL"},
		{"sqlite bool", schema.SQLite{}, true, "1"},
		{"sqlite string", schema.SQLite{}, "Martha's", "'Martha''s'"},
		{"sqlite blob", schema.SQLite{}, []byte{0xca, 0xfe}, "X'cafe'"},
		{"sqlite int64", schema.SQLite{}, int64(-7), "-7"},
		{"sqlite float", schema.SQLite{}, 1.5, "1.5"},
		{"sqlite time", schema.SQLite{}, at, "'2026-11-02 09:00:00'"},
		{"postgres bool", schema.Postgres{Schema: "public"}, false, "FALSE"},
		{"postgres blob", schema.Postgres{Schema: "public"}, []byte{0x01}, `'\x01'::bytea`},
		{"mysql bool", schema.MySQL{}, true, "TRUE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.Literal(tt.v))
		})
	}
}

func TestDialectSQL(t *testing.T) {
	pg := schema.Postgres{Schema: "charter"}
	assert.Equal(t, `"charter"."air""ports"`, pg.TableIdentifier(`air"ports`))
	assert.Equal(t, `ALTER TABLE "charter"."a__shift_1" RENAME TO "a"`, pg.RenameTable("a__shift_1", "a"))
	assert.Equal(t, "CAST('US' AS varchar(2))", pg.ConstantExpr("US", schema.Column{Type: "varchar(2)"}))
	assert.Equal(t, "NULL", pg.ConstantExpr(nil, schema.Column{Type: "integer"}))

	my := schema.MySQL{}
	assert.Equal(t, "RENAME TABLE `a__shift_1` TO `a`", my.RenameTable("a__shift_1", "a"))
	assert.False(t, my.TransactionalDDL())
	assert.Equal(t, "`we``ird`", my.QuoteIdentifier("we`ird"))

	assert.Equal(t, `ALTER TABLE "a__shift_1" RENAME TO "a"`, schema.SQLite{}.RenameTable("a__shift_1", "a"))
	assert.True(t, schema.SQLite{}.TransactionalDDL())
}

func TestForDriver(t *testing.T) {
	d, err := schema.ForDriver("postgres", "")
	require.NoError(t, err)
	assert.Equal(t, schema.Postgres{Schema: "public"}, d)

	d, err = schema.ForDriver("sqlite", "")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())

	_, err = schema.ForDriver("oracle", "")
	assert.Error(t, err)
}

func ptr(s string) *string { return &s }
