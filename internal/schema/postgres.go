package schema

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Postgres reads pg_catalog for one schema. DDL is transactional, so the swap
// runs in a single transaction and FK checks happen at statement time.
type Postgres struct {
	Schema string
}

func (Postgres) Name() string                       { return "postgres" }
func (Postgres) QuoteIdentifier(name string) string { return quoteWith(`"`, name) }
func (p Postgres) TableIdentifier(name string) string {
	return p.QuoteIdentifier(p.Schema) + "." + p.QuoteIdentifier(name)
}
func (Postgres) TransactionalDDL() bool { return true }

func (Postgres) Literal(v any) string {
	return literal(v, "TRUE", "FALSE", func(b []byte) string {
		return fmt.Sprintf(`'\x%x'::bytea`, b)
	})
}

// ConstantExpr casts the literal to the target type; an untyped literal in
// INSERT ... SELECT resolves to text and would not assign to non-text columns.
func (p Postgres) ConstantExpr(v any, col Column) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("CAST(%s AS %s)", p.Literal(v), col.Type)
}

func (p Postgres) RenameTable(from, to string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME TO %s", p.TableIdentifier(from), p.QuoteIdentifier(to))
}

func (p Postgres) ListTables(ctx context.Context, q sqlx.QueryerContext) ([]string, error) {
	var names []string
	err := sqlx.SelectContext(ctx, q, &names, `
		SELECT c.relname
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind = 'r'
			AND n.nspname = $1
		ORDER BY c.relname
	`, p.Schema)
	if err != nil {
		return nil, fmt.Errorf("querying tables: %w", err)
	}
	return names, nil
}

type pgColumn struct {
	Name     string         `db:"column_name"`
	DataType string         `db:"data_type"`
	Nullable bool           `db:"is_nullable"`
	Default  sql.NullString `db:"column_default"`
}

type pgKeyColumn struct {
	Kind    string `db:"kind"`
	NumCols int    `db:"num_cols"`
	Column  string `db:"column_name"`
}

type fkRow struct {
	Name         string `db:"fk_name"`
	ChildColumn  string `db:"child_column"`
	ParentTable  string `db:"parent_table"`
	ParentColumn string `db:"parent_column"`
}

func (p Postgres) DescribeTable(ctx context.Context, q sqlx.QueryerContext, name string) (*Table, error) {
	var cols []pgColumn
	err := sqlx.SelectContext(ctx, q, &cols, `
		SELECT
			a.attname AS column_name,
			format_type(a.atttypid, a.atttypmod) AS data_type,
			NOT a.attnotnull AS is_nullable,
			pg_get_expr(d.adbin, d.adrelid) AS column_default
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_attribute a ON a.attrelid = c.oid
		LEFT JOIN pg_attrdef d ON d.adrelid = c.oid AND d.adnum = a.attnum
		WHERE c.relkind = 'r'
			AND a.attnum > 0
			AND NOT a.attisdropped
			AND n.nspname = $1
			AND c.relname = $2
		ORDER BY a.attnum
	`, p.Schema, name)
	if err != nil {
		return nil, fmt.Errorf("querying columns: %w", err)
	}
	if len(cols) == 0 {
		return nil, &NotFoundError{Table: name}
	}

	var keys []pgKeyColumn
	err = sqlx.SelectContext(ctx, q, &keys, `
		SELECT
			con.contype::text AS kind,
			cardinality(con.conkey) AS num_cols,
			a.attname AS column_name
		FROM pg_constraint con
		JOIN pg_class c ON c.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		CROSS JOIN LATERAL unnest(con.conkey) AS u(attnum)
		JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = u.attnum
		WHERE con.contype IN ('p', 'u')
			AND n.nspname = $1
			AND c.relname = $2
	`, p.Schema, name)
	if err != nil {
		return nil, fmt.Errorf("querying key constraints: %w", err)
	}
	pk := make(map[string]bool)
	unique := make(map[string]bool)
	for _, k := range keys {
		switch {
		case k.Kind == "p":
			pk[k.Column] = true
		case k.Kind == "u" && k.NumCols == 1:
			unique[k.Column] = true
		}
	}

	tbl := &Table{Name: name}
	for _, c := range cols {
		col := Column{
			Name:       c.Name,
			Type:       c.DataType,
			Nullable:   c.Nullable,
			PrimaryKey: pk[c.Name],
			Unique:     unique[c.Name],
		}
		if c.Default.Valid {
			d := c.Default.String
			col.Default = &d
		}
		tbl.Columns = append(tbl.Columns, col)
	}

	var fks []fkRow
	err = sqlx.SelectContext(ctx, q, &fks, `
		SELECT
			con.conname AS fk_name,
			ca.attname AS child_column,
			pc.relname AS parent_table,
			pa.attname AS parent_column
		FROM pg_constraint con
		JOIN pg_class cc ON cc.oid = con.conrelid
		JOIN pg_namespace cn ON cn.oid = cc.relnamespace
		JOIN pg_class pc ON pc.oid = con.confrelid
		CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS u(child_attnum, parent_attnum, ord)
		JOIN pg_attribute ca ON ca.attrelid = cc.oid AND ca.attnum = u.child_attnum
		JOIN pg_attribute pa ON pa.attrelid = pc.oid AND pa.attnum = u.parent_attnum
		WHERE con.contype = 'f'
			AND cn.nspname = $1
			AND cc.relname = $2
		ORDER BY con.conname, u.ord
	`, p.Schema, name)
	if err != nil {
		return nil, fmt.Errorf("querying foreign keys: %w", err)
	}
	tbl.ForeignKeys = groupForeignKeys(name, fks)

	return tbl, nil
}

// groupForeignKeys folds per-column rows into constraints, keeping query order.
func groupForeignKeys(child string, rows []fkRow) []ForeignKey {
	var out []ForeignKey
	index := make(map[string]int)
	for _, r := range rows {
		i, ok := index[r.Name]
		if !ok {
			i = len(out)
			index[r.Name] = i
			out = append(out, ForeignKey{
				Name:        r.Name,
				ChildTable:  child,
				ParentTable: r.ParentTable,
			})
		}
		out[i].ChildColumns = append(out[i].ChildColumns, r.ChildColumn)
		out[i].ParentColumns = append(out[i].ParentColumns, r.ParentColumn)
	}
	return out
}

// CheckForeignKeys is a no-op: PostgreSQL refuses the DROP itself while
// other tables still reference the source.
func (Postgres) CheckForeignKeys(context.Context, sqlx.QueryerContext, string) error {
	return nil
}
