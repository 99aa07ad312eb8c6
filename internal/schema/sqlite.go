package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// SQLite reads the catalog through sqlite_master and the table-valued pragmas.
type SQLite struct{}

func (SQLite) Name() string                       { return "sqlite" }
func (SQLite) QuoteIdentifier(name string) string { return quoteWith(`"`, name) }
func (s SQLite) TableIdentifier(name string) string {
	return s.QuoteIdentifier(name)
}
func (SQLite) TransactionalDDL() bool { return true }

func (SQLite) Literal(v any) string {
	return literal(v, "1", "0", hexBlob)
}

// ConstantExpr relies on column affinity; no cast is needed.
func (s SQLite) ConstantExpr(v any, _ Column) string {
	return s.Literal(v)
}

func (s SQLite) RenameTable(from, to string) string {
	return fmt.Sprintf("ALTER TABLE %s RENAME TO %s", s.QuoteIdentifier(from), s.QuoteIdentifier(to))
}

func (SQLite) ListTables(ctx context.Context, q sqlx.QueryerContext) ([]string, error) {
	var names []string
	err := sqlx.SelectContext(ctx, q, &names, `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table'
		AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("querying tables: %w", err)
	}
	return names, nil
}

type sqliteColumn struct {
	CID     int            `db:"cid"`
	Name    string         `db:"name"`
	Type    string         `db:"type"`
	NotNull int            `db:"notnull"`
	Default sql.NullString `db:"dflt_value"`
	PK      int            `db:"pk"`
}

type sqliteForeignKey struct {
	ID     int            `db:"id"`
	Seq    int            `db:"seq"`
	Parent string         `db:"table"`
	From   string         `db:"from"`
	To     sql.NullString `db:"to"`
}

func (s SQLite) DescribeTable(ctx context.Context, q sqlx.QueryerContext, name string) (*Table, error) {
	var exists bool
	err := sqlx.GetContext(ctx, q, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM sqlite_master
			WHERE type = 'table' AND name = ?
		)`, name)
	if err != nil {
		return nil, fmt.Errorf("checking table existence: %w", err)
	}
	if !exists {
		return nil, &NotFoundError{Table: name}
	}

	var cols []sqliteColumn
	err = sqlx.SelectContext(ctx, q, &cols, `
		SELECT cid, name, type, "notnull", dflt_value, pk
		FROM pragma_table_info(?)
		ORDER BY cid`, name)
	if err != nil {
		return nil, fmt.Errorf("querying columns: %w", err)
	}

	unique, err := s.uniqueColumns(ctx, q, name)
	if err != nil {
		return nil, err
	}

	tbl := &Table{Name: name}
	for _, c := range cols {
		col := Column{
			Name:       c.Name,
			Type:       c.Type,
			Nullable:   c.NotNull == 0,
			PrimaryKey: c.PK > 0,
			Unique:     unique[c.Name],
		}
		if c.Default.Valid {
			d := c.Default.String
			col.Default = &d
		}
		tbl.Columns = append(tbl.Columns, col)
	}

	var fks []sqliteForeignKey
	err = sqlx.SelectContext(ctx, q, &fks, `
		SELECT id, seq, "table", "from", "to"
		FROM pragma_foreign_key_list(?)
		ORDER BY id, seq`, name)
	if err != nil {
		return nil, fmt.Errorf("querying foreign keys: %w", err)
	}
	byID := make(map[int]int)
	for _, f := range fks {
		idx, ok := byID[f.ID]
		if !ok {
			idx = len(tbl.ForeignKeys)
			byID[f.ID] = idx
			tbl.ForeignKeys = append(tbl.ForeignKeys, ForeignKey{
				Name:        fmt.Sprintf("fk_%s_%d", name, f.ID),
				ChildTable:  name,
				ParentTable: f.Parent,
			})
		}
		fk := &tbl.ForeignKeys[idx]
		fk.ChildColumns = append(fk.ChildColumns, f.From)
		fk.ParentColumns = append(fk.ParentColumns, f.To.String)
	}

	return tbl, nil
}

// uniqueColumns returns columns covered by a single-column UNIQUE constraint.
// Multi-column unique constraints are not modelled on Column.
func (SQLite) uniqueColumns(ctx context.Context, q sqlx.QueryerContext, table string) (map[string]bool, error) {
	var indexes []string
	err := sqlx.SelectContext(ctx, q, &indexes, `
		SELECT name
		FROM pragma_index_list(?)
		WHERE "unique" = 1 AND origin = 'u'`, table)
	if err != nil {
		return nil, fmt.Errorf("querying indexes: %w", err)
	}

	unique := make(map[string]bool)
	for _, idx := range indexes {
		var cols []string
		err := sqlx.SelectContext(ctx, q, &cols, `
			SELECT name
			FROM pragma_index_info(?)
			ORDER BY seqno`, idx)
		if err != nil {
			return nil, fmt.Errorf("querying index %s: %w", idx, err)
		}
		if len(cols) == 1 {
			unique[cols[0]] = true
		}
	}
	return unique, nil
}

type sqliteViolation struct {
	Table  string        `db:"table"`
	RowID  sql.NullInt64 `db:"rowid"`
	Parent string        `db:"parent"`
	FKID   int           `db:"fkid"`
}

// CheckForeignKeys runs PRAGMA foreign_key_check and keeps violations where
// table is either the referencing or the referenced side.
func (SQLite) CheckForeignKeys(ctx context.Context, q sqlx.QueryerContext, table string) error {
	var rows []sqliteViolation
	if err := sqlx.SelectContext(ctx, q, &rows, `PRAGMA foreign_key_check`); err != nil {
		return fmt.Errorf("checking foreign keys: %w", err)
	}

	var found []string
	for _, v := range rows {
		if v.Table != table && v.Parent != table {
			continue
		}
		found = append(found, fmt.Sprintf("%s rowid %d -> %s", v.Table, v.RowID.Int64, v.Parent))
	}
	if len(found) > 0 {
		return fmt.Errorf("%d foreign key violation(s): %s", len(found), strings.Join(found, "; "))
	}
	return nil
}
