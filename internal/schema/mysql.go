package schema

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// MySQL reads information_schema for the current database. DDL commits
// implicitly, so a failed rename after the drop leaves a partial swap.
type MySQL struct{}

func (MySQL) Name() string                       { return "mysql" }
func (MySQL) QuoteIdentifier(name string) string { return quoteWith("`", name) }
func (m MySQL) TableIdentifier(name string) string {
	return m.QuoteIdentifier(name)
}
func (MySQL) TransactionalDDL() bool { return false }

func (MySQL) Literal(v any) string {
	return literal(v, "TRUE", "FALSE", hexBlob)
}

func (m MySQL) ConstantExpr(v any, _ Column) string {
	return m.Literal(v)
}

func (m MySQL) RenameTable(from, to string) string {
	return fmt.Sprintf("RENAME TABLE %s TO %s", m.QuoteIdentifier(from), m.QuoteIdentifier(to))
}

func (MySQL) ListTables(ctx context.Context, q sqlx.QueryerContext) ([]string, error) {
	var names []string
	err := sqlx.SelectContext(ctx, q, &names, `
		SELECT table_name AS table_name
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE'
		AND table_schema = DATABASE()
		ORDER BY table_name
	`)
	if err != nil {
		return nil, fmt.Errorf("querying tables: %w", err)
	}
	return names, nil
}

type mysqlColumn struct {
	Name       string         `db:"column_name"`
	ColumnType string         `db:"column_type"`
	IsNullable string         `db:"is_nullable"`
	Default    sql.NullString `db:"column_default"`
	Key        string         `db:"column_key"`
}

func (MySQL) DescribeTable(ctx context.Context, q sqlx.QueryerContext, name string) (*Table, error) {
	var cols []mysqlColumn
	err := sqlx.SelectContext(ctx, q, &cols, `
		SELECT
			column_name AS column_name,
			column_type AS column_type,
			is_nullable AS is_nullable,
			column_default AS column_default,
			column_key AS column_key
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY ordinal_position
	`, name)
	if err != nil {
		return nil, fmt.Errorf("querying columns: %w", err)
	}
	if len(cols) == 0 {
		return nil, &NotFoundError{Table: name}
	}

	tbl := &Table{Name: name}
	for _, c := range cols {
		col := Column{
			Name:       c.Name,
			Type:       c.ColumnType,
			Nullable:   c.IsNullable == "YES",
			PrimaryKey: c.Key == "PRI",
			Unique:     c.Key == "UNI",
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
			constraint_name AS fk_name,
			column_name AS child_column,
			referenced_table_name AS parent_table,
			referenced_column_name AS parent_column
		FROM information_schema.key_column_usage
		WHERE table_schema = DATABASE()
		AND table_name = ?
		AND referenced_table_name IS NOT NULL
		ORDER BY constraint_name, ordinal_position
	`, name)
	if err != nil {
		return nil, fmt.Errorf("querying foreign keys: %w", err)
	}
	tbl.ForeignKeys = groupForeignKeys(name, fks)

	return tbl, nil
}

// CheckForeignKeys is a no-op: InnoDB enforces constraints per statement.
func (MySQL) CheckForeignKeys(context.Context, sqlx.QueryerContext, string) error {
	return nil
}
