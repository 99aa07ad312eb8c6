// Package ddl builds the statements of a table rebuild for a given dialect.
package ddl

import (
	"fmt"
	"strings"

	"github.com/hurou927/schemashift/internal/schema"
)

// Assignment is one target column of INSERT ... SELECT and the SQL expression feeding it.
type Assignment struct {
	Column string
	Expr   string
}

// CreateTable returns CREATE TABLE <name> (<columns>, PRIMARY KEY (...), FOREIGN KEY ...).
// The primary key is always emitted as a table constraint so composite keys
// and single INTEGER keys (the SQLite rowid alias) share one form.
func CreateTable(d schema.Dialect, name string, columns []schema.Column, fks []schema.ForeignKey) (string, error) {
	if err := ValidateIdentifier(name); err != nil {
		return "", fmt.Errorf("invalid table name: %w", err)
	}
	if len(columns) == 0 {
		return "", fmt.Errorf("at least one column is required")
	}

	var defs []string
	var pk []string
	for _, c := range columns {
		def, err := columnDef(d, c)
		if err != nil {
			return "", err
		}
		defs = append(defs, def)
		if c.PrimaryKey {
			pk = append(pk, d.QuoteIdentifier(c.Name))
		}
	}
	if len(pk) > 0 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pk, ", ")))
	}
	for _, fk := range fks {
		clause, err := foreignKeyClause(d, fk)
		if err != nil {
			return "", err
		}
		defs = append(defs, clause)
	}

	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", d.TableIdentifier(name), strings.Join(defs, ",\n  ")), nil
}

func columnDef(d schema.Dialect, c schema.Column) (string, error) {
	if err := ValidateIdentifier(c.Name); err != nil {
		return "", fmt.Errorf("invalid column name %q: %w", c.Name, err)
	}
	if err := ValidateColumnType(c.Type); err != nil {
		return "", fmt.Errorf("invalid type for column %q: %w", c.Name, err)
	}

	def := d.QuoteIdentifier(c.Name) + " " + c.Type
	if !c.Nullable {
		def += " NOT NULL"
	}
	if c.Default != nil {
		if err := ValidateDefault(*c.Default); err != nil {
			return "", fmt.Errorf("invalid default for column %q: %w", c.Name, err)
		}
		def += " DEFAULT " + *c.Default
	}
	if c.Unique && !c.PrimaryKey {
		def += " UNIQUE"
	}
	return def, nil
}

func foreignKeyClause(d schema.Dialect, fk schema.ForeignKey) (string, error) {
	if len(fk.ChildColumns) == 0 || len(fk.ChildColumns) != len(fk.ParentColumns) {
		return "", fmt.Errorf("foreign key to %s: column lists do not match", fk.ParentTable)
	}
	if err := ValidateIdentifier(fk.ParentTable); err != nil {
		return "", fmt.Errorf("invalid referenced table: %w", err)
	}
	child := make([]string, len(fk.ChildColumns))
	parent := make([]string, len(fk.ParentColumns))
	for i := range fk.ChildColumns {
		child[i] = d.QuoteIdentifier(fk.ChildColumns[i])
		parent[i] = d.QuoteIdentifier(fk.ParentColumns[i])
	}
	return fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
		strings.Join(child, ", "), d.TableIdentifier(fk.ParentTable), strings.Join(parent, ", ")), nil
}

// DropTable returns DROP TABLE <name>.
func DropTable(d schema.Dialect, name string) string {
	return "DROP TABLE " + d.TableIdentifier(name)
}

// DropTableIfExists returns DROP TABLE IF EXISTS <name>, used for shadow cleanup.
func DropTableIfExists(d schema.Dialect, name string) string {
	return "DROP TABLE IF EXISTS " + d.TableIdentifier(name)
}

// InsertSelect returns INSERT INTO <target> (cols) SELECT exprs FROM <source>.
func InsertSelect(d schema.Dialect, target, source string, assignments []Assignment) (string, error) {
	if len(assignments) == 0 {
		return "", fmt.Errorf("at least one assigned column is required")
	}
	cols := make([]string, len(assignments))
	exprs := make([]string, len(assignments))
	for i, a := range assignments {
		cols[i] = d.QuoteIdentifier(a.Column)
		exprs[i] = a.Expr
	}
	return fmt.Sprintf("INSERT INTO %s (%s)\nSELECT %s\nFROM %s",
		d.TableIdentifier(target), strings.Join(cols, ", "),
		strings.Join(exprs, ", "), d.TableIdentifier(source)), nil
}

// SelectAll returns SELECT <cols> FROM <table>, used for backups.
func SelectAll(d schema.Dialect, table string, columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.QuoteIdentifier(c)
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoted, ", "), d.TableIdentifier(table))
}
