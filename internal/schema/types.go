package schema

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Column represents a column definition, as read from the catalog or declared in a plan.
type Column struct {
	Name       string  `json:"name" yaml:"name"`
	Type       string  `json:"type" yaml:"type"` // declared type (e.g. "INTEGER", "text", "varchar(64)")
	Nullable   bool    `json:"nullable" yaml:"nullable"`
	Default    *string `json:"default,omitempty" yaml:"default,omitempty"` // SQL expression text
	PrimaryKey bool    `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`
	Unique     bool    `json:"unique,omitempty" yaml:"unique,omitempty"`
}

// HasDefault reports whether the column declares a default value.
func (c Column) HasDefault() bool {
	return c.Default != nil
}

// ForeignKey represents an outgoing foreign key constraint.
type ForeignKey struct {
	Name          string   `json:"name,omitempty" yaml:"name,omitempty"`
	ChildTable    string   `json:"child_table" yaml:"child_table"`
	ChildColumns  []string `json:"child_columns" yaml:"child_columns"`
	ParentTable   string   `json:"parent_table" yaml:"parent_table"`
	ParentColumns []string `json:"parent_columns" yaml:"parent_columns"`
}

// IsSelfRef reports whether the constraint points back at its own table.
func (fk ForeignKey) IsSelfRef() bool {
	return fk.ChildTable == fk.ParentTable
}

// Table represents a database table with its columns and FKs.
type Table struct {
	Name        string       `json:"name" yaml:"name"`
	Columns     []Column     `json:"columns" yaml:"columns"`
	ForeignKeys []ForeignKey `json:"foreign_keys,omitempty" yaml:"foreign_keys,omitempty"`
}

// ColumnNames returns all column names in ordinal order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// PKColumnNames returns the primary key column names in ordinal order, or nil if no PK.
func (t *Table) PKColumnNames() []string {
	var names []string
	for _, c := range t.Columns {
		if c.PrimaryKey {
			names = append(names, c.Name)
		}
	}
	return names
}

// SameShape reports whether both column lists declare the same columns in the
// same order with the same type, nullability, key flags and default.
// Defaults are compared with SameDefault.
func SameShape(a, b []Column) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.Name != y.Name ||
			!strings.EqualFold(strings.TrimSpace(x.Type), strings.TrimSpace(y.Type)) ||
			x.Nullable != y.Nullable ||
			x.PrimaryKey != y.PrimaryKey ||
			x.Unique != y.Unique ||
			!SameDefault(x.Default, y.Default) {
			return false
		}
	}
	return true
}

// SameDefault compares two default expressions after removing how engines
// re-render them: outer parentheses, a trailing ::type cast, one pair of
// quotes, and an explicit NULL, which equals no default.
func SameDefault(a, b *string) bool {
	return normalizeDefault(a) == normalizeDefault(b)
}

func normalizeDefault(d *string) string {
	if d == nil {
		return ""
	}
	s := strings.TrimSpace(*d)
	for len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if i := strings.LastIndex(s, "::"); i > 0 && !strings.Contains(s[i:], "'") {
		s = strings.TrimSpace(s[:i])
	}
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return "'" + s[1:len(s)-1]
	}
	if strings.EqualFold(s, "null") {
		return ""
	}
	return "'" + s
}

// SameForeignKeys reports whether a and b hold the same constraints, ignoring
// constraint names and order. An empty parent column matches any column,
// since SQLite may leave the referenced column implicit.
func SameForeignKeys(a, b []ForeignKey) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
	for _, x := range a {
		found := false
		for j, y := range b {
			if !used[j] && sameForeignKey(x, y) {
				used[j], found = true, true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func sameForeignKey(x, y ForeignKey) bool {
	if x.ParentTable != y.ParentTable ||
		!slices.Equal(x.ChildColumns, y.ChildColumns) ||
		len(x.ParentColumns) != len(y.ParentColumns) {
		return false
	}
	for i := range x.ParentColumns {
		px, py := x.ParentColumns[i], y.ParentColumns[i]
		if px != "" && py != "" && px != py {
			return false
		}
	}
	return true
}

// ErrNotFound is returned when a referenced table does not exist.
var ErrNotFound = errors.New("table not found")

// NotFoundError names the missing table. It matches ErrNotFound with errors.Is.
type NotFoundError struct {
	Table string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("table %q not found", e.Table)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
