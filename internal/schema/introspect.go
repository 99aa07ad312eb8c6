package schema

import (
	"context"
	"fmt"
	"slices"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"
)

// snapshotConcurrency bounds parallel catalog reads in Snapshot.
const snapshotConcurrency = 4

// Introspector reads the live schema. It never modifies the database.
type Introspector struct {
	q       sqlx.QueryerContext
	dialect Dialect
}

// NewIntrospector returns an Introspector reading through q.
func NewIntrospector(q sqlx.QueryerContext, d Dialect) *Introspector {
	return &Introspector{q: q, dialect: d}
}

// Dialect returns the dialect the introspector reads with.
func (i *Introspector) Dialect() Dialect {
	return i.dialect
}

// ListTables returns user table names in alphabetical order.
func (i *Introspector) ListTables(ctx context.Context) ([]string, error) {
	names, err := i.dialect.ListTables(ctx, i.q)
	if err != nil {
		return nil, err
	}
	slices.Sort(names)
	return names, nil
}

// GetTableSchema returns the columns and FKs of name, or a *NotFoundError.
func (i *Introspector) GetTableSchema(ctx context.Context, name string) (*Table, error) {
	return i.dialect.DescribeTable(ctx, i.q, name)
}

// GetRowCount returns the number of rows in name, or a *NotFoundError.
func (i *Introspector) GetRowCount(ctx context.Context, name string) (int64, error) {
	tables, err := i.ListTables(ctx)
	if err != nil {
		return 0, err
	}
	if _, found := slices.BinarySearch(tables, name); !found {
		return 0, &NotFoundError{Table: name}
	}

	var n int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", i.dialect.TableIdentifier(name))
	if err := sqlx.GetContext(ctx, i.q, &n, query); err != nil {
		return 0, fmt.Errorf("counting rows of %s: %w", name, err)
	}
	return n, nil
}

// TableInfo is a table with its row count, as reported by Snapshot.
type TableInfo struct {
	*Table `yaml:",inline"`
	RowCount int64 `json:"row_count" yaml:"row_count"`
}

// Snapshot describes and counts the named tables, or every table when names
// is empty. Results are keyed by table name.
func (i *Introspector) Snapshot(ctx context.Context, names []string) (map[string]*TableInfo, error) {
	if len(names) == 0 {
		all, err := i.ListTables(ctx)
		if err != nil {
			return nil, err
		}
		names = all
	}

	infos := make([]*TableInfo, len(names))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(snapshotConcurrency)
	for idx, name := range names {
		g.Go(func() error {
			tbl, err := i.GetTableSchema(ctx, name)
			if err != nil {
				return fmt.Errorf("describing %s: %w", name, err)
			}
			n, err := i.GetRowCount(ctx, name)
			if err != nil {
				return err
			}
			infos[idx] = &TableInfo{Table: tbl, RowCount: n}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]*TableInfo, len(infos))
	for _, info := range infos {
		out[info.Name] = info
	}
	return out, nil
}
