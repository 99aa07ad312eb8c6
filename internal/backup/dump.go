package backup

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hurou927/schemashift/internal/ddl"
	"github.com/hurou927/schemashift/internal/schema"
)

// RestoreName is the table a backup of source restores into, so restoring
// never collides with the rebuilt table.
func RestoreName(source string) string {
	return source + "_backup"
}

// Dump streams every row of table into w as a SQL script and returns the row count.
func Dump(ctx context.Context, q sqlx.QueryerContext, d schema.Dialect, table *schema.Table, w io.Writer) (int64, error) {
	bw := NewWriter(w, d)
	restoreAs := RestoreName(table.Name)
	columns := table.ColumnNames()

	if err := bw.WriteHeader(table.Name, time.Now()); err != nil {
		return 0, err
	}
	if err := bw.WriteCreate(restoreAs, table.Columns); err != nil {
		return 0, err
	}

	rows, err := q.QueryxContext(ctx, ddl.SelectAll(d, table.Name, columns))
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", table.Name, err)
	}
	defer rows.Close()

	var n int64
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return n, fmt.Errorf("scanning %s: %w", table.Name, err)
		}
		if err := bw.WriteRow(restoreAs, columns, values); err != nil {
			return n, err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, err
	}

	return n, bw.WriteFooter()
}
