// Package backup writes a table's rows as a replayable SQL script.
package backup

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hurou927/schemashift/internal/schema"
)

// Writer writes INSERT-format SQL output.
type Writer struct {
	w io.Writer
	d schema.Dialect
}

// NewWriter creates a new SQL script writer for dialect d.
func NewWriter(w io.Writer, d schema.Dialect) *Writer {
	return &Writer{w: w, d: d}
}

// WriteHeader writes a provenance comment and BEGIN.
func (bw *Writer) WriteHeader(source string, at time.Time) error {
	_, err := fmt.Fprintf(bw.w, "-- backup of %s taken %s\n", source, at.UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(bw.w, "BEGIN;")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(bw.w)
	return err
}

// WriteCreate writes a CREATE TABLE for restoreAs with the source's column
// names and declared types. Constraints are not carried over.
func (bw *Writer) WriteCreate(restoreAs string, columns []schema.Column) error {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = strings.TrimSpace(bw.d.QuoteIdentifier(c.Name) + " " + c.Type)
	}
	_, err := fmt.Fprintf(bw.w, "CREATE TABLE %s (%s);\n", bw.d.TableIdentifier(restoreAs), strings.Join(defs, ", "))
	return err
}

// WriteRow writes one INSERT statement.
func (bw *Writer) WriteRow(restoreAs string, columns []string, row []any) error {
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = bw.d.QuoteIdentifier(c)
	}
	vals := make([]string, len(row))
	for i, v := range row {
		vals[i] = bw.d.Literal(v)
	}
	_, err := fmt.Fprintf(bw.w, "INSERT INTO %s (%s) VALUES (%s);\n",
		bw.d.TableIdentifier(restoreAs), strings.Join(cols, ", "), strings.Join(vals, ", "))
	return err
}

// WriteFooter writes COMMIT.
func (bw *Writer) WriteFooter() error {
	_, err := fmt.Fprintln(bw.w)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(bw.w, "COMMIT;")
	return err
}
