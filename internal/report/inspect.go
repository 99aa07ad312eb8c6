package report

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/hurou927/schemashift/internal/graph"
	"github.com/hurou927/schemashift/internal/schema"
)

// Inspection is a point-in-time view of some tables and the FK graph between them.
type Inspection struct {
	Tables []*schema.TableInfo `json:"tables" yaml:"tables"`
	Order  []string            `json:"order" yaml:"order"`
	Cycles []string            `json:"cycles,omitempty" yaml:"cycles,omitempty"`
}

// NewInspection orders a snapshot and builds its FK graph.
func NewInspection(snapshot map[string]*schema.TableInfo) (*Inspection, *graph.Graph) {
	tables := make(map[string]*schema.Table, len(snapshot))
	names := make([]string, 0, len(snapshot))
	for name, info := range snapshot {
		tables[name] = info.Table
		names = append(names, name)
	}
	slices.Sort(names)

	g := graph.Build(tables, nil)
	order := graph.LoadOrderAll(g)

	in := &Inspection{Order: order.Order, Cycles: order.Cyclic}
	for _, name := range names {
		in.Tables = append(in.Tables, snapshot[name])
	}
	return in, g
}

// WriteInspection renders in as text, json, yaml or mermaid.
func WriteInspection(w io.Writer, in *Inspection, g *graph.Graph, format string) error {
	switch format {
	case FormatText, "":
		rows := make(map[string]int64, len(in.Tables))
		for _, t := range in.Tables {
			rows[t.Name] = t.RowCount
		}
		if err := graph.WriteText(w, g, rows); err != nil {
			return err
		}
		return writeColumns(w, in)
	case FormatMermaid:
		return graph.WriteMermaid(w, g)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(in)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(in); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format: %s (supported: text, json, yaml, mermaid)", format)
	}
}

func writeColumns(w io.Writer, in *Inspection) error {
	for _, t := range in.Tables {
		if _, err := fmt.Fprintf(w, "%s\n", t.Name); err != nil {
			return err
		}
		for _, c := range t.Columns {
			fmt.Fprintf(w, "  %-24s %s%s\n", c.Name, c.Type, columnFlags(c))
		}
		for _, fk := range t.ForeignKeys {
			fmt.Fprintf(w, "  FK %v -> %s%v\n", fk.ChildColumns, fk.ParentTable, fk.ParentColumns)
		}
	}
	return nil
}

func columnFlags(c schema.Column) string {
	var s string
	if c.PrimaryKey {
		s += " PRIMARY KEY"
	}
	if !c.Nullable {
		s += " NOT NULL"
	}
	if c.Unique {
		s += " UNIQUE"
	}
	if c.Default != nil {
		s += " DEFAULT " + *c.Default
	}
	return s
}
