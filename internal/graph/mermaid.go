package graph

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/hurou927/schemashift/internal/schema"
)

// WriteMermaid writes g as a Mermaid flowchart, one subgraph per component.
// Arrows point from the referencing table to the referenced one and carry
// the referencing columns. Repeated constraints over the same columns are
// drawn once.
func WriteMermaid(w io.Writer, g *Graph) error {
	byChild := make(map[string][]schema.ForeignKey)
	for _, e := range g.Edges {
		byChild[e.ChildTable] = append(byChild[e.ChildTable], e.FK)
	}

	fmt.Fprintln(w, "graph TD")
	for i, comp := range FindComponents(g) {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "    subgraph component_%d\n", i+1)
		for _, t := range comp.Tables {
			fks := slices.Concat(byChild[t], g.SelfRefs[t])
			if len(fks) == 0 && len(g.Children[t]) == 0 {
				fmt.Fprintf(w, "        %s\n", t)
				continue
			}
			drawn := make(map[string]bool, len(fks))
			for _, fk := range fks {
				arrow := fmt.Sprintf("%s -->|%s| %s", t, strings.Join(fk.ChildColumns, ", "), fk.ParentTable)
				if drawn[arrow] {
					continue
				}
				drawn[arrow] = true
				fmt.Fprintf(w, "        %s\n", arrow)
			}
		}
		fmt.Fprintln(w, "    end")
	}
	return nil
}

// WriteText writes a text summary of the graph to w. rowCounts may be nil.
func WriteText(w io.Writer, g *Graph, rowCounts map[string]int64) error {
	components := FindComponents(g)

	fmt.Fprintf(w, "Tables: %d\n", len(g.Tables))
	fmt.Fprintf(w, "Foreign Keys: %d\n", len(g.Edges)+countSelfRefs(g))
	fmt.Fprintf(w, "Connected Components: %d\n\n", len(components))

	if all := LoadOrderAll(g); all.HasCycle() {
		fmt.Fprintf(w, "WARNING: Circular dependencies detected: %v\n\n", all.Cyclic)
	}

	var noPKTables []string
	for name, tbl := range g.Tables {
		if len(tbl.PKColumnNames()) == 0 {
			noPKTables = append(noPKTables, name)
		}
	}
	if len(noPKTables) > 0 {
		slices.Sort(noPKTables)
		fmt.Fprintf(w, "WARNING: Tables without primary key: %v\n\n", noPKTables)
	}

	for i, comp := range components {
		fmt.Fprintf(w, "=== Component %d (%d tables) ===\n", i+1, len(comp.Tables))

		order := LoadOrder(g, comp.Tables)
		for j, t := range order.Order {
			writeTableLine(w, g, t, j+1, rowCounts)
		}
		if order.HasCycle() {
			fmt.Fprintf(w, "  Cycle tables: %v\n", order.Cyclic)
		}
		fmt.Fprintln(w)
	}

	return nil
}

func writeTableLine(w io.Writer, g *Graph, name string, n int, rowCounts map[string]int64) {
	tbl := g.Tables[name]
	pkInfo := "no PK"
	if pk := tbl.PKColumnNames(); len(pk) > 0 {
		pkInfo = fmt.Sprintf("PK: %s", strings.Join(pk, ", "))
	}
	rows := ""
	if rowCounts != nil {
		rows = fmt.Sprintf(", %d rows", rowCounts[name])
	}
	fmt.Fprintf(w, "  %d. %s (%d cols, %s%s)\n", n, name, len(tbl.Columns), pkInfo, rows)

	for _, fk := range g.Dependents(name) {
		fmt.Fprintf(w, "       referenced by %s(%s)\n", fk.ChildTable, strings.Join(fk.ChildColumns, ", "))
	}
}

func countSelfRefs(g *Graph) int {
	count := 0
	for _, fks := range g.SelfRefs {
		count += len(fks)
	}
	return count
}
