package graph

import (
	"slices"

	"github.com/hurou927/schemashift/internal/schema"
)

// Edge represents a directed edge from child to parent (FK direction).
type Edge struct {
	FK          schema.ForeignKey
	ChildTable  string
	ParentTable string
}

// Graph is a directed graph built from FK relationships.
type Graph struct {
	// Tables maps name -> table
	Tables map[string]*schema.Table

	// Edges are non-self-referential FK edges (child → parent)
	Edges []Edge

	// SelfRefs holds self-referential FKs, keyed by table name
	SelfRefs map[string][]schema.ForeignKey

	// Children maps parent name → list of child names
	Children map[string][]string

	// Parents maps child name → list of parent names
	Parents map[string][]string
}

// Build constructs a directed graph from introspected tables.
// Tables in excludeSet are skipped. FKs referencing tables outside
// the known set are ignored. FKs that reference the parent's primary key
// implicitly (SQLite allows omitting the column list) are resolved here.
func Build(tables map[string]*schema.Table, excludeSet map[string]bool) *Graph {
	g := &Graph{
		Tables:   make(map[string]*schema.Table),
		SelfRefs: make(map[string][]schema.ForeignKey),
		Children: make(map[string][]string),
		Parents:  make(map[string][]string),
	}

	for name, tbl := range tables {
		if excludeSet[name] {
			continue
		}
		g.Tables[name] = tbl
	}

	for _, name := range g.Names() {
		for _, fk := range g.Tables[name].ForeignKeys {
			parent, ok := g.Tables[fk.ParentTable]
			if !ok {
				continue // parent table not in scope
			}
			fk = resolveImplicitParent(fk, parent)

			if fk.IsSelfRef() {
				g.SelfRefs[name] = append(g.SelfRefs[name], fk)
				continue
			}

			g.Edges = append(g.Edges, Edge{
				FK:          fk,
				ChildTable:  name,
				ParentTable: fk.ParentTable,
			})
			g.Children[fk.ParentTable] = append(g.Children[fk.ParentTable], name)
			g.Parents[name] = append(g.Parents[name], fk.ParentTable)
		}
	}

	return g
}

func resolveImplicitParent(fk schema.ForeignKey, parent *schema.Table) schema.ForeignKey {
	pk := parent.PKColumnNames()
	if len(pk) != len(fk.ParentColumns) {
		return fk
	}
	resolved := make([]string, len(fk.ParentColumns))
	for i, c := range fk.ParentColumns {
		if c == "" {
			c = pk[i]
		}
		resolved[i] = c
	}
	fk.ParentColumns = resolved
	return fk
}

// Dependents returns the FKs of other tables that reference table.
func (g *Graph) Dependents(table string) []schema.ForeignKey {
	var out []schema.ForeignKey
	for _, e := range g.Edges {
		if e.ParentTable == table {
			out = append(out, e.FK)
		}
	}
	return out
}

// Names returns every table name in g, sorted.
func (g *Graph) Names() []string {
	names := make([]string, 0, len(g.Tables))
	for name := range g.Tables {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Roots returns tables that have no outgoing FK edges (no parents).
func (g *Graph) Roots() []string {
	var roots []string
	for name := range g.Tables {
		if len(g.Parents[name]) == 0 {
			roots = append(roots, name)
		}
	}
	return roots
}
