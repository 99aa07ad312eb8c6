package graph

import "slices"

// Component is a set of tables linked to each other by foreign keys,
// ignoring direction.
type Component struct {
	Tables []string
}

// FindComponents groups the tables of g into components. Tables inside a
// component are sorted, and components are ordered by their first table.
func FindComponents(g *Graph) []Component {
	names := g.Names()
	root := make(map[string]string, len(names))
	for _, n := range names {
		root[n] = n
	}
	var find func(string) string
	find = func(n string) string {
		if root[n] != n {
			root[n] = find(root[n])
		}
		return root[n]
	}
	for _, e := range g.Edges {
		a, b := find(e.ChildTable), find(e.ParentTable)
		if a == b {
			continue
		}
		// Keep the smaller name as representative.
		if b < a {
			a, b = b, a
		}
		root[b] = a
	}

	index := make(map[string]int)
	var out []Component
	for _, n := range names {
		r := find(n)
		i, ok := index[r]
		if !ok {
			i = len(out)
			index[r] = i
			out = append(out, Component{})
		}
		out[i].Tables = append(out[i].Tables, n)
	}
	for _, c := range out {
		slices.Sort(c.Tables)
	}
	return out
}
