package graph

import "slices"

// Ordering is a parent-first order over a set of tables.
type Ordering struct {
	Order []string
	// Cyclic holds the tables that could not be placed because they sit on,
	// or hang below, a foreign key cycle. Sorted by name.
	Cyclic []string
}

// HasCycle reports whether any table was left out of Order.
func (o Ordering) HasCycle() bool { return len(o.Cyclic) > 0 }

// LoadOrder orders tables so that every table follows the tables it
// references. Edges leaving the subset are ignored. Among tables that are
// ready at the same time the smallest name goes first.
func LoadOrder(g *Graph, tables []string) Ordering {
	member := make(map[string]bool, len(tables))
	for _, t := range tables {
		member[t] = true
	}

	waiting := make(map[string]int, len(tables))
	for _, t := range tables {
		for _, p := range g.Parents[t] {
			if member[p] {
				waiting[t]++
			}
		}
	}

	var ready []string
	for _, t := range tables {
		if waiting[t] == 0 {
			ready = append(ready, t)
		}
	}

	var out Ordering
	for len(ready) > 0 {
		slices.Sort(ready)
		next := ready[0]
		ready = ready[1:]
		out.Order = append(out.Order, next)
		for _, child := range g.Children[next] {
			if !member[child] {
				continue
			}
			if waiting[child]--; waiting[child] == 0 {
				ready = append(ready, child)
			}
		}
	}

	for _, t := range tables {
		if waiting[t] > 0 {
			out.Cyclic = append(out.Cyclic, t)
		}
	}
	slices.Sort(out.Cyclic)
	return out
}

// LoadOrderAll is LoadOrder over every table in g.
func LoadOrderAll(g *Graph) Ordering {
	return LoadOrder(g, g.Names())
}
