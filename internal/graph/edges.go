package graph

import (
	"encoding/json"
	"sort"

	"github.com/vk/cellgraph/internal/cell"
	"github.com/vk/cellgraph/internal/sets"
)

// Edge is a directed dependency edge: Dest references a name defined in
// Source. It serializes as a plain two-element array for external consumers.
type Edge struct {
	Source cell.ID
	Dest   cell.ID
}

// MarshalJSON encodes the edge as ["source", "dest"].
func (e Edge) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]cell.ID{e.Source, e.Dest})
}

// EdgeWithVariables is an edge annotated with the ordered list of names that
// justify it. A list rather than a set: the output must be order-stable and
// trivially serializable.
type EdgeWithVariables struct {
	Source    cell.ID
	Variables []string
	Dest      cell.ID
}

// MarshalJSON encodes the edge as ["source", ["name", ...], "dest"].
func (e EdgeWithVariables) MarshalJSON() ([]byte, error) {
	vars := e.Variables
	if vars == nil {
		vars = []string{}
	}
	return json.Marshal([3]any{e.Source, vars, e.Dest})
}

// EdgesWithVariables enumerates every current edge together with the sorted
// names that justify it, ordered by the registration order of the source and
// then of the destination.
func (g *Graph) EdgesWithVariables() []EdgeWithVariables {
	index := make(map[cell.ID]int, len(g.order))
	for i, id := range g.order {
		index[id] = i
	}

	out := make([]EdgeWithVariables, 0)
	for _, src := range g.order {
		srcCell := g.cells[src]
		dests := g.children[src].Items()
		// Registration order keeps the serialized form stable across runs.
		sort.Slice(dests, func(i, j int) bool { return index[dests[i]] < index[dests[j]] })
		for _, dst := range dests {
			dstCell := g.cells[dst]
			names := sets.New[string]()
			for name := range srcCell.Defs {
				if dstCell.Refs.Contains(name) && cell.EdgeAllowed(srcCell.DefLanguage(name), dstCell.Language) {
					names.Add(name)
				}
			}
			out = append(out, EdgeWithVariables{
				Source:    src,
				Variables: sets.Sorted(names),
				Dest:      dst,
			})
		}
	}
	return out
}
