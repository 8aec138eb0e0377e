package graph

import (
	"github.com/vk/cellgraph/internal/cell"
	"github.com/vk/cellgraph/internal/sets"
)

// RelativesFunc overrides how a traversal finds the relatives of a cell.
// children reports the traversal direction.
type RelativesFunc func(g *Graph, id cell.ID, children bool) sets.Set[cell.ID]

// ClosureOptions parameterize TransitiveClosure.
type ClosureOptions struct {
	// Parents walks parent edges (ancestors) instead of child edges.
	Parents bool
	// Inclusive includes the seed cells in the result.
	Inclusive bool
	// Relatives, when non-nil, replaces the plain adjacency lookup.
	Relatives RelativesFunc
	// Predicate, when non-nil, filters cells out of the result. Excluded
	// cells still terminate traversal through them: they are marked seen
	// and their relatives are explored.
	Predicate func(c *cell.Cell) bool
}

// TransitiveClosure returns the seed cells' descendants (or ancestors, with
// Parents set) via breadth-first traversal.
func (g *Graph) TransitiveClosure(seed sets.Set[cell.ID], opts ClosureOptions) sets.Set[cell.ID] {
	result := sets.New[cell.ID]()
	if opts.Inclusive {
		result = seed.Copy()
	}
	seen := seed.Copy()
	queue := make([]cell.ID, 0, seed.Len())
	queue = append(queue, seed.Items()...)

	relatives := func(id cell.ID) sets.Set[cell.ID] {
		if opts.Relatives != nil {
			return opts.Relatives(g, id, !opts.Parents)
		}
		if opts.Parents {
			return g.parents[id]
		}
		return g.children[id]
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		for relative := range relatives(id) {
			if seen.Contains(relative) {
				continue
			}
			if opts.Predicate == nil || opts.Predicate(g.cells[relative]) {
				result.Add(relative)
			}
			seen.Add(relative)
			queue = append(queue, relative)
		}
	}
	return result
}

// Descendants returns the full transitive closure over children, exclusive
// of id itself.
func (g *Graph) Descendants(id cell.ID) sets.Set[cell.ID] {
	return g.TransitiveClosure(sets.New(id), ClosureOptions{})
}

// Ancestors returns the full transitive closure over parents, exclusive of
// id itself.
func (g *Graph) Ancestors(id cell.ID) sets.Set[cell.ID] {
	return g.TransitiveClosure(sets.New(id), ClosureOptions{Parents: true})
}

// InducedSubgraph returns the parents and children of each cell in ids,
// restricted to edges with both endpoints in ids.
func (g *Graph) InducedSubgraph(ids sets.Set[cell.ID]) (parents, children map[cell.ID]sets.Set[cell.ID]) {
	parents = make(map[cell.ID]sets.Set[cell.ID], ids.Len())
	children = make(map[cell.ID]sets.Set[cell.ID], ids.Len())
	for id := range ids {
		parents[id] = g.parents[id].Intersect(ids)
		children[id] = g.children[id].Intersect(ids)
	}
	return parents, children
}

// ImportBlockRelatives computes children for staleness propagation with the
// import-block special case: for an import block, only definitions not yet
// bound by the import machinery are used to find children, since re-running
// dependents of an already-imported name is wasted work. Referrers of bound
// names are still pulled back in when they sit in a terminal status that
// indicates a partial execution (the import ran, its children did not).
//
// Pass this as ClosureOptions.Relatives or via SetStale's pruneImports.
func ImportBlockRelatives(g *Graph, id cell.ID, children bool) sets.Set[cell.ID] {
	if !children {
		return g.parents[id]
	}

	c := g.cells[id]
	if !c.ImportWorkspace.IsImportBlock {
		return g.children[id]
	}

	unimported := c.Defs.Diff(c.ImportWorkspace.ImportedDefs)
	childIDs := sets.New[cell.ID]()
	for name := range unimported {
		childIDs.AddAll(g.ReferringCells(name, cell.LanguageGeneral))
	}

	if c.ImportWorkspace.ImportedDefs.Len() > 0 {
		for name := range c.ImportWorkspace.ImportedDefs {
			for childID := range g.ReferringCells(name, cell.LanguageGeneral) {
				if cell.NeedsRecovery(g.cells[childID].Status()) {
					childIDs.Add(childID)
				}
			}
		}
	}
	return childIDs
}
