package graph

import (
	"github.com/vk/cellgraph/internal/cell"
	"github.com/vk/cellgraph/internal/sets"
)

// DefiningCells returns the cells that define name. This is a singleton for
// well-formed graphs.
func (g *Graph) DefiningCells(name string) sets.Set[cell.ID] {
	if definers, ok := g.definitions[name]; ok {
		return definers.Copy()
	}
	return sets.New[cell.ID]()
}

// ReferringCells returns the cells that reference name. The language is that
// of the definition being resolved: restricted-language definitions are
// visible only to restricted-language cells, so the scan filters to them;
// general-language definitions are visible to every referrer.
//
// This is a local analysis of refs only; it does not check whether the name
// is actually defined anywhere.
func (g *Graph) ReferringCells(name string, language cell.Language) sets.Set[cell.ID] {
	out := sets.New[cell.ID]()
	for id, c := range g.cells {
		if !c.Refs.Contains(name) {
			continue
		}
		if language == cell.LanguageRestricted && c.Language != cell.LanguageRestricted {
			continue
		}
		out.Add(id)
	}
	return out
}

// Path returns a shortest edge path from source to dst over child edges, or
// an empty path if source == dst or dst is unreachable.
func (g *Graph) Path(source, dst cell.ID) []Edge {
	if source == dst {
		return nil
	}

	type queued struct {
		id   cell.ID
		path []Edge
	}
	queue := []queued{{id: source}}
	found := sets.New(source)

	for len(queue) > 0 {
		head := queue[0]
		queue = queue[1:]
		for child := range g.children[head.id] {
			if found.Contains(child) {
				continue
			}
			next := make([]Edge, len(head.path), len(head.path)+1)
			copy(next, head.path)
			next = append(next, Edge{Source: head.id, Dest: child})
			if child == dst {
				return next
			}
			found.Add(child)
			queue = append(queue, queued{id: child, path: next})
		}
	}
	return nil
}

// MultiplyDefined returns every name with more than one definer, sorted.
// A non-empty result means the graph is in a name-collision error state.
func (g *Graph) MultiplyDefined() []string {
	names := sets.New[string]()
	for name, definers := range g.definitions {
		if definers.Len() > 1 {
			names.Add(name)
		}
	}
	return sets.Sorted(names)
}

// DeletedNonlocalRefs returns the names some cell has explicitly deleted
// from its own scope that are still defined elsewhere in the graph, sorted.
// Such a deletion signals a dangling external binding.
func (g *Graph) DeletedNonlocalRefs() []string {
	names := sets.New[string]()
	for _, c := range g.cells {
		for ref := range c.DeletedRefs {
			if _, ok := g.definitions[ref]; ok {
				names.Add(ref)
			}
		}
	}
	return sets.Sorted(names)
}

// Imports returns, for every import block in the graph (or just the given
// cell when id is non-empty), the mapping from each already-bound name to
// the cell that imports it.
func (g *Graph) Imports(id cell.ID) map[string]cell.ID {
	out := make(map[string]cell.ID)
	consider := func(c *cell.Cell) {
		if !c.ImportWorkspace.IsImportBlock {
			return
		}
		for name := range c.ImportWorkspace.ImportedDefs {
			out[name] = c.ID
		}
	}
	if id != "" {
		if c, ok := g.cells[id]; ok {
			consider(c)
		}
		return out
	}
	for _, c := range g.cells {
		consider(c)
	}
	return out
}

// TransitiveReferences expands a seed set of referenced names outward
// through definition chains: each queued name resolves to its defining
// cells, whose definition records contribute their own required references.
// A required name that is not a graph-level definition but is lexically
// scoped as a private symbol of the resolving cell is absorbed as well,
// since such symbols are invisible externally yet still required.
//
// If inclusive, the seed refs are unioned into the result; otherwise they
// are subtracted from it. If predicate is non-nil, only definition records
// satisfying predicate(name, record) are expanded.
func (g *Graph) TransitiveReferences(refs sets.Set[string], inclusive bool, predicate func(name string, data cell.VariableData) bool) sets.Set[string] {
	if predicate == nil {
		predicate = func(string, cell.VariableData) bool { return true }
	}

	processed := sets.New[string]()
	queue := sets.New[string]()
	for ref := range refs {
		if _, ok := g.definitions[ref]; ok {
			queue.Add(ref)
		}
	}

	for queue.Len() > 0 {
		// Ideally one defining cell per ref, but the graph may hold
		// collisions or cycles; resolve against every definer.
		resolvers := sets.New[cell.ID]()
		for ref := range queue {
			resolvers.AddAll(g.definitions[ref])
		}

		for id := range resolvers {
			c := g.cells[id]
			newlyProcessed := sets.New[string]()
			for name := range queue {
				if _, ok := c.Variables[name]; ok {
					newlyProcessed.Add(name)
				}
			}
			processed.AddAll(newlyProcessed)
			queue.RemoveAll(newlyProcessed)

			for name := range newlyProcessed {
				// A name may carry several definition records in one cell.
				for _, record := range c.Variables[name] {
					if !predicate(name, record) {
						continue
					}
					toProcess := record.RequiredRefs.Diff(processed)
					for required := range toProcess {
						if _, ok := g.definitions[required]; ok {
							queue.Add(required)
						} else if cell.IsLocalSymbol(required, id) {
							// Private symbols referenced by public
							// definitions must be included.
							processed.Add(required)
						}
					}
				}
			}
		}
	}

	if inclusive {
		return processed.Union(refs)
	}
	return processed.Diff(refs)
}
