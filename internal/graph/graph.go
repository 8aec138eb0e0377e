// Package graph implements the live dependency graph over cells: dataflow
// edges derived from name definitions and references, sibling tracking for
// name collisions, incremental cycle detection, stale/disabled propagation,
// and deterministic topological ordering.
package graph

import (
	"context"
	"fmt"
	"sync"

	"github.com/vk/cellgraph/internal/cell"
	"github.com/vk/cellgraph/internal/ctxlog"
	"github.com/vk/cellgraph/internal/sets"
)

// Graph is the aggregate owning all cells and the relations derived from
// them. Edge (u, v) in children means v is a child of u: v references a name
// defined in u. parents is kept as the exact transpose of children at all
// times.
//
// Structural mutations (Register, Delete) run under the graph's mutex so the
// adjacency, sibling, definition, and cycle structures are never observed
// half-updated. Pure read queries take no lock and expect a quiescent graph;
// callers needing strict consistency must not interleave them with an
// in-flight mutation. Status-only operations (disable/enable/stale) never
// touch adjacency and use the per-cell locks instead.
type Graph struct {
	mu sync.Mutex

	// cells is exclusively owned by the graph.
	cells map[cell.ID]*cell.Cell

	children map[cell.ID]sets.Set[cell.ID]
	parents  map[cell.ID]sets.Set[cell.ID]

	// siblings[id] holds every other cell sharing a definition with id.
	// Non-empty sibling sets mean the program has multiply defined names.
	siblings map[cell.ID]sets.Set[cell.ID]

	// definitions maps each defined name to its defining cells. More than
	// one definer signals a name collision.
	definitions map[string]sets.Set[cell.ID]

	// cycles holds the recorded cycles keyed by their canonical edge walk.
	cycles map[string]Cycle

	// order tracks registration order; topological sorting breaks ties by
	// it, so it must survive deletions of unrelated cells.
	order []cell.ID
}

// New returns an initialized, empty graph.
func New() *Graph {
	return &Graph{
		cells:       make(map[cell.ID]*cell.Cell),
		children:    make(map[cell.ID]sets.Set[cell.ID]),
		parents:     make(map[cell.ID]sets.Set[cell.ID]),
		siblings:    make(map[cell.ID]sets.Set[cell.ID]),
		definitions: make(map[string]sets.Set[cell.ID]),
		cycles:      make(map[string]Cycle),
	}
}

// Cell returns the cell with the given id.
func (g *Graph) Cell(id cell.ID) (*cell.Cell, bool) {
	c, ok := g.cells[id]
	return c, ok
}

// CellIDs returns all cell ids in registration order.
func (g *Graph) CellIDs() []cell.ID {
	out := make([]cell.ID, len(g.order))
	copy(out, g.order)
	return out
}

// Children returns a copy of the direct children of id.
func (g *Graph) Children(id cell.ID) sets.Set[cell.ID] {
	return g.children[id].Copy()
}

// Parents returns a copy of the direct parents of id.
func (g *Graph) Parents(id cell.ID) sets.Set[cell.ID] {
	return g.parents[id].Copy()
}

// IsCellCached reports whether a cell with this id and exactly this code is
// already registered.
func (g *Graph) IsCellCached(id cell.ID, code string) bool {
	c, ok := g.cells[id]
	return ok && c.Key == cell.Fingerprint(code)
}

// Register adds a cell to the graph, deriving its edges from the names it
// defines and references. It fails without mutating anything if the id is
// already registered.
//
// Edges discovered to close a path back to their source are recorded as
// cycles. After the structural update, the new cell inherits staleness from
// stale ancestors and transitive disablement from disabled ancestors.
func (g *Graph) Register(ctx context.Context, c *cell.Cell) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Acquiring graph lock to register cell.", "cell_id", c.ID)
	g.mu.Lock()
	if _, ok := g.cells[c.ID]; ok {
		g.mu.Unlock()
		return fmt.Errorf("cell %s is already registered", c.ID)
	}

	g.cells[c.ID] = c
	g.order = append(g.order, c.ID)

	children := sets.New[cell.ID]()
	siblings := sets.New[cell.ID]()
	parents := sets.New[cell.ID]()
	g.children[c.ID] = children
	g.siblings[c.ID] = siblings
	g.parents[c.ID] = parents

	for name := range c.Variables {
		definers, ok := g.definitions[name]
		if !ok {
			definers = sets.New[cell.ID]()
			g.definitions[name] = definers
		}
		definers.Add(c.ID)
		for sibling := range definers {
			if sibling != c.ID {
				siblings.Add(sibling)
				g.siblings[sibling].Add(c.ID)
			}
		}

		// A cell may refer to its own defs; that never adds an edge.
		referring := g.ReferringCells(name, c.DefLanguage(name))
		referring.Remove(c.ID)

		// Each edge (c, v) being added closes a cycle iff a path v -> c
		// already exists.
		for v := range referring {
			if path := g.Path(v, c.ID); len(path) > 0 {
				g.recordCycle(ctx, append(Cycle{{Source: c.ID, Dest: v}}, path...))
			}
		}

		children.AddAll(referring)
		for child := range referring {
			g.parents[child].Add(c.ID)
		}
	}

	for name := range c.Refs {
		definers := g.definitions[name].Copy()
		definers.Remove(c.ID)
		// An empty definer set means the reference dangles; the name may
		// still resolve to a builtin at run time, so it is not an error.
		for other := range definers {
			if !cell.EdgeAllowed(g.cells[other].DefLanguage(name), c.Language) {
				continue
			}
			parents.Add(other)
			// Adding edge (other, c): a pre-existing path c -> other means
			// the new edge forms a cycle.
			if path := g.Path(c.ID, other); len(path) > 0 {
				g.recordCycle(ctx, append(Cycle{{Source: other, Dest: c.ID}}, path...))
			}
			g.children[other].Add(c.ID)
		}
	}
	g.mu.Unlock()
	logger.Debug("Registered cell and released graph lock.", "cell_id", c.ID)

	if g.isAnyAncestorStale(c.ID) {
		g.SetStale(ctx, sets.New(c.ID), false)
	}
	if g.isAnyAncestorDisabled(c.ID) {
		if err := c.SetStatus(cell.StatusDisabledTransitively); err != nil {
			return fmt.Errorf("seeding disabled status for cell %s: %w", c.ID, err)
		}
	}
	return nil
}

// Delete removes a cell, repairing every adjacency, sibling, and definition
// structure and purging cycles that used any of its edges. It returns the
// children the removed cell had, so the caller can decide what to
// re-evaluate.
func (g *Graph) Delete(ctx context.Context, id cell.ID) (sets.Set[cell.ID], error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Acquiring graph lock to delete cell.", "cell_id", id)
	g.mu.Lock()
	defer g.mu.Unlock()

	c, ok := g.cells[id]
	if !ok {
		return nil, fmt.Errorf("cell %s not found", id)
	}

	for name := range c.Defs {
		definers := g.definitions[name]
		definers.Remove(id)
		if definers.Len() == 0 {
			delete(g.definitions, name)
		}
	}

	// Every recorded cycle using an edge into or out of this cell is broken.
	edges := make([]Edge, 0, g.children[id].Len()+g.parents[id].Len())
	for child := range g.children[id] {
		edges = append(edges, Edge{Source: id, Dest: child})
	}
	for parent := range g.parents[id] {
		edges = append(edges, Edge{Source: parent, Dest: id})
	}
	for key, cyc := range g.cycles {
		for _, e := range edges {
			if cyc.contains(e) {
				delete(g.cycles, key)
				break
			}
		}
	}

	children := g.children[id]

	delete(g.cells, id)
	delete(g.children, id)
	delete(g.parents, id)
	delete(g.siblings, id)
	for _, elems := range g.parents {
		elems.Remove(id)
	}
	for _, elems := range g.children {
		elems.Remove(id)
	}
	for _, elems := range g.siblings {
		elems.Remove(id)
	}
	for i, oid := range g.order {
		if oid == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}

	logger.Debug("Deleted cell.", "cell_id", id, "orphaned_children", children.Len())
	return children, nil
}
