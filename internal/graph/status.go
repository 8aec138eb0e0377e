package graph

import (
	"context"
	"fmt"

	"github.com/vk/cellgraph/internal/cell"
	"github.com/vk/cellgraph/internal/ctxlog"
	"github.com/vk/cellgraph/internal/sets"
)

// Disable sets the cell's local disabled flag and marks every strict
// descendant as disabled transitively. It mutates cell statuses only, never
// graph structure, so it does not take the structural lock.
func (g *Graph) Disable(ctx context.Context, id cell.ID) error {
	logger := ctxlog.FromContext(ctx)
	c, ok := g.cells[id]
	if !ok {
		return fmt.Errorf("cell %s not found", id)
	}
	c.Config.Disabled = true

	descendants := g.TransitiveClosure(sets.New(id), ClosureOptions{Inclusive: true})
	descendants.Remove(id)
	for did := range descendants {
		if err := g.cells[did].SetStatus(cell.StatusDisabledTransitively); err != nil {
			return fmt.Errorf("disabling descendant %s of %s: %w", did, id, err)
		}
	}
	logger.Debug("Disabled cell.", "cell_id", id, "descendants", descendants.Len())
	return nil
}

// Enable clears the cell's local disabled flag, then clears the
// transitively-disabled status of id's descendants that
// are not otherwise disabled (directly or through another still-disabled
// ancestor), restoring them to idle. It returns the subset of those
// now-enabled cells that are stale and therefore require re-execution.
func (g *Graph) Enable(ctx context.Context, id cell.ID) (sets.Set[cell.ID], error) {
	logger := ctxlog.FromContext(ctx)
	c, ok := g.cells[id]
	if !ok {
		return nil, fmt.Errorf("cell %s not found", id)
	}
	c.Config.Disabled = false

	cellsToRun := sets.New[cell.ID]()
	for did := range g.TransitiveClosure(sets.New(id), ClosureOptions{Inclusive: true}) {
		disabled, err := g.IsDisabled(did)
		if err != nil {
			return nil, err
		}
		if disabled {
			continue
		}
		c := g.cells[did]
		if c.Stale() {
			// Previously disabled, no longer disabled, and stale: needs to
			// run.
			cellsToRun.Add(did)
		}
		if c.Status() == cell.StatusDisabledTransitively {
			if err := c.SetStatus(cell.StatusIdle); err != nil {
				return nil, fmt.Errorf("enabling descendant %s of %s: %w", did, id, err)
			}
		}
	}
	logger.Debug("Enabled cell.", "cell_id", id, "stale_to_run", cellsToRun.Len())
	return cellsToRun, nil
}

// IsDisabled reports whether id is disabled, either directly through its own
// config or transitively through some disabled ancestor.
func (g *Graph) IsDisabled(id cell.ID) (bool, error) {
	c, ok := g.cells[id]
	if !ok {
		return false, fmt.Errorf("cell %s not found", id)
	}
	if c.Config.Disabled {
		return true, nil
	}

	seen := sets.New[cell.ID]()
	stack := []cell.ID{id}
	for len(stack) > 0 {
		cid := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		seen.Add(cid)
		for parent := range g.parents[cid] {
			if seen.Contains(parent) {
				continue
			}
			if g.cells[parent].Config.Disabled {
				return true, nil
			}
			stack = append(stack, parent)
		}
	}
	return false, nil
}

// SetStale marks the given cells and their descendants stale. With
// pruneImports, descendants are found through ImportBlockRelatives so that
// already-bound import names do not force re-runs of their dependents.
func (g *Graph) SetStale(ctx context.Context, ids sets.Set[cell.ID], pruneImports bool) {
	var relatives RelativesFunc
	if pruneImports {
		relatives = ImportBlockRelatives
	}
	stale := g.TransitiveClosure(ids, ClosureOptions{Inclusive: true, Relatives: relatives})
	for id := range stale {
		g.cells[id].SetStale(true)
	}
	ctxlog.FromContext(ctx).Debug("Marked cells stale.", "seed", ids.Len(), "total", stale.Len())
}

// StaleCells returns the ids of every stale cell.
func (g *Graph) StaleCells() sets.Set[cell.ID] {
	out := sets.New[cell.ID]()
	for id, c := range g.cells {
		if c.Stale() {
			out.Add(id)
		}
	}
	return out
}

func (g *Graph) isAnyAncestorStale(id cell.ID) bool {
	for aid := range g.Ancestors(id) {
		if g.cells[aid].Stale() {
			return true
		}
	}
	return false
}

func (g *Graph) isAnyAncestorDisabled(id cell.ID) bool {
	for aid := range g.Ancestors(id) {
		if g.cells[aid].Config.Disabled {
			return true
		}
	}
	return false
}
