// Package runner executes individual cells against the dependency graph:
// it computes the minimal ancestor set still required after caller-supplied
// overrides, orders it topologically, and drives each cell through an
// external executor into a shared namespace.
package runner

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/cellgraph/internal/cell"
	"github.com/vk/cellgraph/internal/ctxlog"
	"github.com/vk/cellgraph/internal/graph"
	"github.com/vk/cellgraph/internal/sets"
)

// Namespace is the shared value environment a run accumulates definitions
// into. Each cell in topological order observes the side effects of all of
// its predecessors.
type Namespace map[string]any

// Executor runs a single cell's body against a namespace. Implementations
// must populate ns with every name the cell defines that it successfully
// computed and must update the cell's runtime status as a side effect
// (running, then idle, errored, interrupted, or cancelled).
//
// ExecuteCell is the blocking form; ExecuteCellAsync is the cooperative,
// suspension-capable form. Cancellation and timeouts are the executor's
// responsibility, not the runner's.
type Executor interface {
	ExecuteCell(ctx context.Context, c *cell.Cell, ns Namespace, g *graph.Graph) (any, error)
	ExecuteCellAsync(ctx context.Context, c *cell.Cell, ns Namespace, g *graph.Graph) (any, error)
}

// Runner runs cells in a graph, recursively computing the values of a cell's
// refs by executing its ancestors. Refs can instead be substituted by the
// caller through overrides, excluding the ancestors that only served them.
type Runner struct {
	graph    *graph.Graph
	executor Executor
}

// New returns a runner over g that drives execution through executor.
func New(g *graph.Graph, executor Executor) *Runner {
	return &Runner{graph: g, executor: executor}
}

// validateOverrides checks that every override key is one of the cell's
// declared references.
func validateOverrides(c *cell.Cell, overrides map[string]any) error {
	for name := range overrides {
		if !c.Refs.Contains(name) {
			return fmt.Errorf("cell %s got unexpected override %q; the allowed overrides are [%s]",
				c.ID, name, strings.Join(sets.Sorted(c.Refs), ", "))
		}
	}
	return nil
}

// ancestorsFor computes the minimal ancestor set of c: the transitive
// closure over parents seeded from the direct parents whose definitions
// intersect c's unsubstituted refs. Ancestors that exist solely to satisfy
// an overridden ref are excluded entirely.
func (r *Runner) ancestorsFor(c *cell.Cell, overrides map[string]any) sets.Set[cell.ID] {
	substituted := sets.New[string]()
	for name := range overrides {
		substituted.Add(name)
	}
	unsubstituted := c.Refs.Diff(substituted)

	seed := sets.New[cell.ID]()
	for parent := range r.graph.Parents(c.ID) {
		pc, ok := r.graph.Cell(parent)
		if ok && pc.Defs.Intersects(unsubstituted) {
			seed.Add(parent)
		}
	}
	return r.graph.TransitiveClosure(seed, graph.ClosureOptions{Parents: true, Inclusive: true})
}

// IsSuspending reports whether running id requires the suspending entry
// point: the cell itself, or any ancestor that would execute with it, is a
// suspending cell.
func (r *Runner) IsSuspending(id cell.ID) (bool, error) {
	c, ok := r.graph.Cell(id)
	if !ok {
		return false, fmt.Errorf("cell %s not found", id)
	}
	if c.Suspending {
		return true, nil
	}
	for aid := range r.ancestorsFor(c, nil) {
		if ac, ok := r.graph.Cell(aid); ok && ac.Suspending {
			return true, nil
		}
	}
	return false, nil
}

// RunCell runs a cell and its required ancestors through the blocking
// executor entry point, returning the cell's output and the values of its
// defs. It fails before doing any work if the target or any unsubstituted
// ancestor is a suspending cell; use RunCellAsync for those.
func (r *Runner) RunCell(ctx context.Context, id cell.ID, overrides map[string]any) (any, map[string]any, error) {
	c, ok := r.graph.Cell(id)
	if !ok {
		return nil, nil, fmt.Errorf("cell %s not found", id)
	}
	if c.Suspending {
		return nil, nil, fmt.Errorf("cell %s is suspending and can't run through the blocking entry point; use RunCellAsync", id)
	}
	if err := validateOverrides(c, overrides); err != nil {
		return nil, nil, err
	}

	ancestors := r.ancestorsFor(c, overrides)
	for aid := range ancestors {
		if ac, ok := r.graph.Cell(aid); ok && ac.Suspending {
			return nil, nil, fmt.Errorf("cell %s has a suspending ancestor %s; use RunCellAsync", id, aid)
		}
	}

	return r.execute(ctx, c, ancestors, overrides, r.executor.ExecuteCell)
}

// RunCellAsync runs a possibly suspending cell and its required ancestors
// through the suspending executor entry point.
func (r *Runner) RunCellAsync(ctx context.Context, id cell.ID, overrides map[string]any) (any, map[string]any, error) {
	c, ok := r.graph.Cell(id)
	if !ok {
		return nil, nil, fmt.Errorf("cell %s not found", id)
	}
	if err := validateOverrides(c, overrides); err != nil {
		return nil, nil, err
	}
	return r.execute(ctx, c, r.ancestorsFor(c, overrides), overrides, r.executor.ExecuteCellAsync)
}

type invokeFunc func(ctx context.Context, c *cell.Cell, ns Namespace, g *graph.Graph) (any, error)

// execute drives the shared run logic: ancestors strictly one at a time in
// topological order, then override injection, then the target itself. A
// failed ancestor's error is returned as the run error; its status was
// already recorded by the executor.
func (r *Runner) execute(ctx context.Context, c *cell.Cell, ancestors sets.Set[cell.ID], overrides map[string]any, invoke invokeFunc) (any, map[string]any, error) {
	logger := ctxlog.FromContext(ctx).With("cell_id", c.ID)
	ns := make(Namespace)

	ordered := r.graph.TopologicalSort(ancestors)
	logger.Debug("Running ancestors.", "count", len(ordered))
	for _, aid := range ordered {
		ac, ok := r.graph.Cell(aid)
		if !ok {
			return nil, nil, fmt.Errorf("ancestor %s of cell %s not found", aid, c.ID)
		}
		if _, err := invoke(ctx, ac, ns, r.graph); err != nil {
			return nil, nil, fmt.Errorf("running ancestor %s of cell %s: %w", aid, c.ID, err)
		}
	}

	for name, value := range overrides {
		ns[name] = value
	}

	logger.Debug("Running target cell.")
	output, err := invoke(ctx, c, ns, r.graph)
	if err != nil {
		return nil, nil, fmt.Errorf("running cell %s: %w", c.ID, err)
	}
	return output, returns(c, ns), nil
}

// returns restricts the namespace to exactly the names the cell declares as
// its own definitions.
func returns(c *cell.Cell, ns Namespace) map[string]any {
	out := make(map[string]any)
	for name := range c.Defs {
		if value, ok := ns[name]; ok {
			out[name] = value
		}
	}
	return out
}
