package graph

import (
	"context"
	"sort"
	"strings"

	"github.com/vk/cellgraph/internal/cell"
	"github.com/vk/cellgraph/internal/ctxlog"
	"github.com/vk/cellgraph/internal/sets"
)

// Cycle is a closed walk of dependency edges. Cycles are discovered
// incrementally at edge-insertion time: the new edge consed onto the
// pre-existing reverse path. The graph never scans for cycles wholesale.
type Cycle []Edge

// key is the canonical identity of a cycle, used for deduplication.
func (c Cycle) key() string {
	parts := make([]string, len(c))
	for i, e := range c {
		parts[i] = string(e.Source) + ">" + string(e.Dest)
	}
	return strings.Join(parts, "|")
}

func (c Cycle) contains(e Edge) bool {
	for _, edge := range c {
		if edge == e {
			return true
		}
	}
	return false
}

// recordCycle stores a newly discovered cycle. Must be called with the
// structural lock held.
func (g *Graph) recordCycle(ctx context.Context, cyc Cycle) {
	key := cyc.key()
	if _, ok := g.cycles[key]; ok {
		return
	}
	g.cycles[key] = cyc
	ctxlog.FromContext(ctx).Debug("Recorded dependency cycle.", "length", len(cyc), "closing_edge", cyc[0])
}

// Cycles returns all recorded cycles in a deterministic order.
func (g *Graph) Cycles() []Cycle {
	return sortedCycles(g.cycles)
}

// CyclesWithin returns the recorded cycles composed entirely of edges whose
// endpoints both lie in ids (the induced subgraph), in deterministic order.
func (g *Graph) CyclesWithin(ids sets.Set[cell.ID]) []Cycle {
	_, induced := g.InducedSubgraph(ids)
	inducedEdges := sets.New[Edge]()
	for u, childSet := range induced {
		for v := range childSet {
			inducedEdges.Add(Edge{Source: u, Dest: v})
		}
	}

	matching := make(map[string]Cycle)
	for key, cyc := range g.cycles {
		all := true
		for _, e := range cyc {
			if !inducedEdges.Contains(e) {
				all = false
				break
			}
		}
		if all {
			matching[key] = cyc
		}
	}
	return sortedCycles(matching)
}

func sortedCycles(cycles map[string]Cycle) []Cycle {
	keys := make([]string, 0, len(cycles))
	for key := range cycles {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]Cycle, 0, len(keys))
	for _, key := range keys {
		out = append(out, cycles[key])
	}
	return out
}
