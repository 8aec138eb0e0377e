package graph

import (
	"container/heap"

	"github.com/vk/cellgraph/internal/cell"
	"github.com/vk/cellgraph/internal/sets"
)

// topoEntry pairs a cell with its registration index, the heap priority.
type topoEntry struct {
	index int
	id    cell.ID
}

type topoHeap []topoEntry

func (h topoHeap) Len() int           { return len(h) }
func (h topoHeap) Less(i, j int) bool { return h[i].index < h[j].index }
func (h topoHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *topoHeap) Push(x any)        { *h = append(*h, x.(topoEntry)) }
func (h *topoHeap) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	*h = old[:n-1]
	return entry
}

// TopologicalSort linearizes the subgraph induced by ids. Among cells whose
// dependencies are equally satisfied, ties break by registration order
// (first registered first), so the result is deterministic and reproducible
// across runs with identical structure.
//
// Cells on a cycle within ids never reach in-degree zero and are omitted
// from the result.
func (g *Graph) TopologicalSort(ids sets.Set[cell.ID]) []cell.ID {
	index := make(map[cell.ID]int, len(g.order))
	for i, id := range g.order {
		index[id] = i
	}

	parents, children := g.InducedSubgraph(ids)
	inDegree := make(map[cell.ID]int, ids.Len())
	for id := range ids {
		inDegree[id] = parents[id].Len()
	}

	h := &topoHeap{}
	for id := range ids {
		if inDegree[id] == 0 {
			*h = append(*h, topoEntry{index: index[id], id: id})
		}
	}
	heap.Init(h)

	sorted := make([]cell.ID, 0, ids.Len())
	for h.Len() > 0 {
		entry := heap.Pop(h).(topoEntry)
		sorted = append(sorted, entry.id)

		for child := range children[entry.id] {
			inDegree[child]--
			if inDegree[child] == 0 {
				heap.Push(h, topoEntry{index: index[child], id: child})
			}
		}
	}
	return sorted
}
