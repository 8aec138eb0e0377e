package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/cellgraph/internal/cell"
	"github.com/vk/cellgraph/internal/sets"
)

// newTestCell builds a cell with the given defs and refs, all in the general
// language.
func newTestCell(id cell.ID, defs, refs []string) *cell.Cell {
	c := cell.New(id, "code of "+string(id))
	for _, name := range defs {
		c.Defs.Add(name)
		c.Variables[name] = []cell.VariableData{{
			Language:     cell.LanguageGeneral,
			RequiredRefs: sets.New(refs...),
		}}
	}
	c.Refs.AddAll(sets.New(refs...))
	return c
}

// assertTransposed checks that children and parents are mutual transposes.
func assertTransposed(t *testing.T, g *Graph) {
	t.Helper()
	for u, childSet := range g.children {
		for v := range childSet {
			assert.True(t, g.parents[v].Contains(u), "edge %s->%s missing from parents", u, v)
		}
	}
	for v, parentSet := range g.parents {
		for u := range parentSet {
			assert.True(t, g.children[u].Contains(v), "edge %s->%s missing from children", u, v)
		}
	}
}

func TestNew(t *testing.T) {
	g := New()
	require.NotNil(t, g)
	assert.Empty(t, g.cells)
	assert.Empty(t, g.cycles)
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("ref to an existing def creates the edge", func(t *testing.T) {
		g := New()
		require.NoError(t, g.Register(ctx, newTestCell("a", []string{"x"}, nil)))
		require.NoError(t, g.Register(ctx, newTestCell("b", []string{"y"}, []string{"x"})))

		assert.True(t, g.children["a"].Contains("b"))
		assert.True(t, g.parents["b"].Contains("a"))
		assert.Equal(t, 1, g.children["a"].Len())
		assertTransposed(t, g)
	})

	t.Run("def registered after the ref creates the same edge", func(t *testing.T) {
		g := New()
		require.NoError(t, g.Register(ctx, newTestCell("b", []string{"y"}, []string{"x"})))
		require.NoError(t, g.Register(ctx, newTestCell("a", []string{"x"}, nil)))

		assert.True(t, g.children["a"].Contains("b"))
		assert.True(t, g.parents["b"].Contains("a"))
		assertTransposed(t, g)
	})

	t.Run("no self edge from referring to an own def", func(t *testing.T) {
		g := New()
		require.NoError(t, g.Register(ctx, newTestCell("a", []string{"x"}, []string{"x"})))

		assert.False(t, g.children["a"].Contains("a"))
		assert.False(t, g.parents["a"].Contains("a"))
	})

	t.Run("duplicate id fails without mutating", func(t *testing.T) {
		g := New()
		require.NoError(t, g.Register(ctx, newTestCell("a", []string{"x"}, nil)))
		err := g.Register(ctx, newTestCell("a", []string{"z"}, nil))
		require.ErrorContains(t, err, "already registered")

		_, ok := g.definitions["z"]
		assert.False(t, ok)
		assert.Len(t, g.order, 1)
	})

	t.Run("sibling defs are symmetric and multiply defined", func(t *testing.T) {
		g := New()
		require.NoError(t, g.Register(ctx, newTestCell("a", []string{"x"}, nil)))
		require.NoError(t, g.Register(ctx, newTestCell("b", []string{"x"}, nil)))

		assert.True(t, g.siblings["a"].Contains("b"))
		assert.True(t, g.siblings["b"].Contains("a"))
		assert.Equal(t, []string{"x"}, g.MultiplyDefined())
	})

	t.Run("restricted def is invisible to a general ref", func(t *testing.T) {
		g := New()
		restricted := newTestCell("r", []string{"tbl"}, nil)
		restricted.Language = cell.LanguageRestricted
		restricted.Variables["tbl"] = []cell.VariableData{{
			Language:     cell.LanguageRestricted,
			RequiredRefs: sets.New[string](),
		}}
		require.NoError(t, g.Register(ctx, restricted))
		require.NoError(t, g.Register(ctx, newTestCell("p", nil, []string{"tbl"})))

		assert.False(t, g.children["r"].Contains("p"))
		assert.False(t, g.parents["p"].Contains("r"))
	})

	t.Run("general def is visible to a restricted ref", func(t *testing.T) {
		g := New()
		require.NoError(t, g.Register(ctx, newTestCell("p", []string{"df"}, nil)))
		restricted := newTestCell("r", nil, []string{"df"})
		restricted.Language = cell.LanguageRestricted
		require.NoError(t, g.Register(ctx, restricted))

		assert.True(t, g.children["p"].Contains("r"))
		assertTransposed(t, g)
	})

	t.Run("inherits staleness from a stale ancestor", func(t *testing.T) {
		g := New()
		parent := newTestCell("a", []string{"x"}, nil)
		require.NoError(t, g.Register(ctx, parent))
		parent.SetStale(true)

		child := newTestCell("b", nil, []string{"x"})
		require.NoError(t, g.Register(ctx, child))
		assert.True(t, child.Stale())
	})

	t.Run("becomes transitively disabled under a disabled ancestor", func(t *testing.T) {
		g := New()
		parent := newTestCell("a", []string{"x"}, nil)
		parent.Config.Disabled = true
		require.NoError(t, g.Register(ctx, parent))

		child := newTestCell("b", nil, []string{"x"})
		require.NoError(t, g.Register(ctx, child))
		assert.Equal(t, cell.StatusDisabledTransitively, child.Status())
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown cell fails", func(t *testing.T) {
		g := New()
		_, err := g.Delete(ctx, "missing")
		assert.ErrorContains(t, err, "not found")
	})

	t.Run("repairs all structures and returns children", func(t *testing.T) {
		g := New()
		require.NoError(t, g.Register(ctx, newTestCell("a", []string{"x"}, nil)))
		require.NoError(t, g.Register(ctx, newTestCell("b", []string{"y"}, []string{"x"})))
		require.NoError(t, g.Register(ctx, newTestCell("c", nil, []string{"y"})))

		children, err := g.Delete(ctx, "a")
		require.NoError(t, err)
		assert.True(t, children.Contains("b"))

		_, ok := g.cells["a"]
		assert.False(t, ok)
		_, ok = g.definitions["x"]
		assert.False(t, ok)
		assert.False(t, g.parents["b"].Contains("a"))
		assert.Equal(t, []cell.ID{"b", "c"}, g.CellIDs())
		assertTransposed(t, g)
	})

	t.Run("removes the deleted cell from sibling sets", func(t *testing.T) {
		g := New()
		require.NoError(t, g.Register(ctx, newTestCell("a", []string{"x"}, nil)))
		require.NoError(t, g.Register(ctx, newTestCell("b", []string{"x"}, nil)))

		_, err := g.Delete(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, 0, g.siblings["b"].Len())
		assert.Empty(t, g.MultiplyDefined())
	})
}

func TestAncestorsAndDescendants(t *testing.T) {
	ctx := context.Background()
	g := New()
	require.NoError(t, g.Register(ctx, newTestCell("a", []string{"x"}, nil)))
	require.NoError(t, g.Register(ctx, newTestCell("b", []string{"y"}, []string{"x"})))
	require.NoError(t, g.Register(ctx, newTestCell("c", nil, []string{"y"})))
	require.NoError(t, g.Register(ctx, newTestCell("lone", nil, nil)))

	t.Run("closures are exclusive of the seed", func(t *testing.T) {
		descendants := g.Descendants("a")
		assert.False(t, descendants.Contains("a"))
		assert.True(t, descendants.Contains("b"))
		assert.True(t, descendants.Contains("c"))

		ancestors := g.Ancestors("c")
		assert.False(t, ancestors.Contains("c"))
		assert.True(t, ancestors.Contains("a"))
		assert.True(t, ancestors.Contains("b"))
	})

	t.Run("isolated cell has empty closures", func(t *testing.T) {
		assert.Equal(t, 0, g.Descendants("lone").Len())
		assert.Equal(t, 0, g.Ancestors("lone").Len())
	})

	t.Run("predicate filters without stopping traversal", func(t *testing.T) {
		result := g.TransitiveClosure(sets.New[cell.ID]("a"), ClosureOptions{
			Predicate: func(c *cell.Cell) bool { return c.ID != "b" },
		})
		assert.False(t, result.Contains("b"))
		assert.True(t, result.Contains("c"), "traversal must pass through excluded cells")
	})
}

func TestInducedSubgraph(t *testing.T) {
	ctx := context.Background()
	g := New()
	require.NoError(t, g.Register(ctx, newTestCell("a", []string{"x"}, nil)))
	require.NoError(t, g.Register(ctx, newTestCell("b", []string{"y"}, []string{"x"})))
	require.NoError(t, g.Register(ctx, newTestCell("c", nil, []string{"x", "y"})))

	parents, children := g.InducedSubgraph(sets.New[cell.ID]("b", "c"))
	assert.Equal(t, 0, parents["b"].Len(), "edge from a must be dropped")
	assert.True(t, parents["c"].Contains("b"))
	assert.True(t, children["b"].Contains("c"))
	assert.Equal(t, 0, children["c"].Len())
}

func TestPath(t *testing.T) {
	ctx := context.Background()
	g := New()
	require.NoError(t, g.Register(ctx, newTestCell("a", []string{"x"}, nil)))
	require.NoError(t, g.Register(ctx, newTestCell("b", []string{"y"}, []string{"x"})))
	require.NoError(t, g.Register(ctx, newTestCell("c", nil, []string{"y"})))

	t.Run("returns a connected edge path", func(t *testing.T) {
		path := g.Path("a", "c")
		require.Len(t, path, 2)
		assert.Equal(t, Edge{Source: "a", Dest: "b"}, path[0])
		assert.Equal(t, Edge{Source: "b", Dest: "c"}, path[1])
	})

	t.Run("same source and destination is empty", func(t *testing.T) {
		assert.Empty(t, g.Path("a", "a"))
	})

	t.Run("unreachable destination is empty", func(t *testing.T) {
		assert.Empty(t, g.Path("c", "a"))
	})
}

func TestIsCellCached(t *testing.T) {
	ctx := context.Background()
	g := New()
	c := cell.New("a", "x = 1\n")
	require.NoError(t, g.Register(ctx, c))

	assert.True(t, g.IsCellCached("a", "x = 1\n"))
	assert.False(t, g.IsCellCached("a", "x = 2\n"))
	assert.False(t, g.IsCellCached("b", "x = 1\n"))
}
