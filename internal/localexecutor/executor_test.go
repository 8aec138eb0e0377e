package localexecutor

import (
	"context"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/cellgraph/internal/cell"
	"github.com/vk/cellgraph/internal/runner"
)

// parseExpr parses an HCL expression for use in a cell body.
func parseExpr(t *testing.T, src string) hcl.Expression {
	t.Helper()
	expr, diags := hclsyntax.ParseExpression([]byte(src), "test.hcl", hcl.InitialPos)
	require.False(t, diags.HasErrors(), diags.Error())
	return expr
}

// newBodyCell builds a cell whose body is the given ordered name=expression
// pairs.
func newBodyCell(t *testing.T, id cell.ID, defs ...[2]string) *cell.Cell {
	t.Helper()
	c := cell.New(id, "test code")
	for _, pair := range defs {
		c.Defs.Add(pair[0])
		c.Body = append(c.Body, cell.Def{Name: pair[0], Expr: parseExpr(t, pair[1])})
	}
	return c
}

func TestExecuteCell(t *testing.T) {
	ctx := context.Background()
	e := New()

	t.Run("evaluates definitions in order against the namespace", func(t *testing.T) {
		c := newBodyCell(t, "a", [2]string{"x", "1 + 1"}, [2]string{"y", "x * 10"})
		ns := make(runner.Namespace)

		output, err := e.ExecuteCell(ctx, c, ns, nil)
		require.NoError(t, err)
		assert.Equal(t, float64(20), output, "output is the last definition's value")
		assert.Equal(t, float64(2), ns["x"])
		assert.Equal(t, float64(20), ns["y"])
	})

	t.Run("reads upstream values from the namespace", func(t *testing.T) {
		c := newBodyCell(t, "b", [2]string{"doubled", "base * 2"})
		ns := runner.Namespace{"base": 21}

		output, err := e.ExecuteCell(ctx, c, ns, nil)
		require.NoError(t, err)
		assert.Equal(t, float64(42), output)
	})

	t.Run("successful run ends idle and not stale", func(t *testing.T) {
		c := newBodyCell(t, "a", [2]string{"x", "1"})
		c.SetStale(true)

		_, err := e.ExecuteCell(ctx, c, make(runner.Namespace), nil)
		require.NoError(t, err)
		assert.Equal(t, cell.StatusIdle, c.Status())
		assert.False(t, c.Stale())
	})

	t.Run("missing variable errors the cell", func(t *testing.T) {
		c := newBodyCell(t, "a", [2]string{"x", "nonexistent + 1"})

		_, err := e.ExecuteCell(ctx, c, make(runner.Namespace), nil)
		require.Error(t, err)
		assert.Equal(t, cell.StatusErrored, c.Status())
	})

	t.Run("string and bool values survive conversion", func(t *testing.T) {
		c := newBodyCell(t, "a",
			[2]string{"s", `"hello"`},
			[2]string{"b", "true"},
			[2]string{"l", "[1, 2]"},
		)
		ns := make(runner.Namespace)

		_, err := e.ExecuteCell(ctx, c, ns, nil)
		require.NoError(t, err)
		assert.Equal(t, "hello", ns["s"])
		assert.Equal(t, true, ns["b"])
		assert.Equal(t, []any{float64(1), float64(2)}, ns["l"])
	})

	t.Run("deleted refs vanish from the namespace after the run", func(t *testing.T) {
		c := newBodyCell(t, "a", [2]string{"x", "1"})
		c.DeletedRefs.Add("gone")
		ns := runner.Namespace{"gone": 99}

		_, err := e.ExecuteCell(ctx, c, ns, nil)
		require.NoError(t, err)
		_, ok := ns["gone"]
		assert.False(t, ok)
	})
}

func TestExecuteCellAsync(t *testing.T) {
	e := New()

	t.Run("runs normally with a live context", func(t *testing.T) {
		c := newBodyCell(t, "a", [2]string{"x", "1 + 2"})
		ns := make(runner.Namespace)

		output, err := e.ExecuteCellAsync(context.Background(), c, ns, nil)
		require.NoError(t, err)
		assert.Equal(t, float64(3), output)
	})

	t.Run("cancelled context cancels the cell", func(t *testing.T) {
		c := newBodyCell(t, "a", [2]string{"x", "1"})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := e.ExecuteCellAsync(ctx, c, make(runner.Namespace), nil)
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, cell.StatusCancelled, c.Status())
	})
}
