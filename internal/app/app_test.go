package app

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/cellgraph/internal/loader"
)

func writeNotebook(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "notebook.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestApp(t *testing.T, notebook, targetCell string) (*App, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	cfg, err := NewConfig(Config{
		NotebookPath: writeNotebook(t, notebook),
		TargetCell:   targetCell,
		LogFormat:    "json",
		LogLevel:     "error",
	})
	require.NoError(t, err)
	return NewApp(&out, cfg, loader.NewLoader()), &out
}

func TestNewConfig(t *testing.T) {
	_, err := NewConfig(Config{})
	assert.Error(t, err)

	cfg, err := NewConfig(Config{NotebookPath: "nb.hcl"})
	require.NoError(t, err)
	assert.Equal(t, "nb.hcl", cfg.NotebookPath)
}

func TestNewAppPanicsOnBadNotebook(t *testing.T) {
	var out bytes.Buffer
	cfg, err := NewConfig(Config{NotebookPath: "does-not-exist.hcl", LogLevel: "error"})
	require.NoError(t, err)

	assert.Panics(t, func() {
		NewApp(&out, cfg, loader.NewLoader())
	})
}

func TestRun(t *testing.T) {
	notebook := `
cell "a" {
  body {
    x = 2
  }
}

cell "b" {
  body {
    y = x * 10
  }
}
`

	t.Run("computes the last cell by default", func(t *testing.T) {
		app, out := newTestApp(t, notebook, "")
		require.NoError(t, app.Run(context.Background()))

		var result map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		assert.Equal(t, "b", result["cell"])
		assert.Equal(t, float64(20), result["output"])
		assert.Equal(t, map[string]any{"y": float64(20)}, result["defs"])
	})

	t.Run("computes an explicit target cell", func(t *testing.T) {
		app, out := newTestApp(t, notebook, "a")
		require.NoError(t, app.Run(context.Background()))

		var result map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		assert.Equal(t, "a", result["cell"])
		assert.Equal(t, float64(2), result["output"])
	})

	t.Run("unknown target cell fails", func(t *testing.T) {
		app, _ := newTestApp(t, notebook, "zzz")
		assert.ErrorContains(t, app.Run(context.Background()), "not found")
	})

	t.Run("suspending lineage runs through the async entry point", func(t *testing.T) {
		app, out := newTestApp(t, `
cell "a" {
  suspending = true
  body {
    x = 1
  }
}

cell "b" {
  body {
    y = x + 1
  }
}
`, "b")
		require.NoError(t, app.Run(context.Background()))

		var result map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		assert.Equal(t, float64(2), result["output"])
	})

	t.Run("registers every cell in the graph", func(t *testing.T) {
		app, _ := newTestApp(t, notebook, "")
		require.NoError(t, app.Run(context.Background()))
		assert.Len(t, app.Graph().CellIDs(), 2)
	})
}
