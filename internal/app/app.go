// Package app wires the notebook loader, the dependency graph, the runner,
// and the optional diagnostics emitter into a runnable application.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/cellgraph/internal/cell"
	"github.com/vk/cellgraph/internal/ctxlog"
	"github.com/vk/cellgraph/internal/graph"
	"github.com/vk/cellgraph/internal/loader"
	"github.com/vk/cellgraph/internal/localexecutor"
	"github.com/vk/cellgraph/internal/runner"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
	cells  []*cell.Cell
	graph  *graph.Graph
	runner *runner.Runner
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger and the notebook
// already loaded.
func NewApp(outW io.Writer, cfg *Config, l *loader.Loader) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	cells, err := l.Load(ctx, cfg.NotebookPath)
	if err != nil {
		// A failure to load the notebook is a fatal startup error.
		panic(fmt.Errorf("failed to load notebook: %w", err))
	}
	logger.Debug("Notebook loaded.", "cells", len(cells))

	g := graph.New()
	return &App{
		outW:   outW,
		logger: logger,
		config: cfg,
		cells:  cells,
		graph:  g,
		runner: runner.New(g, localexecutor.New()),
	}
}

// Graph exposes the application's dependency graph, primarily for tests.
func (a *App) Graph() *graph.Graph {
	return a.graph
}
