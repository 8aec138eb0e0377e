package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vk/cellgraph/internal/cell"
	"github.com/vk/cellgraph/internal/ctxlog"
	"github.com/vk/cellgraph/internal/events"
)

// Run executes the main application logic: register every loaded cell,
// surface graph warnings, optionally publish a diagnostics snapshot, then
// compute the target cell and print its definitions.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	for _, c := range a.cells {
		if err := a.graph.Register(ctx, c); err != nil {
			return fmt.Errorf("failed to build dependency graph: %w", err)
		}
	}
	a.logger.Debug("Dependency graph built.", "cell_count", len(a.cells))

	a.reportWarnings()

	if a.config.EventsURL != "" {
		if err := a.emitSnapshot(ctx); err != nil {
			// Diagnostics are best-effort; a dead endpoint must not block
			// the computation itself.
			a.logger.Warn("Failed to publish diagnostics snapshot.", "error", err)
		}
	}

	target, err := a.targetCell()
	if err != nil {
		return err
	}

	a.logger.Info("Computing cell.", "cell_id", target)
	output, defs, err := a.compute(ctx, target)
	if err != nil {
		return fmt.Errorf("computation failed: %w", err)
	}
	a.logger.Info("Computation finished.", "cell_id", target)

	return a.printResult(target, output, defs)
}

// reportWarnings logs the graph-state warnings that are queryable facts
// rather than errors: name collisions, dangling deleted refs, and cycles.
func (a *App) reportWarnings() {
	if multiply := a.graph.MultiplyDefined(); len(multiply) > 0 {
		a.logger.Warn("Notebook has multiply defined names.", "names", multiply)
	}
	if deleted := a.graph.DeletedNonlocalRefs(); len(deleted) > 0 {
		a.logger.Warn("Notebook deletes names defined elsewhere.", "names", deleted)
	}
	for _, cyc := range a.graph.Cycles() {
		a.logger.Warn("Notebook has a dependency cycle.", "length", len(cyc))
	}
}

func (a *App) emitSnapshot(ctx context.Context) error {
	emitter, err := events.Dial(ctx, events.Config{
		URL:       a.config.EventsURL,
		Namespace: a.config.EventsNamespace,
	})
	if err != nil {
		return err
	}
	defer emitter.Close()
	return emitter.EmitSnapshot(ctx, events.BuildSnapshot(a.graph))
}

func (a *App) targetCell() (cell.ID, error) {
	if a.config.TargetCell != "" {
		id := cell.ID(a.config.TargetCell)
		if _, ok := a.graph.Cell(id); !ok {
			return "", fmt.Errorf("target cell %s not found in notebook", id)
		}
		return id, nil
	}
	if len(a.cells) == 0 {
		return "", fmt.Errorf("notebook contains no cells")
	}
	return a.cells[len(a.cells)-1].ID, nil
}

// compute picks the suspending-aware entry point when the target's lineage
// requires it.
func (a *App) compute(ctx context.Context, target cell.ID) (any, map[string]any, error) {
	suspending, err := a.runner.IsSuspending(target)
	if err != nil {
		return nil, nil, err
	}
	if suspending {
		a.logger.Debug("Target lineage is suspending; using the suspending entry point.")
		return a.runner.RunCellAsync(ctx, target, nil)
	}
	return a.runner.RunCell(ctx, target, nil)
}

func (a *App) printResult(target cell.ID, output any, defs map[string]any) error {
	result := map[string]any{
		"cell":   target,
		"output": output,
		"defs":   defs,
	}
	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	if _, err := fmt.Fprintln(a.outW, string(encoded)); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	return nil
}
