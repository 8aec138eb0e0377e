// Package localexecutor provides a concrete, in-process implementation of
// the runner.Executor contract: it evaluates each cell's definition
// expressions against the run's namespace using the HCL expression engine.
package localexecutor

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/vk/cellgraph/internal/cell"
	"github.com/vk/cellgraph/internal/ctxlog"
	"github.com/vk/cellgraph/internal/graph"
	"github.com/vk/cellgraph/internal/runner"
)

// Executor evaluates cell bodies locally. Definitions evaluate in source
// order, each observing the namespace as left by its predecessors; the
// cell's output is the value of its last definition.
type Executor struct{}

// New creates a new local executor.
func New() *Executor {
	return &Executor{}
}

// ExecuteCell evaluates the cell synchronously.
func (e *Executor) ExecuteCell(ctx context.Context, c *cell.Cell, ns runner.Namespace, g *graph.Graph) (any, error) {
	return e.run(ctx, c, ns, false)
}

// ExecuteCellAsync evaluates the cell cooperatively, checking for context
// cancellation between definitions.
func (e *Executor) ExecuteCellAsync(ctx context.Context, c *cell.Cell, ns runner.Namespace, g *graph.Graph) (any, error) {
	return e.run(ctx, c, ns, true)
}

func (e *Executor) run(ctx context.Context, c *cell.Cell, ns runner.Namespace, suspendable bool) (any, error) {
	logger := ctxlog.FromContext(ctx).With("cell_id", c.ID)
	if err := c.SetStatus(cell.StatusRunning); err != nil {
		return nil, err
	}

	var output any
	for _, def := range c.Body {
		if suspendable && ctx.Err() != nil {
			_ = c.SetStatus(cell.StatusCancelled)
			return nil, ctx.Err()
		}

		evalCtx, err := buildEvalContext(ns)
		if err != nil {
			_ = c.SetStatus(cell.StatusErrored)
			return nil, fmt.Errorf("building eval context for %s.%s: %w", c.ID, def.Name, err)
		}

		value, diags := def.Expr.Value(evalCtx)
		if diags.HasErrors() {
			_ = c.SetStatus(cell.StatusErrored)
			return nil, fmt.Errorf("evaluating %s.%s: %w", c.ID, def.Name, diags)
		}

		goValue, err := ctyValueToInterface(value)
		if err != nil {
			_ = c.SetStatus(cell.StatusErrored)
			return nil, fmt.Errorf("converting %s.%s: %w", c.ID, def.Name, err)
		}
		ns[def.Name] = goValue
		output = goValue
		logger.Debug("Evaluated definition.", "name", def.Name)
	}

	// Names the cell explicitly deletes from its scope disappear from the
	// namespace once the cell has run.
	for name := range c.DeletedRefs {
		delete(ns, name)
	}

	if err := c.SetStatus(cell.StatusIdle); err != nil {
		return nil, err
	}
	c.SetStale(false)
	return output, nil
}

// buildEvalContext exposes the namespace to HCL expressions as variables.
func buildEvalContext(ns runner.Namespace) (*hcl.EvalContext, error) {
	variables := make(map[string]cty.Value, len(ns))
	for name, value := range ns {
		ctyValue, err := interfaceToCtyValue(value)
		if err != nil {
			return nil, fmt.Errorf("namespace value %q: %w", name, err)
		}
		variables[name] = ctyValue
	}
	return &hcl.EvalContext{Variables: variables}, nil
}

// interfaceToCtyValue converts a Go value into its cty equivalent.
func interfaceToCtyValue(value any) (cty.Value, error) {
	if value == nil {
		return cty.NullVal(cty.DynamicPseudoType), nil
	}
	if ctyValue, ok := value.(cty.Value); ok {
		return ctyValue, nil
	}
	impliedType, err := gocty.ImpliedType(value)
	if err != nil {
		return cty.NilVal, err
	}
	return gocty.ToCtyValue(value, impliedType)
}

// ctyValueToInterface converts a cty.Value to a plain Go value.
func ctyValueToInterface(val cty.Value) (any, error) {
	if !val.IsKnown() || val.IsNull() {
		return nil, nil
	}
	if val.Type().IsPrimitiveType() {
		switch val.Type() {
		case cty.String:
			return val.AsString(), nil
		case cty.Number:
			f, _ := val.AsBigFloat().Float64()
			return f, nil
		case cty.Bool:
			return val.True(), nil
		default:
			return nil, fmt.Errorf("unsupported primitive type: %s", val.Type().FriendlyName())
		}
	}
	if val.Type().IsObjectType() || val.Type().IsMapType() {
		out := make(map[string]any)
		for it := val.ElementIterator(); it.Next(); {
			k, v := it.Element()
			converted, err := ctyValueToInterface(v)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = converted
		}
		return out, nil
	}
	if val.Type().IsTupleType() || val.Type().IsListType() || val.Type().IsSetType() {
		var out []any
		for it := val.ElementIterator(); it.Next(); {
			_, v := it.Element()
			converted, err := ctyValueToInterface(v)
			if err != nil {
				return nil, err
			}
			out = append(out, converted)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported cty.Type for conversion: %s", val.Type().FriendlyName())
}
