/*
PURPOSE:
  Evaluates one macro on one layer: builds the specification, applies the fixed
  structural tweaks, then dispatches to a free search or a fixed-mapping replay.

REQUIREMENTS:
  User-specified:
  - Caller variables are rebound, not merged: defaults the caller did not ask for
    are cleared.
  - The compute macro is always marked as supporting power gating, before any
    caller hook runs.
  - Errors carry the macro / workload / variable context and are never swallowed.

  Implementation-discovered:
  - No retries here; the only retry is the Replayer's fallback.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine/runner.go (batch), internal/cli (search, replay)
  - Uses: SpecLoader, Searcher, Replayer, internal/rundir, internal/result

ERROR HANDLING:
  - Every failure is logged with context and returned as *EvaluationError.
*/

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/daryltucker/mapreplay/internal/output"
	"github.com/daryltucker/mapreplay/internal/result"
	"github.com/daryltucker/mapreplay/internal/rundir"
)

// Default systems used when a request leaves System empty.
const (
	DefaultSystem      = "ws_dummy_buffer_many_macro"
	QuickRunSystem     = "ws_dummy_buffer_one_macro"
	DefaultMacroLeaf   = "macro"
	PowerGatingAttrKey = "has_power_gating"
)

// ErrMacroLeafMissing is returned when the architecture has no compute macro leaf.
var ErrMacroLeafMissing = errors.New("architecture has no macro leaf")

// Hook adjusts the specification right before it is evaluated.
type Hook func(spec *Specification) error

// Request is one evaluation.
type Request struct {
	Target
	Variables map[string]any
	// MappingFile switches from free search to replay.
	MappingFile string
	Hook        Hook
}

// EvaluationError wraps any failure of Runner.Evaluate with its call context.
type EvaluationError struct {
	Macro       string
	Iso         string
	Layer       string
	Variables   map[string]any
	MappingFile string
	Err         error
}

func (e *EvaluationError) Error() string {
	msg := fmt.Sprintf("evaluate macro %s (iso %s) on layer %s with variables %v", e.Macro, e.Iso, e.Layer, e.Variables)
	if e.MappingFile != "" {
		msg += " using mapping " + e.MappingFile
	}
	return msg + ": " + e.Err.Error()
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// Runner ties the loader, searcher and replayer together.
type Runner struct {
	Loader   SpecLoader
	Searcher Searcher
	Replayer *Replayer
	Dirs     *rundir.Allocator
	// MacroLeaf names the architecture leaf marked for power gating.
	MacroLeaf string
	Logger    *slog.Logger
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return output.Logger
}

// Evaluate builds the specification for req and runs it. A ctx without a worker
// id gets a fresh one, so concurrent callers never share a run directory.
func (r *Runner) Evaluate(ctx context.Context, req Request) (*result.MacroOutputStats, error) {
	ctx = rundir.EnsureWorker(ctx)
	if req.System == "" {
		req.System = DefaultSystem
	}
	res, err := r.evaluate(ctx, req, true)
	if err != nil {
		return nil, r.fail(req, err)
	}
	return res, nil
}

// QuickRun searches a single macro with maximum utilization and no power-gating
// tweak.
func (r *Runner) QuickRun(ctx context.Context, macro string, variables map[string]any) (*result.MacroOutputStats, error) {
	ctx = rundir.EnsureWorker(ctx)
	vars := make(map[string]any, len(variables)+1)
	for k, v := range variables {
		vars[k] = v
	}
	if _, ok := vars[MaxUtilizationVar]; !ok {
		vars[MaxUtilizationVar] = true
	}
	req := Request{
		Target:    Target{Macro: macro, System: QuickRunSystem, MaxUtilization: true},
		Variables: vars,
	}
	res, err := r.evaluate(ctx, req, false)
	if err != nil {
		return nil, r.fail(req, err)
	}
	return res, nil
}

func (r *Runner) evaluate(ctx context.Context, req Request, powerGate bool) (*result.MacroOutputStats, error) {
	spec, err := r.Loader.Load(ctx, req.Target)
	if err != nil {
		return nil, err
	}

	if powerGate {
		leafName := orDefault(r.MacroLeaf, DefaultMacroLeaf)
		leaf, ok := spec.Architecture.Leaf(leafName)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMacroLeafMissing, leafName)
		}
		leaf.SetAttribute(PowerGatingAttrKey, true)
	}

	vars := req.Variables
	if vars == nil {
		vars = map[string]any{}
	}
	if spec.Variables == nil {
		spec.Variables = NewVariables()
	}
	spec.Variables.Rebind(vars)

	if req.Hook != nil {
		if err := req.Hook(spec); err != nil {
			return nil, fmt.Errorf("specification hook: %w", err)
		}
	}

	if req.MappingFile != "" {
		return r.Replayer.Replay(ctx, spec, req.MappingFile)
	}

	dir, err := r.Dirs.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := r.Searcher.Search(ctx, spec, dir, SearchOptions{})
	if err != nil {
		return nil, err
	}
	return result.Wrap(raw), nil
}

func (r *Runner) fail(req Request, err error) error {
	iso := req.Iso
	if iso == "" {
		iso = req.Macro
	}
	r.logger().Error("Error processing specification",
		"macro", req.Macro,
		"iso", iso,
		"layer", req.Layer,
		"variables", req.Variables,
		"mapping", req.MappingFile,
		"error", err,
	)
	return &EvaluationError{
		Macro:       req.Macro,
		Iso:         iso,
		Layer:       req.Layer,
		Variables:   req.Variables,
		MappingFile: req.MappingFile,
		Err:         err,
	}
}
