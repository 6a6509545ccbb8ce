/*
PURPOSE:
  Evaluates one fixed, previously captured mapping without searching.

REQUIREMENTS:
  User-specified:
  - Primary path: run the command-line evaluator on spec + minimal mapper config +
    mapping inside an isolated run directory, then parse its statistics.
  - Fallback path: if the evaluator cannot be launched, exits non-zero or leaves
    no statistics, run the engine's search entry point with a one-point search.
  - Failures of the primary path are logged (with stdout/stderr) and never surface
    on their own; failures of the fallback are returned.

  Implementation-discovered:
  - The fallback only pins the mapping when the mapper has CapabilityMappingFlag.
    Otherwise it relies on the one-point search config and says so in the log.
  - The fallback reuses the same run directory, wiped first.

ARCHITECTURE INTEGRATION:
  - Called by: Runner.Evaluate when a mapping file is given
  - Uses: internal/rundir, internal/stats, internal/result, Searcher

ERROR HANDLING:
  - Filesystem errors while staging inputs are returned (not a fallback trigger).
  - Context cancellation is returned as is.

RELATED FILES:
  - internal/engine/searcher.go
*/

package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/daryltucker/mapreplay/internal/output"
	"github.com/daryltucker/mapreplay/internal/result"
	"github.com/daryltucker/mapreplay/internal/rundir"
	"github.com/daryltucker/mapreplay/internal/stats"
)

// Replayer drives the engine to evaluate a fixed mapping.
type Replayer struct {
	// Evaluator is the command-line evaluator, called as
	// <evaluator> <spec> <mapper> <mapping> -o <dir>.
	Evaluator string
	StatsFile string
	Dirs      *rundir.Allocator
	// Searcher is the fallback entry point.
	Searcher   Searcher
	Capability Capability
	Logger     *slog.Logger
}

func (r *Replayer) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return output.Logger
}

// Replay evaluates spec under the mapping stored at mappingFile. The primary and
// fallback paths share the run directory of ctx's worker; a ctx without one gets a
// fresh worker id.
func (r *Replayer) Replay(ctx context.Context, spec *Specification, mappingFile string) (*result.MacroOutputStats, error) {
	ctx = rundir.EnsureWorker(ctx)
	dir, err := r.Dirs.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := r.evaluate(ctx, spec, mappingFile, dir)
	if err == nil {
		return result.Wrap(raw), nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if !isFallbackTrigger(err) {
		return nil, err
	}

	r.logger().Warn("Falling back to the mapper search entry point", "mapping", mappingFile, "reason", err)
	return r.fallback(ctx, spec, mappingFile)
}

// evaluatorError marks failures of the subprocess path that send Replay to the
// fallback.
type evaluatorError struct{ err error }

func (e *evaluatorError) Error() string { return e.err.Error() }
func (e *evaluatorError) Unwrap() error { return e.err }

func isFallbackTrigger(err error) bool {
	_, ok := err.(*evaluatorError)
	return ok
}

func (r *Replayer) evaluate(ctx context.Context, spec *Specification, mappingFile, dir string) (*result.RawResult, error) {
	specPath := filepath.Join(dir, "spec.yaml")
	mapperPath := filepath.Join(dir, "mapper.yaml")
	mappingPath := filepath.Join(dir, "mapping.yaml")

	if err := spec.WriteFile(specPath); err != nil {
		return nil, err
	}
	if err := MinimalSearch().WriteFile(mapperPath); err != nil {
		return nil, err
	}
	if err := copyFile(mappingFile, mappingPath); err != nil {
		return nil, err
	}

	evaluator := orDefault(r.Evaluator, DefaultMapperBinary)
	args := []string{specPath, mapperPath, mappingPath, "-o", dir}
	r.logger().Info("Running evaluator", "binary", evaluator, "dir", dir)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, evaluator, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		r.logger().Error("Evaluator failed",
			"binary", evaluator,
			"error", err,
			"stdout", stdout.String(),
			"stderr", stderr.String(),
		)
		return nil, &evaluatorError{fmt.Errorf("%s: %w", evaluator, err)}
	}
	r.logger().Debug("Evaluator finished", "stdout", stdout.String())

	statsPath := filepath.Join(dir, orDefault(r.StatsFile, DefaultStatsFile))
	if _, err := os.Stat(statsPath); err != nil {
		r.logger().Warn("Statistics file not found after evaluator run", "path", statsPath)
		return nil, &evaluatorError{fmt.Errorf("no statistics at %s: %w", statsPath, err)}
	}
	st, err := stats.ParseFile(statsPath)
	if err != nil {
		r.logger().Error("Unreadable statistics after evaluator run", "path", statsPath, "error", err)
		return nil, &evaluatorError{err}
	}
	return &result.RawResult{Stats: st, Mapping: result.NoMapping, RunDir: dir}, nil
}

func (r *Replayer) fallback(ctx context.Context, spec *Specification, mappingFile string) (*result.MacroOutputStats, error) {
	if r.Searcher == nil {
		return nil, fmt.Errorf("evaluator failed and no fallback searcher is configured")
	}
	dir, err := r.Dirs.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	spec.Mapper = MinimalSearch()
	var opts SearchOptions
	if r.Capability == CapabilityMappingFlag {
		opts.MappingFile = filepath.Join(dir, "mapping.yaml")
		if err := copyFile(mappingFile, opts.MappingFile); err != nil {
			return nil, err
		}
	} else {
		r.logger().Warn("Mapper cannot pin a mapping; fallback result comes from a one-point search and may not match the requested mapping",
			"mapping", mappingFile, "capability", r.Capability)
	}

	raw, err := r.Searcher.Search(ctx, spec, dir, opts)
	if err != nil {
		return nil, err
	}
	return result.Wrap(raw), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open mapping %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy mapping to %s: %w", dst, err)
	}
	return out.Close()
}
