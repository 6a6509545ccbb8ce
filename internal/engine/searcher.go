/*
PURPOSE:
  Adapter for the mapper engine's search entry point.
  Runs a full search (or a minimal one-point search) inside a run directory and
  turns the artifacts it leaves behind into a result.RawResult.

REQUIREMENTS:
  User-specified:
  - Free search must go through the engine's own search entry point.
  - The result says explicitly whether the engine handed back a mapping.

  Implementation-discovered:
  - The mapper reads one merged specification (mapper section included).
  - Some mapper builds accept --mapping-file; whether they do is decided once at
    startup (see capability.go), never per call.
  - Engine output is large; send it to a log file in the run directory.
  - With AccelergyVerbose the energy estimator is run again on the same
    specification after the mapper, and its verbose report goes to
    accelergy.log next to the mapper's artifacts.

ARCHITECTURE INTEGRATION:
  - Called by: Runner (free search), Replayer (fallback path)
  - Uses: internal/stats, internal/result

ERROR HANDLING:
  - Launch failures, non-zero exits and unreadable stats are returned wrapped,
    naming the log file.

RELATED FILES:
  - internal/engine/replay.go
  - internal/engine/capability.go
*/

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/daryltucker/mapreplay/internal/output"
	"github.com/daryltucker/mapreplay/internal/result"
	"github.com/daryltucker/mapreplay/internal/stats"
)

// Default binaries and the artifact names they leave in a run directory.
const (
	DefaultStatsFile     = "timeloop-mapper.stats.txt"
	DefaultMappingOutput = "timeloop-mapper.map.yaml"
	DefaultLogFile       = "timeloop-mapper.log"
	DefaultMapperBinary  = "timeloop-mapper"

	DefaultAccelergyBinary = "accelergy"
	AccelergyLogFile       = "accelergy.log"
)

// SearchOptions tweaks a single search call.
type SearchOptions struct {
	// MappingFile pins the search to one mapping. Only honored by searchers whose
	// binary has CapabilityMappingFlag.
	MappingFile string
}

// Searcher is the engine's search entry point.
type Searcher interface {
	Search(ctx context.Context, spec *Specification, runDir string, opts SearchOptions) (*result.RawResult, error)
}

// MapperCLI runs the mapper binary as a child process.
type MapperCLI struct {
	Binary        string
	Capability    Capability
	StatsFile     string
	MappingOutput string
	// AccelergyVerbose runs Accelergy with -v after every successful search.
	AccelergyVerbose bool
	Accelergy        string
	Logger           *slog.Logger
}

func (m *MapperCLI) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return output.Logger
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Search writes the specification into runDir, runs the mapper there and reads
// back its statistics and, if present, its best mapping.
func (m *MapperCLI) Search(ctx context.Context, spec *Specification, runDir string, opts SearchOptions) (*result.RawResult, error) {
	binary := orDefault(m.Binary, DefaultMapperBinary)

	specPath := filepath.Join(runDir, "spec.yaml")
	if err := spec.WriteFile(specPath); err != nil {
		return nil, err
	}

	args := []string{specPath, "-o", runDir}
	if opts.MappingFile != "" {
		if m.Capability != CapabilityMappingFlag {
			return nil, fmt.Errorf("%s does not accept %s", binary, MappingFileFlag)
		}
		args = append(args, MappingFileFlag, opts.MappingFile)
	}

	logPath := filepath.Join(runDir, DefaultLogFile)
	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, err
	}
	defer logFile.Close()

	m.logger().Debug("Running mapper", "binary", binary, "args", args)
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = runDir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s failed: %w (log: %s)", binary, err, logPath)
	}

	st, err := stats.ParseFile(filepath.Join(runDir, orDefault(m.StatsFile, DefaultStatsFile)))
	if err != nil {
		return nil, fmt.Errorf("%s finished without usable statistics: %w (log: %s)", binary, err, logPath)
	}

	if m.AccelergyVerbose {
		if err := m.accelergyVerbose(ctx, specPath, runDir); err != nil {
			return nil, err
		}
	}

	raw := &result.RawResult{Stats: st, Mapping: result.NoMapping, RunDir: runDir}
	mapped, err := os.ReadFile(filepath.Join(runDir, orDefault(m.MappingOutput, DefaultMappingOutput)))
	switch {
	case err == nil:
		raw.Mapping = result.HasMapping(string(mapped))
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}
	return raw, nil
}

// accelergyVerbose writes the estimator's verbose energy report for specPath to
// accelergy.log in runDir.
func (m *MapperCLI) accelergyVerbose(ctx context.Context, specPath, runDir string) error {
	binary := orDefault(m.Accelergy, DefaultAccelergyBinary)
	logPath := filepath.Join(runDir, AccelergyLogFile)
	logFile, err := os.Create(logPath)
	if err != nil {
		return err
	}
	defer logFile.Close()

	args := []string{specPath, "-o", runDir, "-v"}
	m.logger().Debug("Running accelergy", "binary", binary, "args", args)
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = runDir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w (log: %s)", binary, err, logPath)
	}
	return nil
}
