package engine

import (
	"context"

	"github.com/daryltucker/mapreplay/internal/config"
	"github.com/daryltucker/mapreplay/internal/output"
	"github.com/daryltucker/mapreplay/internal/rundir"
)

// New wires a Runner from configuration. The mapper's capability is resolved here,
// once, and shared by the searcher and the replayer.
func New(ctx context.Context, cfg *config.Config) (*Runner, error) {
	capability, err := ResolveCapability(ctx, cfg.Engine.Capability, cfg.Engine.MapperBinary)
	if err != nil {
		return nil, err
	}
	output.Logger.Debug("Resolved mapper capability", "binary", cfg.Engine.MapperBinary, "capability", capability)

	dirs := rundir.New(cfg.Root)
	searcher := &MapperCLI{
		Binary:        cfg.Engine.MapperBinary,
		Capability:    capability,
		StatsFile:     cfg.Engine.StatsFile,
		MappingOutput: cfg.Engine.MappingOutput,

		AccelergyVerbose: cfg.Engine.AccelergyVerbose,
		Accelergy:        cfg.Engine.AccelergyBinary,
	}
	return &Runner{
		Loader:   &FileLoader{ModelsDir: cfg.ModelsPath(), Top: cfg.TopTemplate},
		Searcher: searcher,
		Replayer: &Replayer{
			Evaluator:  cfg.Engine.EvaluatorBinary,
			StatsFile:  cfg.Engine.StatsFile,
			Dirs:       dirs,
			Searcher:   searcher,
			Capability: capability,
		},
		Dirs:      dirs,
		MacroLeaf: cfg.Engine.MacroLeaf,
	}, nil
}
