/*
PURPOSE:
  Defines the 'run' subcommand.
  Executes every job listed in the config as one batch.

REQUIREMENTS:
  User-specified:
  - Run the configured searches and replays.
  - specific flags for overrides.

  Implementation-discovered:
  - Apply flag overrides to config.
  - A replay that depends on a mapping saved by a search must be in a later
    batch; jobs in one batch are unordered.

ARCHITECTURE INTEGRATION:
  - Calls: internal/engine.Run()
  - Uses: internal/config (loaded by root.go)

ERROR HANDLING:
  - Returns error if the engine cannot be set up or any job failed.

IMPLEMENTATION RULES:
  - Setup flags in init().
  - Logic: Config (root) -> Override -> Engine.Run.

USAGE:
  mapreplay run -o ./results --workers 8

RELATED FILES:
  - internal/cli/root.go
  - internal/engine/runner.go
*/

package cli

import (
	"fmt"

	"github.com/daryltucker/mapreplay/internal/engine"
	"github.com/spf13/cobra"
)

var (
	outputOverride    string
	workersOverride   int
	mapperOverride    string
	evaluatorOverride string
	sqliteOverride    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the configured batch of searches and replays",
	Long: `Executes every job in the config file on a bounded worker pool.
Each job is either:
1. Search: the mapper explores mappings for the macro and layer. With
   save_mapping set, the best mapping found is captured to that path.
2. Replay: the stored mapping_file is evaluated as is, without searching.

Every job is written to CSV and JSON-lines files in the output directory (and to
SQLite when sqlite_file is set). Jobs in one batch run in no particular order, so
replays of mappings saved in the same batch belong in a second run.`,
	Example: `  # Run with defaults (uses mapreplay.yaml)
  mapreplay run

  # Override output directory and pool size
  mapreplay run -o ./results --workers 8

  # Use a custom evaluator build
  mapreplay run --evaluator /opt/timeloop/bin/timeloop-model`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		applyEngineOverrides()
		if outputOverride != "" {
			cfg.OutputDir = outputOverride
		}
		if workersOverride > 0 {
			cfg.Workers = workersOverride
		}
		if sqliteOverride != "" {
			cfg.SQLiteFile = sqliteOverride
		}
		if len(cfg.Jobs) == 0 {
			return fmt.Errorf("no jobs configured (add a jobs: list to the config file)")
		}

		return engine.Run(cmd.Context(), cfg)
	},
}

// applyEngineOverrides copies the engine binary flags into cfg.
func applyEngineOverrides() {
	if mapperOverride != "" {
		cfg.Engine.MapperBinary = mapperOverride
	}
	if evaluatorOverride != "" {
		cfg.Engine.EvaluatorBinary = evaluatorOverride
	}
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&outputOverride, "output-dir", "o", "", "Output directory for results (CSV/JSON)")
	runCmd.Flags().IntVar(&workersOverride, "workers", 0, "Number of concurrent engine invocations")
	runCmd.Flags().StringVar(&sqliteOverride, "sqlite", "", "Also append results to this SQLite database")

	for _, c := range []*cobra.Command{runCmd, searchCmd, replayCmd} {
		c.Flags().StringVar(&mapperOverride, "mapper", "", "Mapper binary (overrides config)")
		c.Flags().StringVar(&evaluatorOverride, "evaluator", "", "Evaluator binary (overrides config)")
	}
}
