package cli

import (
	"time"

	"github.com/daryltucker/mapreplay/internal/engine"
	"github.com/daryltucker/mapreplay/internal/mapstore"
	"github.com/daryltucker/mapreplay/internal/model"
	"github.com/daryltucker/mapreplay/internal/output"
	"github.com/daryltucker/mapreplay/internal/result"
	"github.com/spf13/cobra"
)

var (
	searchTarget targetFlags
	saveMapping  string
	quickRun     bool
	accVerbose   bool
)

var searchCmd = &cobra.Command{
	Use:   "search <macro> [layer]",
	Short: "Search mappings for one macro and layer",
	Long: `Runs the mapper's own search for one macro on one layer. With --save-mapping
the best mapping found is captured to a file that 'replay' can evaluate later.

--quick evaluates the macro alone at maximum utilization, without a layer.
--accelergy-verbose re-runs Accelergy after the search and keeps its verbose
report in accelergy.log in the run directory.`,
	Example: `  mapreplay search base conv1 --var VOLTAGE=0.8 --save-mapping maps/base_conv1.map.txt
  mapreplay search base --quick`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		applyEngineOverrides()
		if accVerbose {
			cfg.Engine.AccelergyVerbose = true
		}
		vars, err := parseVars(searchTarget.vars)
		if err != nil {
			return err
		}
		macro, layer := args[0], ""
		if len(args) > 1 {
			layer = args[1]
		}

		runner, err := engine.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		start := time.Now()
		var stats *result.MacroOutputStats
		if quickRun {
			stats, err = runner.QuickRun(cmd.Context(), macro, vars)
		} else {
			stats, err = runner.Evaluate(cmd.Context(), engine.Request{
				Target:    searchTarget.target(macro, layer),
				Variables: vars,
			})
		}
		if err != nil {
			return err
		}

		rec := model.Record{Job: "search", Mode: model.ModeSearch, Macro: macro, Iso: searchTarget.iso, Layer: layer, Variables: vars}
		if saveMapping != "" {
			store := &mapstore.Store{Roots: cfg.MappingRoots(), Suffix: cfg.MapSuffix}
			ok, err := store.Capture(stats, saveMapping)
			if err != nil {
				return err
			}
			if ok {
				rec.SavedTo = saveMapping
				output.Logger.Info("Saved mapping", "path", saveMapping)
			}
		}
		report(rec, stats, start)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchTarget.register(searchCmd)
	searchCmd.Flags().StringVar(&saveMapping, "save-mapping", "", "Capture the best mapping found to this file")
	searchCmd.Flags().BoolVar(&quickRun, "quick", false, "Evaluate the macro alone at maximum utilization")
	searchCmd.Flags().BoolVar(&accVerbose, "accelergy-verbose", false, "Also write a verbose Accelergy energy report (accelergy.log) to the run directory")
}
