package cli

import (
	"time"

	"github.com/daryltucker/mapreplay/internal/engine"
	"github.com/daryltucker/mapreplay/internal/model"
	"github.com/spf13/cobra"
)

var (
	replayTarget  targetFlags
	replayMapping string
)

var replayCmd = &cobra.Command{
	Use:   "replay <macro> <layer> --mapping <file>",
	Short: "Evaluate a stored mapping without searching",
	Long: `Evaluates one macro on one layer under a fixed mapping captured earlier with
'search --save-mapping'. The evaluator runs the mapping as is; if it cannot, the
mapper is invoked with a one-point search instead and a warning is logged.`,
	Example: `  mapreplay replay base conv1 --mapping maps/base_conv1.map.txt --var VOLTAGE=0.8`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		applyEngineOverrides()
		vars, err := parseVars(replayTarget.vars)
		if err != nil {
			return err
		}

		runner, err := engine.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		start := time.Now()
		stats, err := runner.Evaluate(cmd.Context(), engine.Request{
			Target:      replayTarget.target(args[0], args[1]),
			Variables:   vars,
			MappingFile: replayMapping,
		})
		if err != nil {
			return err
		}

		report(model.Record{
			Job:         "replay",
			Mode:        model.ModeReplay,
			Macro:       args[0],
			Iso:         replayTarget.iso,
			Layer:       args[1],
			Variables:   vars,
			MappingFile: replayMapping,
		}, stats, start)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayTarget.register(replayCmd)
	replayCmd.Flags().StringVar(&replayMapping, "mapping", "", "Mapping file to evaluate")
	_ = replayCmd.MarkFlagRequired("mapping")
}
