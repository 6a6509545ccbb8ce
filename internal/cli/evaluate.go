package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/daryltucker/mapreplay/internal/engine"
	"github.com/daryltucker/mapreplay/internal/model"
	"github.com/daryltucker/mapreplay/internal/output"
	"github.com/daryltucker/mapreplay/internal/result"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// targetFlags are shared by search and replay.
type targetFlags struct {
	iso    string
	tile   string
	chip   string
	system string
	dnn    string
	vars   []string
}

func (f *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.iso, "iso", "", "Iso-area/iso-throughput variant of the macro (defaults to the macro)")
	cmd.Flags().StringVar(&f.tile, "tile", "", "Tile template")
	cmd.Flags().StringVar(&f.chip, "chip", "", "Chip template")
	cmd.Flags().StringVar(&f.system, "system", "", "System template (default "+engine.DefaultSystem+")")
	cmd.Flags().StringVar(&f.dnn, "dnn", "", "DNN the layer belongs to")
	cmd.Flags().StringArrayVar(&f.vars, "var", nil, "Variable binding KEY=VALUE (repeatable; values are parsed as YAML scalars)")
}

func (f *targetFlags) target(macro, layer string) engine.Target {
	return engine.Target{
		Macro:  macro,
		Iso:    f.iso,
		Tile:   f.tile,
		Chip:   f.chip,
		System: f.system,
		DNN:    f.dnn,
		Layer:  layer,
	}
}

// parseVars turns KEY=VALUE pairs into a variable map. Values go through YAML so
// numbers and booleans keep their types.
func parseVars(pairs []string) (map[string]any, error) {
	vars := make(map[string]any, len(pairs))
	for _, p := range pairs {
		key, raw, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --var %q (want KEY=VALUE)", p)
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", key, err)
		}
		vars[key] = v
	}
	return vars, nil
}

// report prints one evaluation as a summary table.
func report(rec model.Record, stats *result.MacroOutputStats, start time.Time) {
	rec.Timestamp = start
	rec.Duration = time.Since(start)
	if stats != nil {
		if cfg.ClearZeros {
			stats.ClearZeroEnergies()
			stats.ClearZeroAreas()
		}
		rec.Fill(stats)
	}
	output.PrintSummary(os.Stdout, []model.Record{rec})
	if stats != nil {
		output.Logger.Info("Run directory", "path", stats.RunDir)
	}
}
