/*
PURPOSE:
  Defines the root Cobra command for the mapreplay CLI.
  Handles global flags, configuration loading and logger setup.

REQUIREMENTS:
  User-specified:
  - Provide a CLI interface.
  - Support global flags like --config and --log-level.

  Implementation-discovered:
  - Needs to expose an Execute() function for main.go.
  - Every subcommand needs the loaded config, so it is loaded once in
    PersistentPreRunE.
  - Ctrl-C must stop running engine subprocesses; the command context is
    cancelled on SIGINT/SIGTERM.

ARCHITECTURE INTEGRATION:
  - Called by: cmd/mapreplay/main.go
  - Calls: Child commands (run, search, replay, list-maps, mapping)
  - Modifies: package-level cfg, output.Logger

ERROR HANDLING:
  - Returns error to main.go for exit code handling.

IMPLEMENTATION RULES:
  - Use `PersistentFlags()` for flags available to all subcommands.
  - Keep Run logic in subcommands, Root is usually empty or helps.

USAGE:
  Called by main.go.

RELATED FILES:
  - cmd/mapreplay/main.go
  - internal/config/config.go
*/

package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/daryltucker/mapreplay/internal/config"
	"github.com/daryltucker/mapreplay/internal/output"
	"github.com/spf13/cobra"
)

var (
	// cfgFile stores the path to the config file (if specified via flag)
	cfgFile  string
	logLevel string

	// cfg is loaded before any subcommand runs.
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "mapreplay",
		Short: "Capture and replay DNN accelerator mappings",
		Long: `Drives the mapper engine to search for mappings of compute-in-memory macros,
captures the best mapping a search finds and replays stored mappings for
repeatable evaluation. Use 'run --help' for batch options.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if logLevel != "" {
				loaded.LogLevel = logLevel
			}
			output.Configure(loaded.LogLevel, loaded.LogFormat, os.Stderr)
			cfg = loaded
			return nil
		},
	}
)

// Execute executes the root command. The context is cancelled on interrupt.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./mapreplay.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
}
