package cli

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/daryltucker/mapreplay/internal/mapping"
	"github.com/daryltucker/mapreplay/internal/output"
	"github.com/spf13/cobra"
)

var formatOut string

var mappingCmd = &cobra.Command{
	Use:   "mapping",
	Short: "Inspect stored mapping files",
}

var validateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Check that mapping files can be replayed",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		failed := 0
		for _, path := range args {
			m, err := mapping.Load(path)
			if err != nil {
				output.Logger.Error("Invalid mapping", "path", path, "error", err)
				failed++
				continue
			}

			fmt.Printf("%s: %d entries\n", path, len(m))
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "  TARGET\tTYPE\tFACTORS\tPERMUTATION")
			for _, e := range m {
				fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", e.Target, e.Type, e.Factors, e.Permutation)
			}
			if err := w.Flush(); err != nil {
				return err
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d mapping files are invalid", failed, len(args))
		}
		return nil
	},
}

var formatCmd = &cobra.Command{
	Use:   "format <file>",
	Short: "Rewrite a valid mapping file in canonical form",
	Long: `Parses a mapping file and writes it back with normalized factors and key order.
Captured files are stored verbatim; use this to tidy a copy before editing it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := mapping.Load(args[0])
		if err != nil {
			return err
		}
		if formatOut == "" {
			data, err := mapping.Marshal(m)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		}
		if _, err := os.Stat(formatOut); err == nil {
			return fmt.Errorf("%s already exists", formatOut)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return mapping.Write(formatOut, m)
	},
}

func init() {
	formatCmd.Flags().StringVarP(&formatOut, "output", "o", "", "Write to this new file instead of stdout")
	mappingCmd.AddCommand(validateCmd, formatCmd)
	rootCmd.AddCommand(mappingCmd)
}
