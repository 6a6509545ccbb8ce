/*
PURPOSE:
  Defines the 'list-maps' subcommand.
  Shows the mapping dumps a capture would choose from, newest first.

REQUIREMENTS:
  User-specified:
  - List captured mapping candidates.

  Implementation-discovered:
  - Useful validation step before saving: the first row is what
    'search --save-mapping' falls back to when the engine returns no mapping.
  - Flags which dumps are replayable mapping documents.

ARCHITECTURE INTEGRATION:
  - Calls: internal/mapstore.Store.Candidates(), internal/mapping.Check()

ERROR HANDLING:
  - Unreadable roots are returned; missing roots are skipped.

IMPLEMENTATION RULES:
  - Simple output to stdout.

USAGE:
  mapreplay list-maps --root ./outputs --root ./archive

RELATED FILES:
  - internal/mapstore/scan.go
*/

package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/daryltucker/mapreplay/internal/mapping"
	"github.com/daryltucker/mapreplay/internal/mapstore"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	listRoots  []string
	listSuffix string
	listLimit  int
)

var listMapsCmd = &cobra.Command{
	Use:   "list-maps",
	Short: "List captured mapping dumps, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store := &mapstore.Store{Roots: cfg.MappingRoots(), Suffix: cfg.MapSuffix}
		if len(listRoots) > 0 {
			store.Roots = listRoots
		}
		if listSuffix != "" {
			store.Suffix = listSuffix
		}

		candidates, err := store.Candidates()
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			fmt.Printf("No mapping dumps found under %v\n", store.Roots)
			return nil
		}
		if listLimit > 0 && len(candidates) > listLimit {
			candidates = candidates[:listLimit]
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "MODIFIED\tSIZE\tREPLAYABLE\tPATH")
		for _, c := range candidates {
			replayable := "no"
			if data, err := os.ReadFile(c.Path); err == nil && mapping.Check(data) == nil {
				replayable = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", humanize.Time(c.ModTime), humanize.Bytes(uint64(c.Size)), replayable, c.Path)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(listMapsCmd)
	listMapsCmd.Flags().StringArrayVar(&listRoots, "root", nil, "Directory to scan (repeatable; overrides search_roots)")
	listMapsCmd.Flags().StringVar(&listSuffix, "suffix", "", "File suffix of mapping dumps (overrides map_suffix)")
	listMapsCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "Show at most this many entries")
}
