package output

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/daryltucker/mapreplay/internal/model"
	"github.com/fatih/color"
)

var (
	headerColor = color.New(color.Bold, color.FgCyan)
	failColor   = color.New(color.FgRed)
	okColor     = color.New(color.FgGreen)
)

// PrintSummary writes one aligned line per record. Colors are dropped when w is
// not a terminal (fatih/color decides from NO_COLOR and the tty check).
func PrintSummary(w io.Writer, records []model.Record) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	headerColor.Fprintln(tw, "JOB\tMODE\tMACRO\tLAYER\tENERGY (pJ)\tCYCLES\tEDP\tSTATUS")

	failed := 0
	for _, r := range records {
		status := okColor.Sprint("ok")
		if r.Failed() {
			failed++
			status = failColor.Sprint("FAILED: " + r.Error)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.4g\t%d\t%.4g\t%s\n",
			r.Job, r.Mode, r.Macro, r.Layer, r.Energy, r.Cycles, r.EDP, status)
	}
	tw.Flush()

	if failed > 0 {
		failColor.Fprintf(w, "%d of %d jobs failed\n", failed, len(records))
	} else {
		okColor.Fprintf(w, "%d jobs completed\n", len(records))
	}
}
