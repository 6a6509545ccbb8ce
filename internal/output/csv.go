/*
PURPOSE:
  Writes evaluation records to a CSV file.
  Ensures data integrity by flushing writes immediately.

REQUIREMENTS:
  User-specified:
  - Output to CSV, one row per job.

  Implementation-discovered:
  - A new batch overwrites the previous file.
  - Breakdown maps and variables are stored as JSON text in one column each.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine
  - Consumes: internal/model.Record

ERROR HANDLING:
  - Returns error on file creation or write failure.

IMPLEMENTATION RULES:
  - Use encoding/csv.
  - Flush() after every write (critical for crash resilience).
  - Mutex: batch workers write concurrently.

USAGE:
  w, err := output.NewCSVWriter("results.csv")
  w.Write(record)
  w.Close()

MAINTENANCE:
  - Update Write() mapping when Record struct changes.
*/

package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/daryltucker/mapreplay/internal/model"
)

// CSVHeader is the first row of every results file.
var CSVHeader = []string{
	"job", "mode", "macro", "iso", "layer", "variables", "mapping_file", "saved_mapping",
	"timestamp", "duration_s",
	"energy_pj", "cycles", "area_um2", "edp",
	"energy_breakdown_pj", "area_breakdown_um2",
	"run_dir", "error",
}

// CSVWriter handles writing records to a CSV file.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter creates a new CSVWriter.
// It overwrites the file if it exists.
func NewCSVWriter(path string) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	w := csv.NewWriter(f)
	if err := w.Write(CSVHeader); err != nil {
		f.Close()
		return nil, err
	}
	w.Flush()

	return &CSVWriter{
		file:   f,
		writer: w,
	}, nil
}

func jsonText(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// Write writes a single record to the CSV file.
// It is thread-safe.
func (cw *CSVWriter) Write(r model.Record) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	row := []string{
		r.Job,
		r.Mode,
		r.Macro,
		r.Iso,
		r.Layer,
		jsonText(r.Variables),
		r.MappingFile,
		r.SavedTo,
		r.Timestamp.Format(time.RFC3339),
		fmt.Sprintf("%.4f", r.Duration.Seconds()),
		fmt.Sprintf("%g", r.Energy),
		fmt.Sprintf("%d", r.Cycles),
		fmt.Sprintf("%g", r.Area),
		fmt.Sprintf("%g", r.EDP),
		jsonText(r.EnergyBreakdown),
		jsonText(r.AreaBreakdown),
		r.RunDir,
		r.Error,
	}

	if err := cw.writer.Write(row); err != nil {
		return err
	}
	cw.writer.Flush()
	return cw.writer.Error()
}

// Close closes the underlying file.
func (cw *CSVWriter) Close() error {
	cw.writer.Flush()
	return cw.file.Close()
}
