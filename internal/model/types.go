/*
PURPOSE:
  Defines the flat per-run record mapreplay reports.
  One record per evaluated job, successful or not.

REQUIREMENTS:
  User-specified:
  - Record energy (pJ), cycles and area, plus per-component breakdowns.
  - Track which macro / layer / variables / mapping produced the numbers.

  Implementation-discovered:
  - Need JSON tags for the JSON-lines sink.
  - CSV and SQLite sinks flatten the breakdown maps to JSON text.

ARCHITECTURE INTEGRATION:
  - Built by: internal/engine (batch run)
  - Used by: internal/output

ERROR HANDLING:
  - None (pure data structs).

USAGE:
  rec := model.Record{Job: job.Name, Mode: model.ModeSearch, Timestamp: start}
  rec.Fill(stats)

RELATED FILES:
  - internal/output/csv.go
  - internal/output/json.go
  - internal/output/sqlite.go
*/

package model

import (
	"time"

	"github.com/daryltucker/mapreplay/internal/result"
)

// Run modes.
const (
	ModeSearch = "search"
	ModeReplay = "replay"
)

// Record represents the outcome of a single evaluation.
type Record struct {
	Job         string         `json:"job"`
	Mode        string         `json:"mode"`
	Macro       string         `json:"macro"`
	Iso         string         `json:"iso,omitempty"`
	Layer       string         `json:"layer"`
	Variables   map[string]any `json:"variables,omitempty"`
	MappingFile string         `json:"mapping_file,omitempty"`
	SavedTo     string         `json:"saved_mapping,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Duration    time.Duration  `json:"duration"`

	Energy          float64            `json:"energy_pj"`
	Cycles          int64              `json:"cycles"`
	Area            float64            `json:"area_um2"`
	EDP             float64            `json:"edp"`
	EnergyBreakdown map[string]float64 `json:"energy_breakdown_pj,omitempty"`
	AreaBreakdown   map[string]float64 `json:"area_breakdown_um2,omitempty"`
	RunDir          string             `json:"run_dir,omitempty"`

	Error string `json:"error,omitempty"` // If the run failed
}

// Fill copies the numbers of s into r.
func (r *Record) Fill(s *result.MacroOutputStats) {
	r.Energy = s.Energy
	r.Cycles = s.Cycles
	r.Area = s.Area
	r.EDP = s.EDP()
	r.EnergyBreakdown = s.EnergyBreakdown
	r.AreaBreakdown = s.AreaBreakdown
	r.RunDir = s.RunDir
}

// Failed reports whether the record carries an error.
func (r *Record) Failed() bool {
	return r.Error != ""
}
