/*
PURPOSE:
  Writes evaluation records to a JSON Lines file (NDJSON).
  Optimized for machine parsing.

REQUIREMENTS:
  Implementation-discovered:
  - JSON Lines is better for streaming/logging than a single large array (append-friendly).
  - Workers finish in any order; writes must be serialized.
  - Every line has the same shape: mode, status and both breakdown objects are
    always present, empty for failed jobs, so jq filters need no null checks.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine
  - Consumes: internal/model.Record

ERROR HANDLING:
  - Returns error on file creation or write failure.

USAGE:
  w, err := output.NewJSONWriter("results.jsonl")
  w.Write(record)
  w.Close()
*/

package output

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/daryltucker/mapreplay/internal/model"
)

// JSONWriter handles writing records to a JSON Lines file.
type JSONWriter struct {
	file    *os.File
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewJSONWriter creates a new JSONWriter.
func NewJSONWriter(path string) (*JSONWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	return &JSONWriter{
		file:    f,
		encoder: json.NewEncoder(f),
	}, nil
}

// Job statuses written to each line.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// jsonLine is the on-disk shape of a record. Its breakdown fields shadow the
// record's omitempty ones.
type jsonLine struct {
	model.Record
	Mode            string             `json:"mode"`
	Status          string             `json:"status"`
	DurationSeconds float64            `json:"duration_s"`
	EnergyBreakdown map[string]float64 `json:"energy_breakdown_pj"`
	AreaBreakdown   map[string]float64 `json:"area_breakdown_um2"`
}

func newJSONLine(r model.Record) jsonLine {
	line := jsonLine{
		Record:          r,
		Mode:            r.Mode,
		Status:          StatusOK,
		DurationSeconds: r.Duration.Seconds(),
		EnergyBreakdown: r.EnergyBreakdown,
		AreaBreakdown:   r.AreaBreakdown,
	}
	if line.Mode == "" {
		line.Mode = model.ModeSearch
		if r.MappingFile != "" {
			line.Mode = model.ModeReplay
		}
	}
	if r.Failed() {
		line.Status = StatusFailed
	}
	if line.EnergyBreakdown == nil {
		line.EnergyBreakdown = map[string]float64{}
	}
	if line.AreaBreakdown == nil {
		line.AreaBreakdown = map[string]float64{}
	}
	return line
}

// Write writes a single record as a JSON line.
func (jw *JSONWriter) Write(r model.Record) error {
	line := newJSONLine(r)

	jw.mu.Lock()
	defer jw.mu.Unlock()
	return jw.encoder.Encode(line)
}

// Close closes the underlying file.
func (jw *JSONWriter) Close() error {
	return jw.file.Close()
}
