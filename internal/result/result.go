// Package result normalizes what a mapper engine run produced and aggregates many
// such results into a reportable list.
package result

import (
	"github.com/daryltucker/mapreplay/internal/stats"
)

// MappingSource says whether an engine run handed back its best mapping.
// Use HasMapping and NoMapping to build one.
type MappingSource struct {
	content string
	ok      bool
}

// HasMapping wraps mapping text returned directly by the engine.
func HasMapping(content string) MappingSource {
	return MappingSource{content: content, ok: true}
}

// NoMapping is the source of a run that returned no mapping.
var NoMapping = MappingSource{}

// Content returns the mapping text and whether there is any.
func (m MappingSource) Content() (string, bool) {
	return m.content, m.ok && m.content != ""
}

// MappingCarrier is anything that can report the mapping a run discovered.
type MappingCarrier interface {
	BestMapping() MappingSource
}

// RawResult is what the engine adapter returns for one run.
type RawResult struct {
	Stats   *stats.OutputStats
	Mapping MappingSource
	RunDir  string
}

func (r *RawResult) BestMapping() MappingSource {
	return r.Mapping
}

// MacroOutputStats is the normalized outcome of a single evaluation.
type MacroOutputStats struct {
	Energy          float64            `json:"energy_pj"`
	Cycles          int64              `json:"cycles"`
	Area            float64            `json:"area_um2"`
	Computes        int64              `json:"computes"`
	EnergyBreakdown map[string]float64 `json:"energy_breakdown_pj"`
	AreaBreakdown   map[string]float64 `json:"area_breakdown_um2"`
	RunDir          string             `json:"run_dir,omitempty"`

	mapping MappingSource
}

// Wrap normalizes a raw engine result. The breakdown maps are copied so later
// pruning never reaches back into the raw result.
func Wrap(raw *RawResult) *MacroOutputStats {
	s := &MacroOutputStats{
		EnergyBreakdown: map[string]float64{},
		AreaBreakdown:   map[string]float64{},
		RunDir:          raw.RunDir,
		mapping:         raw.Mapping,
	}
	if raw.Stats == nil {
		return s
	}
	s.Energy = raw.Stats.Energy
	s.Cycles = raw.Stats.Cycles
	s.Area = raw.Stats.Area
	s.Computes = raw.Stats.Computes
	for k, v := range raw.Stats.EnergyBreakdown {
		s.EnergyBreakdown[k] = v
	}
	for k, v := range raw.Stats.AreaBreakdown {
		s.AreaBreakdown[k] = v
	}
	return s
}

func (s *MacroOutputStats) BestMapping() MappingSource {
	return s.mapping
}

// EDP is the energy-delay product in pJ*cycles.
func (s *MacroOutputStats) EDP() float64 {
	return s.Energy * float64(s.Cycles)
}

// ClearZeroEnergies drops zero entries from the energy breakdown.
func (s *MacroOutputStats) ClearZeroEnergies() {
	clearZeros(s.EnergyBreakdown)
}

// ClearZeroAreas drops zero entries from the area breakdown.
func (s *MacroOutputStats) ClearZeroAreas() {
	clearZeros(s.AreaBreakdown)
}

func clearZeros(m map[string]float64) {
	for k, v := range m {
		if v == 0 {
			delete(m, k)
		}
	}
}

// List is an ordered collection of results.
type List []*MacroOutputStats

// FromResults builds a List from results that were already computed.
func FromResults(results ...*MacroOutputStats) List {
	return List(results)
}

func (l List) ClearZeroEnergies() {
	for _, s := range l {
		s.ClearZeroEnergies()
	}
}

func (l List) ClearZeroAreas() {
	for _, s := range l {
		s.ClearZeroAreas()
	}
}

func (l List) Energies() []float64 {
	out := make([]float64, len(l))
	for i, s := range l {
		out[i] = s.Energy
	}
	return out
}

func (l List) Cycles() []int64 {
	out := make([]int64, len(l))
	for i, s := range l {
		out[i] = s.Cycles
	}
	return out
}
