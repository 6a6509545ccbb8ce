/*
PURPOSE:
  Parses the statistics artifact the mapper engine writes when a run finishes.
  Produces raw numbers: energy, cycles, area and per-component breakdowns.

REQUIREMENTS:
  User-specified:
  - Energy in pJ, cycles as a count, per-component energy and area.

  Implementation-discovered:
  - The engine prints energy in whatever unit reads best (pJ..J); normalize to pJ.
  - Area is printed in um^2 or mm^2; normalize to um^2.
  - Newer engine builds can emit the same numbers as JSON.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine (searcher and replayer)
  - Consumed by: internal/result.Wrap

ERROR HANDLING:
  - A file without a Cycles or Energy line is rejected; callers fall back on that.

RELATED FILES:
  - internal/stats/json.go
*/

package stats

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// ErrIncomplete means the artifact lacked the summary numbers.
var ErrIncomplete = errors.New("statistics artifact is incomplete")

// OutputStats holds the numbers read from one statistics artifact.
type OutputStats struct {
	Energy          float64            `json:"energy_pj"`
	Cycles          int64              `json:"cycles"`
	Area            float64            `json:"area_um2"`
	Computes        int64              `json:"computes"`
	EnergyBreakdown map[string]float64 `json:"energy_breakdown_pj"`
	AreaBreakdown   map[string]float64 `json:"area_breakdown_um2"`
}

func newOutputStats() *OutputStats {
	return &OutputStats{
		EnergyBreakdown: map[string]float64{},
		AreaBreakdown:   map[string]float64{},
	}
}

var (
	levelHeader = regexp.MustCompile(`^===\s*(\S+)\s*===$`)
	keyValue    = regexp.MustCompile(`^([^:=]+?)\s*[:=]\s*([-+0-9.eE]+)\s*(\S*)`)
)

var energyScale = map[string]float64{
	"pj": 1, "nj": 1e3, "uj": 1e6, "mj": 1e9, "j": 1e12,
}

var areaScale = map[string]float64{
	"um^2": 1, "mm^2": 1e6, "": 1,
}

// ParseFile reads a statistics artifact from disk. Files ending in .json are read
// with ParseJSON.
func ParseFile(path string) (*OutputStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var st *OutputStats
	if strings.HasSuffix(path, ".json") {
		st, err = ParseJSON(f)
	} else {
		st, err = Parse(f)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return st, nil
}

// Parse reads the engine's text statistics format.
func Parse(r io.Reader) (*OutputStats, error) {
	st := newOutputStats()
	var (
		level      string
		inSummary  bool
		inPerCmp   bool
		perCompute = map[string]float64{}
		haveCycles bool
		haveEnergy bool
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			inPerCmp = false
			continue
		}
		if m := levelHeader.FindStringSubmatch(line); m != nil {
			level = m[1]
			continue
		}
		if line == "Summary Stats" {
			inSummary = true
			level = ""
			continue
		}
		if !inSummary {
			if level != "" && strings.HasPrefix(line, "Area (total)") {
				m := keyValue.FindStringSubmatch(line)
				if m == nil {
					continue
				}
				v, err := scaled(m[2], m[3], areaScale)
				if err != nil {
					return nil, fmt.Errorf("area of %s: %w", level, err)
				}
				st.AreaBreakdown[level] += v
			}
			continue
		}

		if line == "pJ/Compute" {
			inPerCmp = true
			continue
		}
		m := keyValue.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key := strings.TrimSpace(m[1])
		if inPerCmp {
			v, err := strconv.ParseFloat(m[2], 64)
			if err != nil {
				return nil, fmt.Errorf("pJ/Compute %s: %w", key, err)
			}
			if key != "Total" {
				perCompute[key] = v
			}
			continue
		}

		var err error
		switch key {
		case "Cycles":
			st.Cycles, err = strconv.ParseInt(m[2], 10, 64)
			haveCycles = err == nil
		case "Energy":
			st.Energy, err = scaled(m[2], m[3], energyScale)
			haveEnergy = err == nil
		case "Area":
			st.Area, err = scaled(m[2], m[3], areaScale)
		case "Computes":
			st.Computes, err = strconv.ParseInt(m[2], 10, 64)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if !haveCycles || !haveEnergy {
		return nil, ErrIncomplete
	}

	for name, pj := range perCompute {
		st.EnergyBreakdown[name] = pj * float64(st.Computes)
	}
	return st, nil
}

func scaled(value, unit string, scale map[string]float64) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	f, ok := scale[strings.ToLower(unit)]
	if !ok {
		return 0, fmt.Errorf("unknown unit %q", unit)
	}
	return v * f, nil
}
