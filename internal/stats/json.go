package stats

import (
	"fmt"
	"io"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// JSON artifact selectors. Energy is in pJ and area in um^2.
var (
	energyPath          = jp.MustParseString("$.energy")
	cyclesPath          = jp.MustParseString("$.cycles")
	areaPath            = jp.MustParseString("$.area")
	computesPath        = jp.MustParseString("$.computes")
	energyBreakdownPath = jp.MustParseString("$.energy_breakdown")
	areaBreakdownPath   = jp.MustParseString("$.area_breakdown")
)

// ParseJSON reads the engine's JSON statistics format.
func ParseJSON(r io.Reader) (*OutputStats, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	doc, err := oj.Parse(raw)
	if err != nil {
		return nil, err
	}

	energy, okE := number(energyPath.First(doc))
	cycles, okC := number(cyclesPath.First(doc))
	if !okE || !okC {
		return nil, ErrIncomplete
	}

	st := newOutputStats()
	st.Energy = energy
	st.Cycles = int64(cycles)
	if v, ok := number(areaPath.First(doc)); ok {
		st.Area = v
	}
	if v, ok := number(computesPath.First(doc)); ok {
		st.Computes = int64(v)
	}
	if err := breakdown(energyBreakdownPath.First(doc), st.EnergyBreakdown); err != nil {
		return nil, fmt.Errorf("energy_breakdown: %w", err)
	}
	if err := breakdown(areaBreakdownPath.First(doc), st.AreaBreakdown); err != nil {
		return nil, fmt.Errorf("area_breakdown: %w", err)
	}
	return st, nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func breakdown(v any, into map[string]float64) error {
	if v == nil {
		return nil
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return fmt.Errorf("expected an object, got %T", v)
	}
	for name, raw := range obj {
		n, ok := number(raw)
		if !ok {
			return fmt.Errorf("%s: expected a number, got %T", name, raw)
		}
		into[name] = n
	}
	return nil
}
