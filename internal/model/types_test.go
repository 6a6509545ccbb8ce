package model

import (
	"testing"
	"time"

	"github.com/daryltucker/mapreplay/internal/result"
	"github.com/daryltucker/mapreplay/internal/stats"
	"github.com/stretchr/testify/assert"
)

func TestRecord_Fill(t *testing.T) {
	st := result.Wrap(&result.RawResult{
		Stats: &stats.OutputStats{
			Energy:          2000,
			Cycles:          50,
			Area:            12.5,
			EnergyBreakdown: map[string]float64{"macro": 1500, "DRAM": 500},
			AreaBreakdown:   map[string]float64{"macro": 12.5},
		},
		RunDir: "outputs/1.1",
	})

	rec := Record{Job: "conv1", Mode: ModeSearch, Timestamp: time.Now()}
	rec.Fill(st)

	assert.Equal(t, "conv1", rec.Job)
	assert.Equal(t, 2000.0, rec.Energy)
	assert.Equal(t, int64(50), rec.Cycles)
	assert.Equal(t, 12.5, rec.Area)
	assert.Equal(t, 100000.0, rec.EDP)
	assert.Equal(t, map[string]float64{"macro": 1500, "DRAM": 500}, rec.EnergyBreakdown)
	assert.Equal(t, "outputs/1.1", rec.RunDir)
	assert.False(t, rec.Failed())

	rec.Error = "evaluator crashed"
	assert.True(t, rec.Failed())
}
