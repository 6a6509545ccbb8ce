package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/daryltucker/mapreplay/internal/config"
	"github.com/daryltucker/mapreplay/internal/model"
	"github.com/daryltucker/mapreplay/internal/output"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	mu      sync.Mutex
	records []model.Record
	err     error
}

func (s *memorySink) Write(r model.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return s.err
}

func byJob(records []model.Record) map[string]model.Record {
	out := make(map[string]model.Record, len(records))
	for _, r := range records {
		out[r.Job] = r
	}
	return out
}

func quietOutput(t *testing.T) {
	t.Helper()
	prev := output.Logger
	output.SetLogger(output.Discard())
	t.Cleanup(func() { output.SetLogger(prev) })
}

func TestBatch_Execute(t *testing.T) {
	quietOutput(t)
	searcher := &fakeSearcher{files: map[string]string{"layer.map.txt": fixedMapping}}
	sink := &memorySink{}
	saveTo := filepath.Join(t.TempDir(), "saved", "conv1.map.txt")

	b := &Batch{
		Runner:     newRunner(t, &fakeLoader{}, searcher),
		Sinks:      []Sink{sink},
		Workers:    2,
		ClearZeros: true,
	}
	records, err := b.Execute(context.Background(), []config.Job{
		{Name: "search", Macro: "base", Layer: "conv1", SaveMapping: saveTo},
		{Name: "replay", Macro: "base", Layer: "conv1", MappingFile: storedMapping(t)},
		{Name: "broken", Macro: "base", Layer: "conv1", MappingFile: filepath.Join(t.TempDir(), "missing.yaml")},
		{Macro: "base", Layer: "conv2"},
	})
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Len(t, sink.records, 4)

	got := byJob(records)

	search := got["search"]
	assert.Equal(t, model.ModeSearch, search.Mode)
	assert.False(t, search.Failed())
	assert.Equal(t, saveTo, search.SavedTo)
	assert.InDelta(t, 1000.0, search.Energy, 1e-9)
	assert.Equal(t, map[string]float64{"macro": 1000}, search.EnergyBreakdown)
	saved, err := os.ReadFile(saveTo)
	require.NoError(t, err)
	assert.Equal(t, fixedMapping, string(saved))

	replay := got["replay"]
	assert.Equal(t, model.ModeReplay, replay.Mode)
	assert.False(t, replay.Failed())
	assert.Equal(t, int64(4096), replay.Cycles)

	broken := got["broken"]
	assert.True(t, broken.Failed())
	assert.Contains(t, broken.Error, "missing.yaml")

	_, ok := got["job-4"]
	assert.True(t, ok, "unnamed jobs are named by position")
}

func TestBatch_ExecuteSaveWithoutMapping(t *testing.T) {
	quietOutput(t)
	saveTo := filepath.Join(t.TempDir(), "none.map.txt")
	b := &Batch{Runner: newRunner(t, &fakeLoader{}, &fakeSearcher{})}

	records, err := b.Execute(context.Background(), []config.Job{
		{Name: "search", Macro: "base", SaveMapping: saveTo},
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].Failed())
	assert.Empty(t, records[0].SavedTo)
	assert.NoFileExists(t, saveTo)
}

func TestBatch_SinkErrorsDoNotFailJobs(t *testing.T) {
	quietOutput(t)
	sink := &memorySink{err: errors.New("disk full")}
	b := &Batch{Runner: newRunner(t, &fakeLoader{}, &fakeSearcher{}), Sinks: []Sink{sink}}

	records, err := b.Execute(context.Background(), []config.Job{{Name: "a", Macro: "base"}})
	require.NoError(t, err)
	assert.False(t, records[0].Failed())
}

func TestBatch_RunDirsArePerWorker(t *testing.T) {
	quietOutput(t)
	searcher := &fakeSearcher{}
	r := newRunner(t, &fakeLoader{}, searcher)
	b := &Batch{Runner: r, Workers: 3}

	jobs := make([]config.Job, 6)
	for i := range jobs {
		jobs[i] = config.Job{Macro: "base"}
	}
	records, err := b.Execute(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, records, 6)

	distinct := map[string]bool{}
	for _, rec := range records {
		assert.Equal(t, r.Dirs.OutputsDir(), filepath.Dir(rec.RunDir))
		distinct[rec.RunDir] = true
	}
	assert.LessOrEqual(t, len(distinct), 3, "one run dir per worker")
}

func TestBatch_Cancelled(t *testing.T) {
	quietOutput(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := &Batch{Runner: newRunner(t, &fakeLoader{}, &fakeSearcher{})}

	_, err := b.Execute(ctx, []config.Job{{Macro: "base"}, {Macro: "base"}})
	assert.ErrorIs(t, err, context.Canceled)
}
