package engine

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/daryltucker/mapreplay/internal/result"
	"github.com/daryltucker/mapreplay/internal/stats"
	"github.com/stretchr/testify/require"
)

const statsText = `Summary Stats
-------------
Cycles: 4096
Energy: 12.5 nJ
Area: 100 um^2

Computes = 100
pJ/Compute
    macro = 100.00
    DRAM  = 25.00
    Total = 125.00
`

const fixedMapping = `mapping:
  - target: DRAM
    type: temporal
    factors: C=1 K=16 R=1 S=1 P=7 Q=7 N=1
    permutation: KQPNRSC
`

// fakeBinary writes an executable shell script and returns its path.
func fakeBinary(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-engine")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

type searchCall struct {
	spec   *Specification
	runDir string
	opts   SearchOptions
	// mapper is a copy of spec.Mapper at call time.
	mapper *SearchConfig
}

// fakeSearcher stands in for the mapper's search entry point.
type fakeSearcher struct {
	mu      sync.Mutex
	calls   []searchCall
	err     error
	mapping result.MappingSource
	// files are written into the run directory before returning.
	files map[string]string
}

func (f *fakeSearcher) Search(ctx context.Context, spec *Specification, runDir string, opts SearchOptions) (*result.RawResult, error) {
	f.mu.Lock()
	call := searchCall{spec: spec, runDir: runDir, opts: opts}
	if spec.Mapper != nil {
		m := *spec.Mapper
		call.mapper = &m
	}
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	for name, content := range f.files {
		if err := os.WriteFile(filepath.Join(runDir, name), []byte(content), 0o644); err != nil {
			return nil, err
		}
	}
	return &result.RawResult{
		Stats: &stats.OutputStats{
			Energy:          1000,
			Cycles:          10,
			EnergyBreakdown: map[string]float64{"macro": 1000, "DRAM": 0},
			AreaBreakdown:   map[string]float64{},
		},
		Mapping: f.mapping,
		RunDir:  runDir,
	}, nil
}

func (f *fakeSearcher) Calls() []searchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]searchCall(nil), f.calls...)
}

// fakeLoader returns a fresh specification with a macro leaf and two defaults.
type fakeLoader struct {
	mu      sync.Mutex
	targets []Target
	err     error
	noLeaf  bool
}

func (l *fakeLoader) Load(ctx context.Context, t Target) (*Specification, error) {
	l.mu.Lock()
	l.targets = append(l.targets, t)
	l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}

	leafName := "macro"
	if l.noLeaf {
		leafName = "not_a_macro"
	}
	vars := NewVariables()
	vars.Set("VOLTAGE", 1.0)
	vars.Set("N_ROWS", 128)
	if t.MaxUtilization {
		vars.Set("MAX_UTILIZATION", true)
	}
	return &Specification{
		Architecture: &Architecture{Nodes: []*Node{
			{Name: "system", Nodes: []*Node{
				{Name: "DRAM", Class: "DRAM"},
				{Name: "chip", Nodes: []*Node{
					{Name: leafName, Class: "compute"},
				}},
			}},
		}},
		Variables: vars,
	}, nil
}
