package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/daryltucker/mapreplay/internal/rundir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// evaluatorScript mimics `<evaluator> spec mapper mapping -o dir`.
var evaluatorScript = fmt.Sprintf(`dir="$5"
cat > "$dir/timeloop-mapper.stats.txt" <<'EOF'
%sEOF
`, statsText)

func newReplayer(t *testing.T, evaluator string, fallback Searcher, capability Capability) (*Replayer, *rundir.Allocator) {
	t.Helper()
	logger, _ := bufferLogger()
	dirs := &rundir.Allocator{Root: t.TempDir(), PID: 4242}
	return &Replayer{
		Evaluator:  evaluator,
		Dirs:       dirs,
		Searcher:   fallback,
		Capability: capability,
		Logger:     logger,
	}, dirs
}

func storedMapping(t *testing.T) string {
	return writeFile(t, filepath.Join(t.TempDir(), "best.map.yaml"), fixedMapping)
}

func TestReplay_EvaluatorSuccess(t *testing.T) {
	fallback := &fakeSearcher{}
	r, dirs := newReplayer(t, fakeBinary(t, evaluatorScript), fallback, CapabilityBasic)
	ctx := rundir.WithWorker(context.Background(), 3)

	res, err := r.Replay(ctx, testSpec(), storedMapping(t))
	require.NoError(t, err)
	assert.Empty(t, fallback.Calls())

	assert.Equal(t, dirs.Path(ctx), res.RunDir)
	assert.Equal(t, int64(4096), res.Cycles)
	assert.InDelta(t, 12500.0, res.Energy, 1e-6)

	staged, err := os.ReadFile(filepath.Join(res.RunDir, "mapping.yaml"))
	require.NoError(t, err)
	assert.Equal(t, fixedMapping, string(staged))

	data, err := os.ReadFile(filepath.Join(res.RunDir, "mapper.yaml"))
	require.NoError(t, err)
	var doc struct {
		Mapper SearchConfig `yaml:"mapper"`
	}
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, "exhaustive", doc.Mapper.Algorithm)
	assert.Equal(t, 1, doc.Mapper.SearchSize)
}

func TestReplay_FallbackTriggers(t *testing.T) {
	tests := []struct {
		name      string
		evaluator func(t *testing.T) string
		logged    string
	}{
		{
			name:      "binary not found",
			evaluator: func(t *testing.T) string { return filepath.Join(t.TempDir(), "no-such-evaluator") },
			logged:    "Evaluator failed",
		},
		{
			name:      "non-zero exit",
			evaluator: func(t *testing.T) string { return fakeBinary(t, "echo 'bad mapping' >&2\nexit 1\n") },
			logged:    "bad mapping",
		},
		{
			name:      "exit zero without statistics",
			evaluator: func(t *testing.T) string { return fakeBinary(t, "exit 0\n") },
			logged:    "Statistics file not found",
		},
		{
			name:      "garbage statistics",
			evaluator: func(t *testing.T) string { return fakeBinary(t, "echo garbage > \"$5/timeloop-mapper.stats.txt\"\n") },
			logged:    "Unreadable statistics",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fallback := &fakeSearcher{}
			r, dirs := newReplayer(t, tt.evaluator(t), fallback, CapabilityBasic)
			logger, buf := bufferLogger()
			r.Logger = logger

			spec := testSpec()
			res, err := r.Replay(context.Background(), spec, storedMapping(t))
			require.NoError(t, err)

			calls := fallback.Calls()
			require.Len(t, calls, 1)
			assert.Same(t, spec, calls[0].spec)
			assert.Equal(t, res.RunDir, calls[0].runDir)
			assert.Equal(t, dirs.OutputsDir(), filepath.Dir(calls[0].runDir))
			assert.Equal(t, MinimalSearch().Algorithm, calls[0].mapper.Algorithm)
			assert.Equal(t, 1, calls[0].mapper.SearchSize)
			assert.Empty(t, calls[0].opts.MappingFile)

			assert.InDelta(t, 1000.0, res.Energy, 1e-9)
			assert.Contains(t, buf.String(), tt.logged)
			assert.Contains(t, buf.String(), "may not match the requested mapping")
		})
	}
}

func TestReplay_FallbackWipesRunDirectory(t *testing.T) {
	evaluator := fakeBinary(t, "touch \"$5/leftover\"\nexit 2\n")
	fallback := &fakeSearcher{}
	r, dirs := newReplayer(t, evaluator, fallback, CapabilityBasic)
	ctx := rundir.WithWorker(context.Background(), 5)

	_, err := r.Replay(ctx, testSpec(), storedMapping(t))
	require.NoError(t, err)
	assert.Equal(t, dirs.Path(ctx), fallback.Calls()[0].runDir)
	assert.NoFileExists(t, filepath.Join(dirs.Path(ctx), "leftover"))
}

func TestReplay_FallbackPinsMappingWhenSupported(t *testing.T) {
	fallback := &fakeSearcher{}
	r, _ := newReplayer(t, filepath.Join(t.TempDir(), "missing"), fallback, CapabilityMappingFlag)

	_, err := r.Replay(context.Background(), testSpec(), storedMapping(t))
	require.NoError(t, err)

	calls := fallback.Calls()
	require.Len(t, calls, 1)
	require.NotEmpty(t, calls[0].opts.MappingFile)
	pinned, err := os.ReadFile(calls[0].opts.MappingFile)
	require.NoError(t, err)
	assert.Equal(t, fixedMapping, string(pinned))
}

func TestReplay_FallbackErrorPropagates(t *testing.T) {
	boom := errors.New("mapper exploded")
	r, _ := newReplayer(t, filepath.Join(t.TempDir(), "missing"), &fakeSearcher{err: boom}, CapabilityBasic)

	_, err := r.Replay(context.Background(), testSpec(), storedMapping(t))
	assert.ErrorIs(t, err, boom)
}

func TestReplay_MissingMappingFileIsNotRetried(t *testing.T) {
	fallback := &fakeSearcher{}
	r, _ := newReplayer(t, fakeBinary(t, evaluatorScript), fallback, CapabilityBasic)

	_, err := r.Replay(context.Background(), testSpec(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Empty(t, fallback.Calls())
}

func TestReplay_NoFallbackConfigured(t *testing.T) {
	r, _ := newReplayer(t, filepath.Join(t.TempDir(), "missing"), nil, CapabilityBasic)

	_, err := r.Replay(context.Background(), testSpec(), storedMapping(t))
	assert.Error(t, err)
}
