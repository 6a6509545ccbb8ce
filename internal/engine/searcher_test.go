package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapperScript mimics `<mapper> spec.yaml -o dir [--mapping-file f]`.
func mapperScript(withMapping bool) string {
	body := fmt.Sprintf(`dir="$3"
echo "$@" > "$dir/args.txt"
cat > "$dir/timeloop-mapper.stats.txt" <<'EOF'
%sEOF
`, statsText)
	if withMapping {
		body += fmt.Sprintf(`cat > "$dir/timeloop-mapper.map.yaml" <<'EOF'
%sEOF
`, fixedMapping)
	}
	return body
}

func testSpec() *Specification {
	vars := NewVariables()
	vars.Set("VOLTAGE", 0.8)
	return &Specification{
		Architecture: &Architecture{Nodes: []*Node{{Name: "macro"}}},
		Variables:    vars,
	}
}

func TestMapperCLI_SearchReturnsMapping(t *testing.T) {
	logger, _ := bufferLogger()
	m := &MapperCLI{Binary: fakeBinary(t, mapperScript(true)), Logger: logger}
	dir := t.TempDir()

	raw, err := m.Search(context.Background(), testSpec(), dir, SearchOptions{})
	require.NoError(t, err)

	assert.Equal(t, dir, raw.RunDir)
	assert.Equal(t, int64(4096), raw.Stats.Cycles)
	assert.InDelta(t, 12500.0, raw.Stats.Energy, 1e-6)
	assert.InDelta(t, 10000.0, raw.Stats.EnergyBreakdown["macro"], 1e-6)

	content, ok := raw.BestMapping().Content()
	require.True(t, ok)
	assert.Equal(t, fixedMapping, content)

	assert.FileExists(t, filepath.Join(dir, "spec.yaml"))
	assert.FileExists(t, filepath.Join(dir, DefaultLogFile))
}

func TestMapperCLI_SearchWithoutMapping(t *testing.T) {
	logger, _ := bufferLogger()
	m := &MapperCLI{Binary: fakeBinary(t, mapperScript(false)), Logger: logger}

	raw, err := m.Search(context.Background(), testSpec(), t.TempDir(), SearchOptions{})
	require.NoError(t, err)
	_, ok := raw.BestMapping().Content()
	assert.False(t, ok)
}

func TestMapperCLI_NonZeroExit(t *testing.T) {
	logger, _ := bufferLogger()
	m := &MapperCLI{Binary: fakeBinary(t, "echo boom >&2\nexit 3\n"), Logger: logger}
	dir := t.TempDir()

	_, err := m.Search(context.Background(), testSpec(), dir, SearchOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), DefaultLogFile)

	log, err := os.ReadFile(filepath.Join(dir, DefaultLogFile))
	require.NoError(t, err)
	assert.Contains(t, string(log), "boom")
}

func TestMapperCLI_MissingStats(t *testing.T) {
	logger, _ := bufferLogger()
	m := &MapperCLI{Binary: fakeBinary(t, "exit 0\n"), Logger: logger}

	_, err := m.Search(context.Background(), testSpec(), t.TempDir(), SearchOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without usable statistics")
}

func TestMapperCLI_MappingFlag(t *testing.T) {
	logger, _ := bufferLogger()
	pinned := writeFile(t, filepath.Join(t.TempDir(), "pinned.yaml"), fixedMapping)

	t.Run("basic binary refuses", func(t *testing.T) {
		m := &MapperCLI{Binary: fakeBinary(t, mapperScript(false)), Capability: CapabilityBasic, Logger: logger}
		_, err := m.Search(context.Background(), testSpec(), t.TempDir(), SearchOptions{MappingFile: pinned})
		require.Error(t, err)
		assert.Contains(t, err.Error(), MappingFileFlag)
	})

	t.Run("flag binary receives it", func(t *testing.T) {
		m := &MapperCLI{Binary: fakeBinary(t, mapperScript(false)), Capability: CapabilityMappingFlag, Logger: logger}
		dir := t.TempDir()
		_, err := m.Search(context.Background(), testSpec(), dir, SearchOptions{MappingFile: pinned})
		require.NoError(t, err)

		args, err := os.ReadFile(filepath.Join(dir, "args.txt"))
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(strings.TrimSpace(string(args)), MappingFileFlag+" "+pinned))
	})
}

func TestMapperCLI_AccelergyVerbose(t *testing.T) {
	logger, _ := bufferLogger()
	accelergy := fakeBinary(t, "echo \"energy report $@\"\n")

	t.Run("enabled", func(t *testing.T) {
		m := &MapperCLI{Binary: fakeBinary(t, mapperScript(true)), AccelergyVerbose: true, Accelergy: accelergy, Logger: logger}
		dir := t.TempDir()
		_, err := m.Search(context.Background(), testSpec(), dir, SearchOptions{})
		require.NoError(t, err)

		report, err := os.ReadFile(filepath.Join(dir, AccelergyLogFile))
		require.NoError(t, err)
		fields := strings.Fields(string(report))
		assert.Contains(t, fields, filepath.Join(dir, "spec.yaml"))
		assert.Equal(t, "-v", fields[len(fields)-1])
	})

	t.Run("disabled", func(t *testing.T) {
		m := &MapperCLI{Binary: fakeBinary(t, mapperScript(true)), Accelergy: accelergy, Logger: logger}
		dir := t.TempDir()
		_, err := m.Search(context.Background(), testSpec(), dir, SearchOptions{})
		require.NoError(t, err)
		assert.NoFileExists(t, filepath.Join(dir, AccelergyLogFile))
	})

	t.Run("failure names the log", func(t *testing.T) {
		m := &MapperCLI{
			Binary:           fakeBinary(t, mapperScript(true)),
			AccelergyVerbose: true,
			Accelergy:        fakeBinary(t, "echo 'unknown component' >&2\nexit 1\n"),
			Logger:           logger,
		}
		_, err := m.Search(context.Background(), testSpec(), t.TempDir(), SearchOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), AccelergyLogFile)
	})
}

func TestResolveCapability(t *testing.T) {
	ctx := context.Background()
	withFlag := fakeBinary(t, "echo 'usage: mapper <spec> -o <dir> [--mapping-file <file>]'\n")
	withoutFlag := fakeBinary(t, "echo 'usage: mapper <spec> -o <dir>'\n")

	tests := []struct {
		setting string
		binary  string
		want    Capability
		wantErr bool
	}{
		{setting: "basic", binary: withFlag, want: CapabilityBasic},
		{setting: "Mapping-Flag", binary: withoutFlag, want: CapabilityMappingFlag},
		{setting: "auto", binary: withFlag, want: CapabilityMappingFlag},
		{setting: "", binary: withoutFlag, want: CapabilityBasic},
		{setting: "auto", binary: filepath.Join(t.TempDir(), "missing"), want: CapabilityBasic},
		{setting: "sometimes", binary: withFlag, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.setting, func(t *testing.T) {
			got, err := ResolveCapability(ctx, tt.setting, tt.binary)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "mapping-flag", CapabilityMappingFlag.String())
	assert.Equal(t, "basic", CapabilityBasic.String())
}
