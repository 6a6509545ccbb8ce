package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into a fresh directory so default-file and .env lookups are isolated.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	prevWD, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(prevWD) })
	return dir
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	chdir(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, []string{filepath.Join(".", "outputs")}, cfg.MappingRoots())
}

func TestLoad_FileAndJobs(t *testing.T) {
	dir := chdir(t)
	doc := `
root: /work
workers: 4
engine:
  evaluator_binary: timeloop-model
  capability: basic
jobs:
  - name: conv1-search
    macro: nestquant
    layer: dnn/resnet50/layers/conv1
    variables:
      VOLTAGE: 0.8
    save_mapping: maps/conv1.yaml
  - name: conv1-replay
    macro: nestquant
    layer: dnn/resnet50/layers/conv1
    mapping_file: maps/conv1.yaml
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mapreplay.yaml"), []byte(doc), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/work", cfg.Root)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "timeloop-model", cfg.Engine.EvaluatorBinary)
	assert.Equal(t, "timeloop-mapper", cfg.Engine.MapperBinary, "unset keys keep defaults")
	assert.Equal(t, "/work/models", cfg.ModelsPath())
	require.Len(t, cfg.Jobs, 2)
	assert.Equal(t, 0.8, cfg.Jobs[0].Variables["VOLTAGE"])
	assert.Equal(t, "maps/conv1.yaml", cfg.Jobs[1].MappingFile)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	chdir(t)
	_, err := Load("nope.yaml")
	assert.True(t, os.IsNotExist(err))
}

func TestLoad_BadYAML(t *testing.T) {
	dir := chdir(t)
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: [1, 2"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MAPREPLAY_EVALUATOR=/opt/bin/evaluator\n"), 0o644))
	t.Setenv("MAPREPLAY_WORKERS", "3")
	t.Setenv("MAPREPLAY_LOG_LEVEL", "debug")
	// godotenv.Load does not override variables that are already set.
	t.Setenv("MAPREPLAY_EVALUATOR", "")
	require.NoError(t, os.Unsetenv("MAPREPLAY_EVALUATOR"))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/opt/bin/evaluator", cfg.Engine.EvaluatorBinary)
}

func TestLoad_AccelergyVerbose(t *testing.T) {
	dir := chdir(t)
	assert.False(t, DefaultConfig().Engine.AccelergyVerbose)
	assert.Equal(t, "accelergy", DefaultConfig().Engine.AccelergyBinary)

	doc := "engine:\n  accelergy_verbose: true\n  accelergy_binary: /opt/accelergy/bin/accelergy\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mapreplay.yaml"), []byte(doc), 0o644))
	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Engine.AccelergyVerbose)
	assert.Equal(t, "/opt/accelergy/bin/accelergy", cfg.Engine.AccelergyBinary)

	t.Setenv("MAPREPLAY_ACCELERGY_VERBOSE", "false")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.False(t, cfg.Engine.AccelergyVerbose)

	t.Setenv("MAPREPLAY_ACCELERGY_VERBOSE", "loud")
	_, err = Load("")
	assert.Error(t, err)
}

func TestLoad_BadWorkersEnv(t *testing.T) {
	chdir(t)
	t.Setenv("MAPREPLAY_WORKERS", "many")
	_, err := Load("")
	assert.Error(t, err)
}

func TestMappingRoots_Explicit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SearchRoots = []string{"/a", "/b"}
	assert.Equal(t, []string{"/a", "/b"}, cfg.MappingRoots())
}
