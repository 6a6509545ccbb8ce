/*
PURPOSE:
  Defines the configuration structure and loading logic for mapreplay.
  Adheres to "Config IS Code" philosophy.

REQUIREMENTS:
  User-specified:
  - Configure the engine binaries, the workspace root and the batch of jobs.
  - Worker count for parallel batches.

  Implementation-discovered:
  - Needs to support YAML parsing.
  - Needs Environment variable overrides (MAPREPLAY_...), optionally from a .env file.
  - The engine's capability is a setting ("auto" probes once at startup).

ARCHITECTURE INTEGRATION:
  - Used by: internal/cli, internal/engine
  - Dependencies: gopkg.in/yaml.v3, github.com/joho/godotenv

ERROR HANDLING:
  - Returns explicit error if config file is invalid.
  - A missing default config file is not an error; defaults are used.
  - A malformed numeric environment override is an error.

IMPLEMENTATION RULES:
  - Config struct tags should support yaml.
  - Defaults should match the engine's own file names.

USAGE:
  cfg, err := config.Load("mapreplay.yaml")

RELATED FILES:
  - internal/cli/root.go

MAINTENANCE:
  - Update when adding new tuning parameters.
*/

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/daryltucker/mapreplay/internal/rundir"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MAPREPLAY_"

// Engine configures the external mapper.
type Engine struct {
	MapperBinary    string `yaml:"mapper_binary"`
	EvaluatorBinary string `yaml:"evaluator_binary"`
	// Capability is auto, basic or mapping-flag.
	Capability    string `yaml:"capability"`
	StatsFile     string `yaml:"stats_file"`
	MappingOutput string `yaml:"mapping_output"`
	// MacroLeaf is the architecture leaf marked for power gating.
	MacroLeaf string `yaml:"macro_leaf"`
	// AccelergyVerbose re-runs the energy estimator after each search and keeps
	// its verbose report in accelergy.log in the run directory.
	AccelergyVerbose bool   `yaml:"accelergy_verbose"`
	AccelergyBinary  string `yaml:"accelergy_binary"`
}

// Job is one batch evaluation.
type Job struct {
	Name      string         `yaml:"name"`
	Macro     string         `yaml:"macro"`
	Iso       string         `yaml:"iso"`
	Tile      string         `yaml:"tile"`
	Chip      string         `yaml:"chip"`
	System    string         `yaml:"system"`
	DNN       string         `yaml:"dnn"`
	Layer     string         `yaml:"layer"`
	Variables map[string]any `yaml:"variables"`
	// MappingFile replays a stored mapping instead of searching.
	MappingFile string `yaml:"mapping_file"`
	// SaveMapping captures the best mapping of a search to this path.
	SaveMapping string `yaml:"save_mapping"`
}

// Config represents the full configuration for mapreplay.
type Config struct {
	// Root holds the models directory and outputs/ with per-run directories.
	Root        string   `yaml:"root"`
	ModelsDir   string   `yaml:"models_dir"`
	TopTemplate string   `yaml:"top_template"`
	SearchRoots []string `yaml:"search_roots"`
	MapSuffix   string   `yaml:"map_suffix"`
	Engine      Engine   `yaml:"engine"`
	Workers     int      `yaml:"workers"`

	OutputDir  string `yaml:"output_dir"`
	OutputFile string `yaml:"output_file"`
	JSONFile   string `yaml:"json_file"`
	// SQLiteFile enables the SQLite result store when set.
	SQLiteFile string `yaml:"sqlite_file"`
	ClearZeros bool   `yaml:"clear_zeros"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	Jobs []Job `yaml:"jobs"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Root:        ".",
		ModelsDir:   "models",
		TopTemplate: "top.yaml.tmpl",
		MapSuffix:   ".map.txt",
		Engine: Engine{
			MapperBinary:    "timeloop-mapper",
			EvaluatorBinary: "timeloop-mapper",
			Capability:      "auto",
			StatsFile:       "timeloop-mapper.stats.txt",
			MappingOutput:   "timeloop-mapper.map.yaml",
			MacroLeaf:       "macro",
			AccelergyBinary: "accelergy",
		},
		Workers:    32,
		OutputDir:  "results",
		OutputFile: "results.csv",
		JSONFile:   "results.jsonl",
		ClearZeros: true,
		LogLevel:   "info",
		LogFormat:  "text",
	}
}

// DefaultFiles are tried in order when Load is given no path.
var DefaultFiles = []string{"mapreplay.yaml", "runner.yaml"}

// Load reads configuration from a file.
// If path is specified, it attempts to load that file.
// If path is empty, it searches for default files in order.
// If no file found, returns default config.
// A .env file in the working directory and MAPREPLAY_* variables are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	var data []byte
	var err error

	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
	} else {
		for _, name := range DefaultFiles {
			data, err = os.ReadFile(name)
			if err == nil {
				path = name
				break
			}
		}
	}

	if data != nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"ROOT":       &c.Root,
		"MODELS_DIR": &c.ModelsDir,
		"MAPPER":     &c.Engine.MapperBinary,
		"EVALUATOR":  &c.Engine.EvaluatorBinary,
		"CAPABILITY": &c.Engine.Capability,
		"ACCELERGY":  &c.Engine.AccelergyBinary,
		"OUTPUT_DIR": &c.OutputDir,
		"SQLITE":     &c.SQLiteFile,
		"LOG_LEVEL":  &c.LogLevel,
		"LOG_FORMAT": &c.LogFormat,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}
	if v, ok := os.LookupEnv(EnvPrefix + "WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sWORKERS: %w", EnvPrefix, err)
		}
		c.Workers = n
	}
	if v, ok := os.LookupEnv(EnvPrefix + "ACCELERGY_VERBOSE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sACCELERGY_VERBOSE: %w", EnvPrefix, err)
		}
		c.Engine.AccelergyVerbose = b
	}
	return nil
}

// ModelsPath resolves ModelsDir against Root unless it is absolute.
func (c *Config) ModelsPath() string {
	if filepath.IsAbs(c.ModelsDir) {
		return c.ModelsDir
	}
	return filepath.Join(c.Root, c.ModelsDir)
}

// MappingRoots are the directories scanned for mapping dumps. They default to the
// outputs directory under Root.
func (c *Config) MappingRoots() []string {
	if len(c.SearchRoots) > 0 {
		return c.SearchRoots
	}
	return []string{rundir.New(c.Root).OutputsDir()}
}
