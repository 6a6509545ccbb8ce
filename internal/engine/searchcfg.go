package engine

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SearchConfig is the engine's mapper section.
type SearchConfig struct {
	Algorithm        string         `yaml:"algorithm"`
	SearchSize       int            `yaml:"search_size"`
	Timeout          int            `yaml:"timeout"`
	VictoryCondition int            `yaml:"victory_condition"`
	Rest             map[string]any `yaml:",inline"`
}

// MinimalSearch evaluates exactly one point: no exploration, no timeout, no
// victory threshold.
func MinimalSearch() *SearchConfig {
	return &SearchConfig{
		Algorithm:        "exhaustive",
		SearchSize:       1,
		Timeout:          0,
		VictoryCondition: 0,
	}
}

// WriteFile writes c as a standalone `mapper:` document.
func (c *SearchConfig) WriteFile(path string) error {
	data, err := yaml.Marshal(struct {
		Mapper *SearchConfig `yaml:"mapper"`
	}{c})
	if err != nil {
		return fmt.Errorf("serialize search config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
