package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config carries the orchestrator's tunable settings. Thresholds and
// prompt limits are threaded explicitly rather than read from globals.
type Config struct {
	// ConfidenceThreshold gates the clarification path: generator
	// confidence below it always asks instead of answering.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	// MaxColumnsInPrompt truncates wide tables in the schema text sent
	// to the generator.
	MaxColumnsInPrompt int `yaml:"max_columns_in_prompt"`

	// MaxTurns bounds stored conversation history per conversation.
	MaxTurns int `yaml:"max_turns"`

	// ContextTurnsInPrompt is how many prior turns are replayed into
	// the generation prompt.
	ContextTurnsInPrompt int `yaml:"context_turns_in_prompt"`

	// MaxExamples caps retrieved example queries per prompt.
	MaxExamples int `yaml:"max_examples"`

	// UseExamples toggles example retrieval entirely.
	UseExamples bool `yaml:"use_examples"`
}

// DefaultConfig returns the settings used when no config file is given.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold:  0.7,
		MaxColumnsInPrompt:   12,
		MaxTurns:             5,
		ContextTurnsInPrompt: 2,
		MaxExamples:          3,
		UseExamples:          true,
	}
}

// LoadConfig reads a YAML config file, filling unset fields from
// DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 1 {
		return cfg, fmt.Errorf("confidence_threshold must be in [0,1], got %v", cfg.ConfidenceThreshold)
	}
	return cfg, nil
}
