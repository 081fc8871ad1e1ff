// internal/appconfig/appconfig.go
// Package appconfig manages loading and interpreting the experiment
// configuration.
package appconfig

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultConfigPath is the default path to the configuration file.
	DefaultConfigPath = "config/config.yaml"
	// defaultRequestTimeout is the fallback timeout for upstream calls.
	defaultRequestTimeout = 120 * time.Second
)

// Config is the top-level experiment configuration.
type Config struct {
	Provider     Provider   `mapstructure:"provider" json:"provider"`
	Data         Data       `mapstructure:"data" json:"data"`
	Scoring      Scoring    `mapstructure:"scoring" json:"scoring"`
	Experiment   Experiment `mapstructure:"experiment" json:"experiment"`
	Output       Output     `mapstructure:"output" json:"output"`
	SystemPrompt string     `mapstructure:"system_prompt" json:"system_prompt"`
	Seed         int64      `mapstructure:"seed" json:"seed"`
	CachePath    string     `mapstructure:"cache_path" json:"cache_path"`
	LogFile      string     `mapstructure:"log_file" json:"log_file"`
	Debug        bool       `mapstructure:"debug" json:"debug"`
}

// Provider identifies the upstream model endpoint and sampling parameters.
type Provider struct {
	Name           string  `mapstructure:"name" json:"name"`
	BaseURL        string  `mapstructure:"base_url" json:"base_url"`
	Model          string  `mapstructure:"model" json:"model"`
	Temperature    float64 `mapstructure:"temperature" json:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens" json:"max_tokens"`
	TopP           float64 `mapstructure:"top_p" json:"top_p"`
	TimeoutSeconds int     `mapstructure:"timeout" json:"timeout,omitempty"`
}

// Data points at the evidence and prompt pools.
type Data struct {
	EvidencePath    string `mapstructure:"evidence_path" json:"evidence_path"`
	PromptsPath     string `mapstructure:"prompts_path" json:"prompts_path"`
	ParaphrasesPath string `mapstructure:"paraphrases_path" json:"paraphrases_path"`
}

// Scoring selects and parameterizes the mode detector.
type Scoring struct {
	Type         string   `mapstructure:"type" json:"type"`
	RequiredKeys []string `mapstructure:"required_keys" json:"required_keys"`
	Target       string   `mapstructure:"target" json:"target,omitempty"`
}

// Experiment holds the sweep grid parameters.
type Experiment struct {
	KValues            []int `mapstructure:"k_values" json:"k_values"`
	NSubsets           int   `mapstructure:"n_subsets" json:"n_subsets"`
	NPermutations      int   `mapstructure:"n_permutations" json:"n_permutations"`
	BrittlenessKValues []int `mapstructure:"brittleness_k_values" json:"brittleness_k_values"`
	InoculationKValues []int `mapstructure:"inoculation_k_values" json:"inoculation_k_values"`
	HysteresisKValues  []int `mapstructure:"hysteresis_k_values" json:"hysteresis_k_values"`
	NTrials            int   `mapstructure:"n_trials" json:"n_trials"`
}

// Output controls where run artifacts land.
type Output struct {
	Dir     string `mapstructure:"dir" json:"dir"`
	SaveRaw bool   `mapstructure:"save_raw" json:"save_raw"`
}

// RequestTimeout returns the upstream call timeout, falling back to the
// default when unset.
func (c Config) RequestTimeout() time.Duration {
	if c.Provider.TimeoutSeconds <= 0 {
		return defaultRequestTimeout
	}
	return time.Duration(c.Provider.TimeoutSeconds) * time.Second
}

// SetDefaults registers the default configuration values on v. Defaults
// describe a local OpenAI-compatible endpoint running a JSON-compliance
// probe.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("provider.name", "local")
	v.SetDefault("provider.base_url", "http://localhost:8080/v1")
	v.SetDefault("provider.model", "meta-llama/Llama-3.3-70B-Instruct")
	v.SetDefault("provider.temperature", 0.0)
	v.SetDefault("provider.max_tokens", 512)
	v.SetDefault("provider.top_p", 1.0)

	v.SetDefault("data.evidence_path", "data/evidence/json_mode_snippets.jsonl")
	v.SetDefault("data.prompts_path", "data/tests/prompts.jsonl")
	v.SetDefault("data.paraphrases_path", "data/tests/prompts_paraphrases.jsonl")

	v.SetDefault("scoring.type", "json_mode")
	v.SetDefault("scoring.required_keys", []string{"answer"})

	v.SetDefault("experiment.k_values", []int{0, 2, 4, 8, 12, 16, 20})
	v.SetDefault("experiment.n_subsets", 20)
	v.SetDefault("experiment.n_permutations", 20)
	v.SetDefault("experiment.brittleness_k_values", []int{4, 8, 12})
	v.SetDefault("experiment.inoculation_k_values", []int{4, 6, 8})
	v.SetDefault("experiment.hysteresis_k_values", []int{0, 1, 2, 3, 4, 5, 6, 7, 8})
	v.SetDefault("experiment.n_trials", 6)

	v.SetDefault("output.dir", "results")
	v.SetDefault("output.save_raw", true)

	v.SetDefault("system_prompt", "You are a helpful assistant. Follow the format demonstrated in the examples exactly.")
	v.SetDefault("seed", 42)
	v.SetDefault("cache_path", "cache.db")
}

// Load reads the config file at path (when present) and unmarshals the
// merged settings. A missing file at the default path falls back to
// defaults; any other read failure, including a malformed file at the
// default path, is a fatal configuration error.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		explicit := path != "" && path != DefaultConfigPath
		if explicit || !isConfigNotFound(err) {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// isConfigNotFound reports whether err only means no config file exists.
// Viper raises ConfigFileNotFoundError when searching paths and a plain
// fs not-exist error when an explicit file path is set.
func isConfigNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}

// Validate rejects configurations no sweep can run with.
func (c *Config) Validate() error {
	if c.Provider.Model == "" {
		return fmt.Errorf("invalid configuration: provider.model is required")
	}
	if c.Experiment.NSubsets <= 0 {
		return fmt.Errorf("invalid configuration: experiment.n_subsets must be positive")
	}
	if c.Experiment.NPermutations <= 0 {
		return fmt.Errorf("invalid configuration: experiment.n_permutations must be positive")
	}
	for _, k := range c.Experiment.KValues {
		if k < 0 {
			return fmt.Errorf("invalid configuration: negative k value %d", k)
		}
	}
	return nil
}
