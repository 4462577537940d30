// Package config loads engine settings from ~/.ace/config.yaml with
// environment overrides. Every field has a default; a missing file is not
// an error, so the engine always starts.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration parses YAML values like "500ms" or "2s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type ProviderConfig struct {
	Backend       string  `yaml:"backend"`
	Model         string  `yaml:"model"`
	BaseURL       string  `yaml:"base_url"`
	APIKey        string  `yaml:"api_key"`
	Temperature   float64 `yaml:"temperature"`
	MaxTokens     int     `yaml:"max_tokens"`
	ContextWindow int     `yaml:"context_window"`
}

type ThinkingConfig struct {
	Enabled bool `yaml:"enabled"`
}

type WebConfig struct {
	Enabled bool `yaml:"enabled"`
}

type MemoryConfig struct {
	MaxBullets    int     `yaml:"max_bullets"`
	TopK          int     `yaml:"top_k"`
	MinConfidence float64 `yaml:"min_confidence"`
}

type SearchConfig struct {
	MaxResults int    `yaml:"max_results"`
	TagFilter  string `yaml:"tag_filter"`
}

type ResearchConfig struct {
	Questions  int `yaml:"questions"`
	MaxSources int `yaml:"max_sources"`
}

type RetryConfig struct {
	MaxAttempts int      `yaml:"max_attempts"`
	Backoff     Duration `yaml:"backoff"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Thinking ThinkingConfig `yaml:"thinking"`
	Web      WebConfig      `yaml:"web"`
	Memory   MemoryConfig   `yaml:"memory"`
	Search   SearchConfig   `yaml:"search"`
	Research ResearchConfig `yaml:"research"`
	Retry    RetryConfig    `yaml:"retry"`
	Plugins  []string       `yaml:"plugins"`
	Log      LogConfig      `yaml:"log"`
}

// Default is the configuration of a stock local install: ollama on
// localhost with a small coder model, thinking and web search on.
func Default() Config {
	return Config{
		Provider: ProviderConfig{
			Backend:       "ollama",
			Model:         "qwen2.5-coder:1.5b",
			BaseURL:       "http://localhost:11434",
			Temperature:   0.7,
			MaxTokens:     2048,
			ContextWindow: 8192,
		},
		Thinking: ThinkingConfig{Enabled: true},
		Web:      WebConfig{Enabled: true},
		Memory:   MemoryConfig{MaxBullets: 100, TopK: 10, MinConfidence: 0.5},
		Search:   SearchConfig{MaxResults: 10},
		Research: ResearchConfig{Questions: 3, MaxSources: 5},
		Retry:    RetryConfig{MaxAttempts: 3, Backoff: Duration(500 * time.Millisecond)},
		Log:      LogConfig{Level: "warn", Format: "console"},
	}
}

// Load reads the file at path over the defaults, then applies environment
// overrides. A missing file yields defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv lets the environment win over the file: log routing and the
// API key for the selected backend.
func (c *Config) applyEnv() {
	if level := os.Getenv("ACE_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if format := os.Getenv("ACE_LOG_FORMAT"); format != "" {
		c.Log.Format = format
	}

	var keyEnv string
	switch c.Provider.Backend {
	case "openai":
		keyEnv = "OPENAI_API_KEY"
	case "anthropic":
		keyEnv = "ANTHROPIC_API_KEY"
	case "gemini":
		keyEnv = "GEMINI_API_KEY"
	}
	if keyEnv != "" {
		if key := os.Getenv(keyEnv); key != "" {
			c.Provider.APIKey = key
		}
	}
}

// Validate rejects values the engine cannot run with.
func (c Config) Validate() error {
	switch c.Provider.Backend {
	case "ollama", "openai", "anthropic", "gemini", "stub":
	default:
		return fmt.Errorf("unknown provider backend %q", c.Provider.Backend)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}

	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}

	if c.Memory.MaxBullets <= 0 {
		return fmt.Errorf("memory.max_bullets must be positive, got %d", c.Memory.MaxBullets)
	}
	if c.Memory.TopK <= 0 {
		return fmt.Errorf("memory.top_k must be positive, got %d", c.Memory.TopK)
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be positive, got %d", c.Retry.MaxAttempts)
	}
	return nil
}

// DataDir resolves the state directory: $ACE_HOME when set, ~/.ace
// otherwise.
func DataDir() string {
	if dir := os.Getenv("ACE_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".ace")
}

// DefaultDBPath is the SQLite file inside the data directory.
func DefaultDBPath() string {
	return filepath.Join(DataDir(), "ace.db")
}

// DefaultConfigPath is the YAML file inside the data directory.
func DefaultConfigPath() string {
	return filepath.Join(DataDir(), "config.yaml")
}

// DefaultPromptsPath is the prompt override file inside the data directory.
func DefaultPromptsPath() string {
	return filepath.Join(DataDir(), "prompts.yaml")
}

// DefaultPluginsDir is scanned for search-source plugin binaries.
func DefaultPluginsDir() string {
	return filepath.Join(DataDir(), "plugins")
}
