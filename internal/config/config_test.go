package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Provider.Backend != "ollama" {
		t.Errorf("expected ollama backend, got %s", cfg.Provider.Backend)
	}
	if cfg.Provider.Model != "qwen2.5-coder:1.5b" {
		t.Errorf("unexpected default model: %s", cfg.Provider.Model)
	}
	if !cfg.Thinking.Enabled || !cfg.Web.Enabled {
		t.Error("thinking and web should default on")
	}
	if cfg.Memory.MaxBullets != 100 || cfg.Memory.TopK != 10 {
		t.Errorf("unexpected memory defaults: %+v", cfg.Memory)
	}
	if cfg.Retry.Backoff.Std() != 500*time.Millisecond {
		t.Errorf("unexpected retry backoff: %v", cfg.Retry.Backoff.Std())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
provider:
  backend: stub
  model: test-model
thinking:
  enabled: false
retry:
  max_attempts: 5
  backoff: 2s
plugins:
  - /usr/local/bin/ace-source-jira
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Provider.Backend != "stub" || cfg.Provider.Model != "test-model" {
		t.Errorf("file values not applied: %+v", cfg.Provider)
	}
	if cfg.Thinking.Enabled {
		t.Error("explicit false should override default true")
	}
	if cfg.Retry.MaxAttempts != 5 || cfg.Retry.Backoff.Std() != 2*time.Second {
		t.Errorf("retry not applied: %+v", cfg.Retry)
	}
	if len(cfg.Plugins) != 1 || !strings.HasSuffix(cfg.Plugins[0], "ace-source-jira") {
		t.Errorf("plugins not applied: %v", cfg.Plugins)
	}

	// Untouched sections keep their defaults.
	if cfg.Memory.TopK != 10 || cfg.Search.MaxResults != 10 {
		t.Errorf("defaults lost on partial file: %+v %+v", cfg.Memory, cfg.Search)
	}
	if !cfg.Web.Enabled {
		t.Error("web default should survive a file that does not mention it")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.Provider.Backend != "ollama" {
		t.Errorf("expected defaults, got %+v", cfg.Provider)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("provider: [not a map"), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoad_BadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("retry:\n  backoff: fast\n"), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected duration parse error")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
provider:
  backend: openai
  api_key: from-file
log:
  level: info
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("ACE_LOG_LEVEL", "debug")
	t.Setenv("ACE_LOG_FORMAT", "json")
	t.Setenv("OPENAI_API_KEY", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("env should win over file: %+v", cfg.Log)
	}
	if cfg.Provider.APIKey != "from-env" {
		t.Errorf("key env should win over file, got %s", cfg.Provider.APIKey)
	}
}

func TestLoad_KeyEnvMatchesBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("provider:\n  backend: anthropic\n"), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("OPENAI_API_KEY", "wrong-backend")
	t.Setenv("ANTHROPIC_API_KEY", "right-backend")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider.APIKey != "right-backend" {
		t.Errorf("expected the backend's own key env, got %s", cfg.Provider.APIKey)
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults pass", func(c *Config) {}, false},
		{"stub backend passes", func(c *Config) { c.Provider.Backend = "stub" }, false},
		{"unknown backend", func(c *Config) { c.Provider.Backend = "llamafile" }, true},
		{"unknown log level", func(c *Config) { c.Log.Level = "loud" }, true},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }, true},
		{"zero max bullets", func(c *Config) { c.Memory.MaxBullets = 0 }, true},
		{"zero top k", func(c *Config) { c.Memory.TopK = 0 }, true},
		{"zero retry attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestDataDir(t *testing.T) {
	custom := t.TempDir()
	t.Setenv("ACE_HOME", custom)
	if got := DataDir(); got != custom {
		t.Errorf("ACE_HOME should win: got %s, want %s", got, custom)
	}
	if got := DefaultDBPath(); got != filepath.Join(custom, "ace.db") {
		t.Errorf("unexpected db path: %s", got)
	}
	if got := DefaultPromptsPath(); got != filepath.Join(custom, "prompts.yaml") {
		t.Errorf("unexpected prompts path: %s", got)
	}
	if got := DefaultPluginsDir(); got != filepath.Join(custom, "plugins") {
		t.Errorf("unexpected plugins dir: %s", got)
	}

	t.Setenv("ACE_HOME", "")
	if got := DataDir(); !strings.HasSuffix(got, ".ace") {
		t.Errorf("expected ~/.ace fallback, got %s", got)
	}
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("provider:\n  backend: ollama\n"), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan Config, 4)
	if err := Watch(ctx, path, func(cfg Config) { updates <- cfg }); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	if err := os.WriteFile(path, []byte("provider:\n  backend: stub\n"), 0600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-updates:
		if cfg.Provider.Backend != "stub" {
			t.Errorf("expected reloaded backend stub, got %s", cfg.Provider.Backend)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload delivered")
	}
}

func TestWatch_MissingDir(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := Watch(ctx, filepath.Join(t.TempDir(), "nope", "config.yaml"), func(Config) {})
	if err == nil {
		t.Error("expected error for unwatchable directory")
	}
}
