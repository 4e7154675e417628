package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Addr != ":8080" || cfg.Server.WriteTimeout != 60*time.Second {
		t.Errorf("unexpected server defaults %+v", cfg.Server)
	}
	if cfg.Fetch.Timeout != 10*time.Second || cfg.Fetch.DelayMin != 500*time.Millisecond || cfg.Fetch.DelayMax != 1500*time.Millisecond {
		t.Errorf("unexpected fetch defaults %+v", cfg.Fetch)
	}
	if cfg.Fetch.Fingerprint != "chrome" || cfg.Fetch.Referer != "https://www.google.com/" {
		t.Errorf("unexpected identity defaults %+v", cfg.Fetch)
	}
	if !cfg.Sources.Feed.Enabled || cfg.Sources.Feed.Name != "Daraz" || cfg.Sources.Feed.ItemsPath != "mods.listItems" {
		t.Errorf("unexpected feed defaults %+v", cfg.Sources.Feed)
	}
	if !cfg.Sources.Markup.Enabled || cfg.Sources.Markup.BaseURL != "https://www.olx.com.pk" {
		t.Errorf("unexpected markup defaults %+v", cfg.Sources.Markup)
	}
	if cfg.Sources.Mock.Enabled {
		t.Error("expected mock source disabled by default")
	}
	if cfg.Sources.MaxItems != 10 || cfg.Sources.FallbackLocation != "unknown region" {
		t.Errorf("unexpected source defaults %+v", cfg.Sources)
	}
	if cfg.Matcher.Threshold != 0.4 || cfg.Matcher.MinOverlap != 0.5 {
		t.Errorf("unexpected matcher defaults %+v", cfg.Matcher)
	}
	if cfg.Pricing.SuggestedMinRatio != 0.9 || cfg.Pricing.SuggestedMaxRatio != 1.05 {
		t.Errorf("unexpected pricing defaults %+v", cfg.Pricing)
	}
	if cfg.Storage.Backend != "none" || cfg.Log.Format != "text" {
		t.Errorf("unexpected storage/log defaults %+v %+v", cfg.Storage, cfg.Log)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "haggle.yaml")
	content := `
server:
  addr: ":9090"
fetch:
  delay_min: 0s
  delay_max: 0s
  user_agents:
    - "Agent/1"
    - "Agent/2"
matcher:
  threshold: 0.6
  stopwords: ["for", "with"]
storage:
  backend: sqlite
  dsn: haggle.db
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("HAGGLE_SERVER_ADDR", ":7070")
	t.Setenv("HAGGLE_PRICING_SUGGESTED_MAX_RATIO", "1.2")
	t.Setenv("HAGGLE_SOURCES_MOCK_ENABLED", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Addr != ":7070" {
		t.Errorf("expected env to override file, got %q", cfg.Server.Addr)
	}
	if cfg.Pricing.SuggestedMaxRatio != 1.2 {
		t.Errorf("expected env ratio, got %v", cfg.Pricing.SuggestedMaxRatio)
	}
	if !cfg.Sources.Mock.Enabled {
		t.Error("expected mock source enabled from env")
	}
	if cfg.Fetch.DelayMax != 0 {
		t.Errorf("expected file delay, got %v", cfg.Fetch.DelayMax)
	}
	if len(cfg.Fetch.UserAgents) != 2 || cfg.Fetch.UserAgents[1] != "Agent/2" {
		t.Errorf("unexpected user agents %v", cfg.Fetch.UserAgents)
	}
	if cfg.Matcher.Threshold != 0.6 || len(cfg.Matcher.Stopwords) != 2 {
		t.Errorf("unexpected matcher %+v", cfg.Matcher)
	}
	if cfg.Storage.Backend != "sqlite" || cfg.Storage.DSN != "haggle.db" {
		t.Errorf("unexpected storage %+v", cfg.Storage)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	const key = "HAGGLE_LOG_LEVEL"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(key+"=debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// godotenv writes to the process environment directly.
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected level from .env, got %q", cfg.Log.Level)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Chdir(t.TempDir())

	if _, err := Load("does-not-exist.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())

	base, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero ratio", func(c *Config) { c.Pricing.SuggestedMinRatio = 0 }, "pricing ratios"},
		{"negative ratio", func(c *Config) { c.Pricing.SuggestedMaxRatio = -1 }, "pricing ratios"},
		{"delay order", func(c *Config) { c.Fetch.DelayMin = 2 * time.Second }, "fetch.delay_min"},
		{"threshold", func(c *Config) { c.Matcher.Threshold = 1.5 }, "matcher.threshold"},
		{"overlap", func(c *Config) { c.Matcher.MinOverlap = -0.1 }, "matcher.min_overlap"},
		{"backend", func(c *Config) { c.Storage.Backend = "redis" }, "storage.backend"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *base
			tt.mutate(&c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}

	if err := base.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}
