package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromFile_CreatesDefaultsOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile returned error: %v", err)
	}
	if cfg.DBPath == "" {
		t.Fatal("expected default db path")
	}
	if cfg.RefreshIntervalMinutes != 30 {
		t.Fatalf("expected default refresh interval 30, got %d", cfg.RefreshIntervalMinutes)
	}
	if len(cfg.DefaultTags) != 1 || cfg.DefaultTags[0] != "rss" {
		t.Fatalf("expected default tags [rss], got %v", cfg.DefaultTags)
	}
	if cfg.AnthropicAPIKey != "" || cfg.RaindropToken != "" {
		t.Fatal("expected api keys unset by default")
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file written on first run: %v", err)
	}
}

func TestLoadFromFile_ReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `db_path: /tmp/test-feeds.db
anthropic_api_key: sk-test
raindrop_token: rd-test
refresh_interval_minutes: 15
default_tags: [rss, news]
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile returned error: %v", err)
	}
	if cfg.DBPath != "/tmp/test-feeds.db" {
		t.Fatalf("unexpected db path: %q", cfg.DBPath)
	}
	if cfg.AnthropicAPIKey != "sk-test" || cfg.RaindropToken != "rd-test" {
		t.Fatalf("unexpected keys: %+v", cfg)
	}
	if cfg.RefreshIntervalMinutes != 15 {
		t.Fatalf("unexpected interval: %d", cfg.RefreshIntervalMinutes)
	}
	if len(cfg.DefaultTags) != 2 || cfg.DefaultTags[1] != "news" {
		t.Fatalf("unexpected tags: %v", cfg.DefaultTags)
	}
}

func TestLoadFromFile_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("anthropic_api_key: sk-only\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile returned error: %v", err)
	}
	if cfg.AnthropicAPIKey != "sk-only" {
		t.Fatalf("unexpected key: %q", cfg.AnthropicAPIKey)
	}
	if cfg.RefreshIntervalMinutes != 30 {
		t.Fatalf("expected default interval preserved, got %d", cfg.RefreshIntervalMinutes)
	}
}

func TestLoadFromFile_RejectsBadInterval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("refresh_interval_minutes: -5\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Fatal("expected validation error for negative interval")
	}
}
