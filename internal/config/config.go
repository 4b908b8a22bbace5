// Package config loads runtime settings from the user's YAML config file,
// writing a default file on first run.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	appDirName     = "speedy-reader"
	configFileName = "config.yaml"
	dbFileName     = "feeds.db"
)

// Config holds runtime settings for the app. API keys are optional; features
// backed by them degrade gracefully when unset.
type Config struct {
	DBPath                 string   `yaml:"db_path"`
	AnthropicAPIKey        string   `yaml:"anthropic_api_key,omitempty"`
	RaindropToken          string   `yaml:"raindrop_token,omitempty"`
	RefreshIntervalMinutes int      `yaml:"refresh_interval_minutes"`
	DefaultTags            []string `yaml:"default_tags"`
}

// Load reads the config file, creating it with defaults when absent.
func Load() (Config, error) {
	path, err := configPath()
	if err != nil {
		return Config{}, err
	}
	return LoadFromFile(path)
}

func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg, derr := defaults()
		if derr != nil {
			return Config{}, derr
		}
		if werr := writeConfig(path, cfg); werr != nil {
			return Config{}, werr
		}
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg, err := defaults()
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("db_path is required")
	}
	if c.RefreshIntervalMinutes <= 0 {
		return fmt.Errorf("refresh_interval_minutes must be positive: %d", c.RefreshIntervalMinutes)
	}
	return nil
}

func defaults() (Config, error) {
	dataDir, err := defaultDataDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		DBPath:                 filepath.Join(dataDir, dbFileName),
		RefreshIntervalMinutes: 30,
		DefaultTags:            []string{"rss"},
	}, nil
}

func writeConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func configPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, appDirName, configFileName), nil
}

func defaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	dir := filepath.Join(home, ".local", "share", appDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	return dir, nil
}
