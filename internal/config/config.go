// Package config holds the persisted application settings and user
// preferences the engine consults at runtime.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// Settings is the YAML settings document. Preference fields (default
// source position and removal) are written back at runtime; the rest is
// user-edited.
type Settings struct {
	DataDir               string `yaml:"data_dir"`
	APIToken              string `yaml:"api_token"`
	Prereleases           bool   `yaml:"prereleases"`
	AllowMeteredDownloads bool   `yaml:"allow_metered_downloads"`
	// DefaultSourceURL seeds the official source record when none exists.
	DefaultSourceURL string `yaml:"default_source_url"`
	// DefaultSourceRemoved hides the official source instead of
	// deleting its identity.
	DefaultSourceRemoved bool `yaml:"default_source_removed"`
	// DefaultSourcePosition is the remembered sort position of the
	// official source, re-applied on every reload.
	DefaultSourcePosition    int    `yaml:"default_source_position"`
	NotifyURL                string `yaml:"notify_url"`
	CountUnspecifiedVersions bool   `yaml:"count_unspecified_versions"`
}

func defaults() Settings {
	return Settings{
		DataDir:          "patchbay_data",
		DefaultSourceURL: "https://github.com/patchbay-tools/bundles",
	}
}

// Config is a concurrency-safe view over the settings file.
type Config struct {
	mu       sync.RWMutex
	path     string
	settings Settings
}

// Load reads the settings file at path, applying defaults and
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	settings := defaults()
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading settings: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &settings); err != nil {
			return nil, fmt.Errorf("parsing settings %s: %w", path, err)
		}
	}
	applyEnv(&settings)
	return &Config{path: path, settings: settings}, nil
}

// applyEnv lets environment variables override file values, matching
// how the hub binary is commonly deployed.
func applyEnv(s *Settings) {
	if v, ok := os.LookupEnv("PATCHBAY_DATA_DIR"); ok {
		s.DataDir = v
	}
	if v, ok := os.LookupEnv("PATCHBAY_API_TOKEN"); ok {
		s.APIToken = v
	}
	if v, ok := os.LookupEnv("PATCHBAY_PRERELEASES"); ok {
		s.Prereleases = cast.ToBool(v)
	}
	if v, ok := os.LookupEnv("PATCHBAY_ALLOW_METERED"); ok {
		s.AllowMeteredDownloads = cast.ToBool(v)
	}
	if v, ok := os.LookupEnv("PATCHBAY_NOTIFY_URL"); ok {
		s.NotifyURL = v
	}
}

// Get returns a copy of the current settings.
func (c *Config) Get() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

// Update mutates the settings and writes them back to disk.
func (c *Config) Update(mutate func(*Settings)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	mutate(&c.settings)
	return c.save()
}

func (c *Config) save() error {
	data, err := yaml.Marshal(c.settings)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(c.path, data, 0o644)
}

// SourcesDir is the directory holding per-source content directories.
func (c *Config) SourcesDir() string {
	return filepath.Join(c.Get().DataDir, "sources")
}

// RecordsPath is the bundle record database file.
func (c *Config) RecordsPath() string {
	return filepath.Join(c.Get().DataDir, "records.db")
}
