// Package config handles layered YAML configuration with environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all stepdiff configuration.
type Config struct {
	Git    Git    `yaml:"git"`
	Cache  Cache  `yaml:"cache"`
	Loader Loader `yaml:"loader"`
	Diff   Diff   `yaml:"diff"`
	Log    Log    `yaml:"log"`
}

// Git selects the revisions to compare.
type Git struct {
	Base string `yaml:"base"`
	Head string `yaml:"head"` // Empty compares against the working tree.
}

// Cache sizes the artifact cache tiers.
type Cache struct {
	Strong int `yaml:"strong"`
	Weak   int `yaml:"weak"`
}

// Loader holds background build settings.
type Loader struct {
	Workers int           `yaml:"workers"`
	Timeout time.Duration `yaml:"timeout"` // Zero disables the limit.
}

// Diff holds artifact builder settings.
type Diff struct {
	Context  int `yaml:"context"`
	MaxBytes int `yaml:"max_bytes"` // Zero disables the limit.
}

// Log holds log file settings.
type Log struct {
	File       string `yaml:"file"`  // Empty disables logging.
	Level      string `yaml:"level"` // "debug" | "info" | "warn" | "error"
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Git: Git{
			Base: "HEAD",
		},
		Cache: Cache{
			Strong: 5,
			Weak:   5,
		},
		Loader: Loader{
			Workers: 2,
			Timeout: 30 * time.Second,
		},
		Diff: Diff{
			Context:  3,
			MaxBytes: 4 << 20,
		},
		Log: Log{
			File:       ".stepdiff/stepdiff.log",
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Load reads a single YAML config file at path and returns a Config.
// For merging multiple config sources, use LoadLayered instead.
// If the file does not exist, defaults are returned without error.
// If the file contains invalid YAML or unknown fields, an error is returned.
func Load(path string) (*Config, error) {
	return LoadLayered(path)
}

// LoadLayered loads config from multiple paths with increasing priority.
// Later paths override earlier ones. Missing files are skipped.
func LoadLayered(paths ...string) (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range paths {
		layer, err := loadLayer(path)
		if err != nil {
			return nil, err
		}
		if layer == nil {
			continue
		}
		cfg.merge(layer)
	}

	return &cfg, nil
}

// Validate checks that config values are usable.
func (c *Config) Validate() error {
	if c.Git.Base == "" {
		return errors.New("config: git.base cannot be empty")
	}
	if c.Cache.Strong <= 0 {
		return fmt.Errorf("config: cache.strong must be positive, got %d", c.Cache.Strong)
	}
	if c.Cache.Weak < 0 {
		return fmt.Errorf("config: cache.weak must be non-negative, got %d", c.Cache.Weak)
	}
	if c.Loader.Workers <= 0 {
		return fmt.Errorf("config: loader.workers must be positive, got %d", c.Loader.Workers)
	}
	if c.Loader.Timeout < 0 {
		return fmt.Errorf("config: loader.timeout must be non-negative, got %v", c.Loader.Timeout)
	}
	if c.Diff.Context < 0 {
		return fmt.Errorf("config: diff.context must be non-negative, got %d", c.Diff.Context)
	}
	if c.Diff.MaxBytes < 0 {
		return fmt.Errorf("config: diff.max_bytes must be non-negative, got %d", c.Diff.MaxBytes)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("config: log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	if c.Log.MaxSizeMB < 0 {
		return fmt.Errorf("config: log.max_size_mb must be non-negative, got %d", c.Log.MaxSizeMB)
	}
	if c.Log.MaxBackups < 0 {
		return fmt.Errorf("config: log.max_backups must be non-negative, got %d", c.Log.MaxBackups)
	}
	return nil
}

// ApplyEnv applies environment variable overrides to the config.
// Supported variables: STEPDIFF_BASE, STEPDIFF_HEAD, STEPDIFF_WORKERS,
// STEPDIFF_TIMEOUT, STEPDIFF_LOG_FILE, STEPDIFF_LOG_LEVEL.
// STEPDIFF_HEAD and STEPDIFF_LOG_FILE apply even when set to the empty string.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("STEPDIFF_BASE"); v != "" {
		c.Git.Base = v
	}
	if v, ok := os.LookupEnv("STEPDIFF_HEAD"); ok {
		c.Git.Head = v
	}
	if v := os.Getenv("STEPDIFF_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid STEPDIFF_WORKERS %q: %w", v, err)
		}
		c.Loader.Workers = n
	}
	if v := os.Getenv("STEPDIFF_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: invalid STEPDIFF_TIMEOUT %q: %w", v, err)
		}
		c.Loader.Timeout = d
	}
	if v, ok := os.LookupEnv("STEPDIFF_LOG_FILE"); ok {
		c.Log.File = v
	}
	if v := os.Getenv("STEPDIFF_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// rawConfig mirrors Config but uses pointers to distinguish set vs unset fields.
type rawConfig struct {
	Git    *rawGit    `yaml:"git"`
	Cache  *rawCache  `yaml:"cache"`
	Loader *rawLoader `yaml:"loader"`
	Diff   *rawDiff   `yaml:"diff"`
	Log    *rawLog    `yaml:"log"`
}

type rawGit struct {
	Base *string `yaml:"base"`
	Head *string `yaml:"head"`
}

type rawCache struct {
	Strong *int `yaml:"strong"`
	Weak   *int `yaml:"weak"`
}

type rawLoader struct {
	Workers *int           `yaml:"workers"`
	Timeout *time.Duration `yaml:"timeout"`
}

type rawDiff struct {
	Context  *int `yaml:"context"`
	MaxBytes *int `yaml:"max_bytes"`
}

type rawLog struct {
	File       *string `yaml:"file"`
	Level      *string `yaml:"level"`
	MaxSizeMB  *int    `yaml:"max_size_mb"`
	MaxBackups *int    `yaml:"max_backups"`
}

// loadLayer reads a single config file into a rawConfig for selective merging.
// Returns nil if the file does not exist. Rejects unknown fields.
func loadLayer(path string) (*rawConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if len(data) == 0 {
		return nil, nil
	}

	var raw rawConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		// Comment-only YAML files produce EOF with no decoded content.
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return &raw, nil
}

// set copies *src into *dst when src is non-nil.
func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// merge applies non-nil fields from a rawConfig layer onto this Config.
func (c *Config) merge(layer *rawConfig) {
	if g := layer.Git; g != nil {
		set(&c.Git.Base, g.Base)
		set(&c.Git.Head, g.Head)
	}
	if cc := layer.Cache; cc != nil {
		set(&c.Cache.Strong, cc.Strong)
		set(&c.Cache.Weak, cc.Weak)
	}
	if l := layer.Loader; l != nil {
		set(&c.Loader.Workers, l.Workers)
		set(&c.Loader.Timeout, l.Timeout)
	}
	if d := layer.Diff; d != nil {
		set(&c.Diff.Context, d.Context)
		set(&c.Diff.MaxBytes, d.MaxBytes)
	}
	if l := layer.Log; l != nil {
		set(&c.Log.File, l.File)
		set(&c.Log.Level, l.Level)
		set(&c.Log.MaxSizeMB, l.MaxSizeMB)
		set(&c.Log.MaxBackups, l.MaxBackups)
	}
}
