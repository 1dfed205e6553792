// Package config loads daemon settings from an optional YAML file overlaid
// with ICONCACHE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable, e.g. ICONCACHE_CACHE_DIR.
const EnvPrefix = "ICONCACHE_"

// Config holds the daemon settings.
type Config struct {
	CacheDir         string        `yaml:"cache_dir" env:"CACHE_DIR"`
	MaxCacheSizeMB   int           `yaml:"max_cache_size_mb" env:"MAX_CACHE_SIZE_MB"`
	CacheDaysToLive  int           `yaml:"cache_days_to_live" env:"CACHE_DAYS_TO_LIVE"`
	MemoryMaxEntries int           `yaml:"memory_max_entries" env:"MEMORY_MAX_ENTRIES"`
	MemoryMaxMB      int           `yaml:"memory_max_mb" env:"MEMORY_MAX_MB"`
	PreloadWorkers   int           `yaml:"preload_workers" env:"PRELOAD_WORKERS"`
	CleanupInterval  time.Duration `yaml:"cleanup_interval" env:"CLEANUP_INTERVAL"`
	HTTPAddr         string        `yaml:"http_addr" env:"HTTP_ADDR"`
	LogLevel         string        `yaml:"log_level" env:"LOG_LEVEL"`
	OTelEndpoint     string        `yaml:"otel_endpoint" env:"OTEL_ENDPOINT"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		CacheDir:         defaultCacheDir(),
		MaxCacheSizeMB:   500,
		CacheDaysToLive:  7,
		MemoryMaxEntries: 100,
		MemoryMaxMB:      50,
		PreloadWorkers:   2,
		CleanupInterval:  time.Hour,
		HTTPAddr:         ":8080",
		LogLevel:         "info",
	}
}

func defaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "iconcache", "icons")
}

// Load returns Default overlaid with the YAML file at path, when path is
// not empty, and then with the process environment.
func Load(path string) (Config, error) {
	return load(path, nil)
}

// load is Load with an explicit environment; nil means the process one.
func load(path string, environ map[string]string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{
		Prefix:      EnvPrefix,
		Environment: environ,
	}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate reports settings the daemon cannot run with.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.CacheDir) == "" {
		errs = append(errs, errors.New("cache_dir is empty"))
	}
	if c.MaxCacheSizeMB < 0 {
		errs = append(errs, errors.New("max_cache_size_mb is negative"))
	}
	if c.CacheDaysToLive < 0 {
		errs = append(errs, errors.New("cache_days_to_live is negative"))
	}
	if c.MemoryMaxEntries < 1 {
		errs = append(errs, errors.New("memory_max_entries must be positive"))
	}
	if c.MemoryMaxMB < 1 {
		errs = append(errs, errors.New("memory_max_mb must be positive"))
	}
	if c.PreloadWorkers < 1 {
		errs = append(errs, errors.New("preload_workers must be positive"))
	}
	if c.CleanupInterval < 0 {
		errs = append(errs, errors.New("cleanup_interval is negative"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Level parses LogLevel ("debug", "info", "warn", "error").
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// MemoryMaxBytes is MemoryMaxMB in bytes.
func (c Config) MemoryMaxBytes() int64 {
	return int64(c.MemoryMaxMB) << 20
}
