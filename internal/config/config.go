package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/InfyniteHeap/gridcore/internal/checksum"
	"github.com/InfyniteHeap/gridcore/internal/logging"
	"github.com/InfyniteHeap/gridcore/internal/manifest"
	"github.com/InfyniteHeap/gridcore/internal/mirror"
	"github.com/InfyniteHeap/gridcore/internal/progress"
	"github.com/InfyniteHeap/gridcore/internal/store"
)

// Config defines configuration for the gridcore CLI.
type Config struct {
	Root              string        `yaml:"root"`
	Version           string        `yaml:"version"`
	Category          string        `yaml:"category"`
	Source            string        `yaml:"source"`
	MirrorBase        string        `yaml:"mirror_base"`
	Workers           int           `yaml:"workers"`
	Timeout           time.Duration `yaml:"timeout"`
	HashBuffer        int64         `yaml:"hash_buffer"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Progress          bool          `yaml:"progress"`
	LogLevel          string        `yaml:"log_level"`
	LogFormat         string        `yaml:"log_format"`
	Retry             RetryConfig   `yaml:"retry"`
}

// RetryConfig defines retry behavior.
type RetryConfig struct {
	Attempts int           `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
	MaxDelay time.Duration `yaml:"max_delay"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Root:       store.DefaultRoot(),
		Category:   string(manifest.Client),
		Source:     mirror.Official.String(),
		MirrorBase: mirror.DefaultBase,
		Workers:    runtime.NumCPU(),
		Timeout:    10 * time.Second,
		HashBuffer: checksum.DefaultBufferSize,
		LogLevel:   "info",
		LogFormat:  "text",
		Retry: RetryConfig{
			Attempts: 5,
			MaxDelay: 30 * time.Second,
		},
	}
}

// yamlConfig is used for YAML unmarshaling with string sizes and durations.
type yamlConfig struct {
	Root              string          `yaml:"root"`
	Version           string          `yaml:"version"`
	Category          string          `yaml:"category"`
	Source            string          `yaml:"source"`
	MirrorBase        string          `yaml:"mirror_base"`
	Workers           int             `yaml:"workers"`
	Timeout           string          `yaml:"timeout"`
	HashBuffer        string          `yaml:"hash_buffer"`
	RequestsPerSecond float64         `yaml:"requests_per_second"`
	Progress          bool            `yaml:"progress"`
	LogLevel          string          `yaml:"log_level"`
	LogFormat         string          `yaml:"log_format"`
	Retry             yamlRetryConfig `yaml:"retry"`
}

type yamlRetryConfig struct {
	Attempts int    `yaml:"attempts"`
	Delay    string `yaml:"delay"`
	MaxDelay string `yaml:"max_delay"`
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.Root != "" {
		cfg.Root = yc.Root
	}
	if yc.Version != "" {
		cfg.Version = yc.Version
	}
	if yc.Category != "" {
		cfg.Category = yc.Category
	}
	if yc.Source != "" {
		cfg.Source = yc.Source
	}
	if yc.MirrorBase != "" {
		cfg.MirrorBase = yc.MirrorBase
	}
	if yc.Workers != 0 {
		cfg.Workers = yc.Workers
	}
	if yc.Timeout != "" {
		d, err := time.ParseDuration(yc.Timeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if yc.HashBuffer != "" {
		size, err := progress.ParseBytes(yc.HashBuffer)
		if err != nil {
			return Config{}, fmt.Errorf("parse hash_buffer: %w", err)
		}
		cfg.HashBuffer = size
	}
	if yc.RequestsPerSecond != 0 {
		cfg.RequestsPerSecond = yc.RequestsPerSecond
	}
	cfg.Progress = yc.Progress
	if yc.LogLevel != "" {
		cfg.LogLevel = yc.LogLevel
	}
	if yc.LogFormat != "" {
		cfg.LogFormat = yc.LogFormat
	}
	if yc.Retry.Attempts != 0 {
		cfg.Retry.Attempts = yc.Retry.Attempts
	}
	if yc.Retry.Delay != "" {
		d, err := time.ParseDuration(yc.Retry.Delay)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.delay: %w", err)
		}
		cfg.Retry.Delay = d
	}
	if yc.Retry.MaxDelay != "" {
		d, err := time.ParseDuration(yc.Retry.MaxDelay)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.max_delay: %w", err)
		}
		cfg.Retry.MaxDelay = d
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the GRIDCORE_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("GRIDCORE_ROOT"); v != "" {
		c.Root = v
	}
	if v := os.Getenv("GRIDCORE_VERSION"); v != "" {
		c.Version = v
	}
	if v := os.Getenv("GRIDCORE_CATEGORY"); v != "" {
		c.Category = v
	}
	if v := os.Getenv("GRIDCORE_SOURCE"); v != "" {
		c.Source = v
	}
	if v := os.Getenv("GRIDCORE_MIRROR_BASE"); v != "" {
		c.MirrorBase = v
	}
	if v := os.Getenv("GRIDCORE_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse GRIDCORE_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := os.Getenv("GRIDCORE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse GRIDCORE_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	if v := os.Getenv("GRIDCORE_HASH_BUFFER"); v != "" {
		size, err := progress.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse GRIDCORE_HASH_BUFFER: %w", err)
		}
		c.HashBuffer = size
	}
	if v := os.Getenv("GRIDCORE_REQUESTS_PER_SECOND"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse GRIDCORE_REQUESTS_PER_SECOND: %w", err)
		}
		c.RequestsPerSecond = f
	}
	if v := os.Getenv("GRIDCORE_PROGRESS"); v != "" {
		c.Progress = v == "true" || v == "1"
	}
	if v := os.Getenv("GRIDCORE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("GRIDCORE_LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("GRIDCORE_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse GRIDCORE_RETRY_ATTEMPTS: %w", err)
		}
		c.Retry.Attempts = n
	}
	if v := os.Getenv("GRIDCORE_RETRY_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse GRIDCORE_RETRY_DELAY: %w", err)
		}
		c.Retry.Delay = d
	}
	if v := os.Getenv("GRIDCORE_RETRY_MAX_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse GRIDCORE_RETRY_MAX_DELAY: %w", err)
		}
		c.Retry.MaxDelay = d
	}

	return nil
}

// Validate validates the configuration. The release version is checked by
// the commands that need one.
func (c *Config) Validate() error {
	if c.Root == "" {
		return errors.New("config: root is required")
	}
	if _, err := c.DownloadSource(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := c.BuildCategory(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Workers <= 0 {
		return errors.New("config: workers must be positive")
	}
	if c.Timeout <= 0 {
		return errors.New("config: timeout must be positive")
	}
	if c.HashBuffer <= 0 {
		return errors.New("config: hash_buffer must be positive")
	}
	if c.RequestsPerSecond < 0 {
		return errors.New("config: requests_per_second must not be negative")
	}
	if c.Retry.Attempts <= 0 {
		return errors.New("config: retry.attempts must be positive")
	}
	if c.Retry.Delay < 0 || c.Retry.MaxDelay < 0 {
		return errors.New("config: retry delays must not be negative")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if !logging.ValidFormat(c.LogFormat) {
		return fmt.Errorf("config: unknown log_format %q", c.LogFormat)
	}
	return nil
}

// DownloadSource parses Source.
func (c *Config) DownloadSource() (mirror.Source, error) {
	return mirror.ParseSource(c.Source)
}

// BuildCategory parses Category.
func (c *Config) BuildCategory() (manifest.Category, error) {
	return manifest.ParseCategory(c.Category)
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.Root != "" {
		c.Root = override.Root
	}
	if override.Version != "" {
		c.Version = override.Version
	}
	if override.Category != "" {
		c.Category = override.Category
	}
	if override.Source != "" {
		c.Source = override.Source
	}
	if override.MirrorBase != "" {
		c.MirrorBase = override.MirrorBase
	}
	if override.Workers != 0 {
		c.Workers = override.Workers
	}
	if override.Timeout != 0 {
		c.Timeout = override.Timeout
	}
	if override.HashBuffer != 0 {
		c.HashBuffer = override.HashBuffer
	}
	if override.RequestsPerSecond != 0 {
		c.RequestsPerSecond = override.RequestsPerSecond
	}
	if override.Progress {
		c.Progress = override.Progress
	}
	if override.LogLevel != "" {
		c.LogLevel = override.LogLevel
	}
	if override.LogFormat != "" {
		c.LogFormat = override.LogFormat
	}
	if override.Retry.Attempts != 0 {
		c.Retry.Attempts = override.Retry.Attempts
	}
	if override.Retry.Delay != 0 {
		c.Retry.Delay = override.Retry.Delay
	}
	if override.Retry.MaxDelay != 0 {
		c.Retry.MaxDelay = override.Retry.MaxDelay
	}
	return c
}
