package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Sync struct {
		Debounce           time.Duration `yaml:"debounce"`
		QueueCapacity      int           `yaml:"queue_capacity"`
		AutoFixDuplicates  bool          `yaml:"auto_fix_duplicates"`
		PreserveFormatting bool          `yaml:"preserve_formatting"`
	} `yaml:"sync"`
	Generator struct {
		InsertMetadata bool `yaml:"insert_metadata"`
	} `yaml:"generator"`
	Storage struct {
		Path string `yaml:"path"` // SQLite snapshot database; empty disables it
	} `yaml:"storage"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"` // rotated log file; empty logs to stderr
	} `yaml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.Sync.Debounce = 50 * time.Millisecond
	cfg.Sync.QueueCapacity = 256
	cfg.Sync.PreserveFormatting = true
	cfg.Generator.InsertMetadata = true
	cfg.Storage.Path = "codetwin.db"
	cfg.Log.Level = "info"
	return &cfg
}

// LoadConfig reads path on top of the defaults. A missing file is not an
// error. Environment variables (CODETWIN_*, also read from .env) win over
// the file.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	// 2. Load YAML config
	cfg := Default()
	file, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, err
	}

	// 3. Override with Environment Variables if present
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the sync layer cannot run with.
func (c *Config) Validate() error {
	if c.Sync.Debounce < 0 {
		return fmt.Errorf("sync.debounce must not be negative, got %s", c.Sync.Debounce)
	}
	if c.Sync.QueueCapacity <= 0 {
		return fmt.Errorf("sync.queue_capacity must be positive, got %d", c.Sync.QueueCapacity)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("CODETWIN_DEBOUNCE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CODETWIN_DEBOUNCE: %w", err)
		}
		cfg.Sync.Debounce = d
	}
	if v := os.Getenv("CODETWIN_QUEUE_CAPACITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CODETWIN_QUEUE_CAPACITY: %w", err)
		}
		cfg.Sync.QueueCapacity = n
	}
	for name, dst := range map[string]*bool{
		"CODETWIN_AUTO_FIX_DUPLICATES": &cfg.Sync.AutoFixDuplicates,
		"CODETWIN_PRESERVE_FORMATTING": &cfg.Sync.PreserveFormatting,
		"CODETWIN_INSERT_METADATA":     &cfg.Generator.InsertMetadata,
	} {
		if v := os.Getenv(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = b
		}
	}
	if v := os.Getenv("CODETWIN_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("CODETWIN_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("CODETWIN_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
	return nil
}
