// Package config loads kotlite.toml.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "kotlite.toml"

type Config struct {
	Interpreter Interpreter `toml:"interpreter"`
	Repl        Repl        `toml:"repl"`
}

type Interpreter struct {
	MaxCallDepth int    `toml:"max_call_depth"`
	LogLevel     string `toml:"log_level"`
	// CacheSize is the compile cache size; negative disables the cache.
	CacheSize int `toml:"cache_size"`
	// Modules names the standard modules to install, in order.
	Modules []string `toml:"modules"`
	// MetricsAddr, when set, serves Prometheus metrics on this address.
	MetricsAddr string `toml:"metrics_addr"`
	// ParseWorkers is the number of files `check` parses at once; 0 means one per CPU.
	ParseWorkers int `toml:"parse_workers"`
}

type Repl struct {
	Prompt      string `toml:"prompt"`
	HistoryFile string `toml:"history_file"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(data))
}

// LoadOptional loads path when it exists and falls back to the defaults otherwise.
func LoadOptional(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Parse decodes TOML config text.
func Parse(data string) (*Config, error) {
	var cfg Config
	md, err := toml.Decode(data, &cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Interpreter.LogLevel) == "" {
		cfg.Interpreter.LogLevel = "warn"
	}
	if cfg.Interpreter.Modules == nil {
		cfg.Interpreter.Modules = []string{"core", "numbers", "text", "regex", "collections", "exceptions"}
	}
	if cfg.Repl.Prompt == "" {
		cfg.Repl.Prompt = ">>> "
	}
	if strings.TrimSpace(cfg.Repl.HistoryFile) == "" {
		cfg.Repl.HistoryFile = ".kotlite_history"
	}
}

func validate(cfg *Config) error {
	if cfg.Interpreter.MaxCallDepth < 0 {
		return fmt.Errorf("interpreter.max_call_depth must not be negative, got %d", cfg.Interpreter.MaxCallDepth)
	}
	if cfg.Interpreter.ParseWorkers < 0 {
		return fmt.Errorf("interpreter.parse_workers must not be negative, got %d", cfg.Interpreter.ParseWorkers)
	}
	if _, err := ParseLevel(cfg.Interpreter.LogLevel); err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, m := range cfg.Interpreter.Modules {
		if seen[m] {
			return fmt.Errorf("interpreter.modules lists %q twice", m)
		}
		seen[m] = true
	}
	return nil
}

// ParseLevel maps a log level name to its slog level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("invalid interpreter.log_level %q", name)
	}
	return level, nil
}
