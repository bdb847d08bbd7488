// Package config loads CLI configuration from composite.yaml, COMPOSITE_
// environment variables and command-line flags.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all CLI configuration options.
type Config struct {
	DatabasePath string `mapstructure:"database"`
	SpecsDir     string `mapstructure:"specs"`
	LogLevel     string `mapstructure:"log_level"`
	MaxDeletes   int    `mapstructure:"max_deletes"`
}

// Default configuration values.
const (
	DefaultDatabase   = "composite.db"
	DefaultSpecsDir   = "specs"
	DefaultLogLevel   = "info"
	DefaultMaxDeletes = 1000
)

// configFiles are tried in order when no file is given explicitly.
var configFiles = []string{
	"composite.yaml",
	"composite.yml",
	".composite.yaml",
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"db":          "database",
	"specs":       "specs",
	"log-level":   "log_level",
	"max-deletes": "max_deletes",
}

// Load reads configuration. Precedence, highest first: flags that were set,
// COMPOSITE_* environment variables, the config file, defaults.
//
// flags may be nil. Flags missing from the set are ignored.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetDefault("database", DefaultDatabase)
	v.SetDefault("specs", DefaultSpecsDir)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("max_deletes", DefaultMaxDeletes)

	v.SetEnvPrefix("COMPOSITE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	} else {
		for _, path := range configFiles {
			if _, err := os.Stat(path); err == nil {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return nil, fmt.Errorf("error reading config file %s: %w", path, err)
				}
				break
			}
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag --%s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database path must not be empty")
	}
	if c.MaxDeletes < 1 {
		return fmt.Errorf("max_deletes must be at least 1, got %d", c.MaxDeletes)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel ("debug", "info", "warn", "error").
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return level, nil
}
