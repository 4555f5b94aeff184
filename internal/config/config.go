// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BizBox Contributors

// Package config loads host configuration from YAML files and command
// line flags.
package config

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config is the host process configuration.
type Config struct {
	Log     LogConfig     `koanf:"log"`
	Metrics MetricsConfig `koanf:"metrics"`
	DB      DBConfig      `koanf:"db"`
	Plugins PluginsConfig `koanf:"plugins"`
}

// LogConfig controls structured logging output.
type LogConfig struct {
	// Format is "json" or "text".
	Format string `koanf:"format"`
	// Level is "debug", "info", "warn", or "error".
	Level string `koanf:"level"`
}

// MetricsConfig controls the observability HTTP server.
type MetricsConfig struct {
	// Addr is the listen address; empty disables the server.
	Addr string `koanf:"addr"`
}

// DBConfig controls the tenant enablement store connection.
type DBConfig struct {
	URL string `koanf:"url"`
}

// PluginsConfig controls registry construction and startup.
type PluginsConfig struct {
	// Dir is scanned for plugin.yaml manifests at startup.
	Dir string `koanf:"dir"`
	// Enabled lists plugin ids to initialize eagerly when no
	// enablement store is configured.
	Enabled []string `koanf:"enabled"`
	// StrictCompatibility blocks initialization on error-severity
	// compatibility issues.
	StrictCompatibility bool `koanf:"strict-compatibility"`
	// ConstraintMatching interprets dependency versions as semver
	// constraints instead of comparing strings literally.
	ConstraintMatching bool `koanf:"constraint-matching"`
	// CollectHandlerErrors isolates failing hook and event handlers
	// instead of the default fail-fast behavior.
	CollectHandlerErrors bool `koanf:"collect-handler-errors"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log:     LogConfig{Format: "json", Level: "info"},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9100"},
		Plugins: PluginsConfig{Dir: "plugins"},
	}
}

// Load builds the configuration by layering an optional YAML file and
// optional command line flags over the defaults. Later layers win.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if flags != nil {
		// Only explicitly set flags override the file layer; flag
		// defaults are all empty and must not clobber anything.
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return f.Name, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, fmt.Errorf("load config flags: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks configuration constraints.
func (c *Config) Validate() error {
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("invalid log format %q: must be 'json' or 'text'", c.Log.Format)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q: must be 'debug', 'info', 'warn', or 'error'", c.Log.Level)
	}
	return nil
}
