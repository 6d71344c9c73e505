// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

package main

import (
	"errors"
	"io/fs"
	"log/slog"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/smcverify/smcplug/internal/catalog"
	"github.com/smcverify/smcplug/internal/logging"
	"github.com/smcverify/smcplug/internal/xdg"
)

// Configuration keys. Each is both a persistent flag and a config file key.
const (
	keyPluginsDir  = "plugins-dir"
	keyBackend     = "backend"
	keyLogFormat   = "log-format"
	keyLogLevel    = "log-level"
	keyMetricsAddr = "metrics-addr"
	keyEnable      = "enable"
)

// Default values for persistent flags.
const (
	defaultBackend   = string(catalog.RuntimeShared)
	defaultLogFormat = "text"
	defaultLogLevel  = "info"
)

// config holds the resolved CLI configuration: flag values override the
// config file, which overrides flag defaults.
type config struct {
	PluginsDir  string   `koanf:"plugins-dir"`
	Backend     string   `koanf:"backend"`
	LogFormat   string   `koanf:"log-format"`
	LogLevel    string   `koanf:"log-level"`
	MetricsAddr string   `koanf:"metrics-addr"`
	Enable      []string `koanf:"enable"`

	level slog.Level
}

// Validate checks that the configuration is valid.
func (cfg *config) Validate() error {
	if cfg.PluginsDir == "" {
		return oops.Errorf("%s is required", keyPluginsDir)
	}
	switch catalog.Runtime(cfg.Backend) {
	case catalog.RuntimeShared, catalog.RuntimeProcess, catalog.RuntimeLua:
	default:
		return oops.Errorf("%s must be 'shared', 'process' or 'lua', got %q", keyBackend, cfg.Backend)
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return oops.Errorf("%s must be 'json' or 'text', got %q", keyLogFormat, cfg.LogFormat)
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	cfg.level = level
	return nil
}

// registerConfigFlags adds the configuration flags to flags.
func registerConfigFlags(flags *pflag.FlagSet) {
	pluginsDir, err := xdg.PluginsDir()
	if err != nil {
		pluginsDir = "plugins"
	}
	flags.String(keyPluginsDir, pluginsDir, "plugin catalog directory")
	flags.String(keyBackend, defaultBackend, "backend for --dir loads (shared, process or lua)")
	flags.String(keyLogFormat, defaultLogFormat, "log format (json or text)")
	flags.String(keyLogLevel, defaultLogLevel, "log level (debug, info, warn or error)")
	flags.String(keyMetricsAddr, "", "metrics/health HTTP address during run (empty = disabled)")
	flags.StringSlice(keyEnable, nil, "glob patterns of plugin names to enable (default: all)")
}

// loadConfig layers the config file under flags. An explicit
// path must exist; the default XDG config file is optional.
func loadConfig(path string, flags *pflag.FlagSet) (*config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		if p, err := xdg.ConfigFile(); err == nil {
			path = p
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return nil, oops.With("path", path).Hint("failed to load config file").Wrap(err)
			}
		}
	}

	// Changed flags override file values; defaults fill only missing keys.
	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return nil, oops.Hint("failed to load flags").Wrap(err)
	}

	cfg := &config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Hint("invalid configuration").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, oops.Wrapf(err, "invalid configuration")
	}
	return cfg, nil
}

// setupLogging installs the default logger for cfg.
func setupLogging(cfg *config) {
	logging.SetDefault("smcplug", version, cfg.LogFormat, cfg.level)
}
