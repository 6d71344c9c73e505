// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/smcverify/smcplug/internal/catalog"
	"github.com/smcverify/smcplug/internal/loader"
	"github.com/smcverify/smcplug/internal/loader/luascript"
	"github.com/smcverify/smcplug/internal/loader/process"
	"github.com/smcverify/smcplug/internal/loader/sharedobject"
	"github.com/smcverify/smcplug/internal/logging"
)

// Global flags available to all subcommands.
var configFile string

// app carries the resolved configuration from the root command to the
// subcommands.
type app struct {
	cfg *config
}

// NewRootCmd creates the root command for the smcplug CLI.
func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "smcplug",
		Short: "smcplug - plugin host for statistical model checking",
		Long: `smcplug discovers, loads and drives stateful step-function plugins
for a statistical model checking engine. Plugins are shared objects,
go-plugin executables or Lua scripts described by plugin.yaml manifests.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			a.cfg = cfg
			setupLogging(cfg)
			return nil
		},
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/smcplug/config.yaml)")
	registerConfigFlags(cmd.PersistentFlags())

	// Add subcommands
	cmd.AddCommand(NewListCmd(a))
	cmd.AddCommand(NewInspectCmd(a))
	cmd.AddCommand(NewValidateCmd(a))
	cmd.AddCommand(NewRunCmd(a))

	return cmd
}

// loaders builds one loader per runtime, sending go-plugin output through
// the configured log format and level.
func (a *app) loaders() map[catalog.Runtime]*loader.Loader {
	logger := slog.Default()
	hc := logging.HCLogger("plugin", a.cfg.LogFormat, a.cfg.level, nil)
	opt := loader.WithLogger(logger)

	return map[catalog.Runtime]*loader.Loader{
		catalog.RuntimeShared: loader.New(sharedobject.New(), opt),
		catalog.RuntimeProcess: loader.New(process.New(
			process.WithClientFactory(&process.DefaultClientFactory{Logger: hc}),
		), opt),
		catalog.RuntimeLua: loader.New(luascript.New(), opt),
	}
}

// openCatalog opens the configured plugin catalog.
func (a *app) openCatalog() (*catalog.Catalog, error) {
	opts := []catalog.Option{catalog.WithEnabled(a.cfg.Enable...)}
	for rt, l := range a.loaders() {
		opts = append(opts, catalog.WithLoader(rt, l))
	}
	return catalog.New(a.cfg.PluginsDir, opts...)
}
