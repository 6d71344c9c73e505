// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/smcverify/smcplug/pkg/exchange"
)

// inspection describes a loaded plugin and its initial outputs.
type inspection struct {
	Name     string       `json:"name" yaml:"name"`
	Reported string       `json:"reported_name" yaml:"reported_name"`
	Handle   string       `json:"handle" yaml:"handle"`
	Backend  string       `json:"backend" yaml:"backend"`
	Path     string       `json:"path" yaml:"path"`
	Version  string       `json:"version,omitempty" yaml:"version,omitempty"`
	Config   exchange.Map `json:"config" yaml:"config"`
	Initial  exchange.Map `json:"initial" yaml:"initial"`
}

// NewInspectCmd creates the inspect subcommand.
func NewInspectCmd(a *app) *cobra.Command {
	var (
		output string
		dir    string
		params string
	)

	cmd := &cobra.Command{
		Use:   "inspect <plugin>",
		Short: "Load a plugin and show its initial outputs",
		Long: `Load a plugin, configure it and reset it once, then print where it was
loaded from and the outputs Reset returned.

The configuration is --params when given, otherwise the manifest defaults.
With --dir the plugin is loaded from that directory through --backend
without a manifest.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(output); err != nil {
				return err
			}

			h, m, err := a.open(cmd.Context(), args[0], dir)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := h.Close(); closeErr != nil {
					slog.Warn("failed to close plugin", "plugin", h.Name(), "error", closeErr)
				}
			}()

			cfg := exchange.New()
			if m != nil && m.Parameters != nil {
				cfg = m.Parameters
			}
			if cmd.Flags().Changed("params") {
				if cfg, err = exchange.ParseLiteral(params); err != nil {
					return err
				}
			}

			if err := h.LoadParameters(cfg); err != nil {
				return err
			}
			initial, err := h.Reset()
			if err != nil {
				return err
			}

			info := inspection{
				Name:     h.Name(),
				Reported: h.Instance().Name(),
				Handle:   h.ID(),
				Backend:  h.Backend(),
				Path:     h.Path(),
				Config:   cfg,
				Initial:  initial,
			}
			if m != nil {
				info.Version = m.Version
			}

			return encode(cmd.OutOrStdout(), output, info, func(w io.Writer) error {
				printf(w, "plugin:   %s\n", info.Name)
				if info.Reported != info.Name {
					printf(w, "reports:  %s\n", info.Reported)
				}
				if info.Version != "" {
					printf(w, "version:  %s\n", info.Version)
				}
				printf(w, "backend:  %s\n", info.Backend)
				printf(w, "path:     %s\n", info.Path)
				printf(w, "handle:   %s\n", info.Handle)
				printf(w, "config:   %s\n", info.Config)
				printf(w, "initial:  %s\n", info.Initial)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", formatText, "output format (text, json or yaml)")
	cmd.Flags().StringVar(&dir, "dir", "", "load the plugin artifact from this directory instead of the catalog")
	cmd.Flags().StringVar(&params, "params", "", "configuration as an exchange literal, e.g. '{gain: 0.5, steps: 3}'")
	return cmd
}
