// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

package main

import (
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/smcverify/smcplug/pkg/exchange"
)

// pluginInfo is the listed view of a catalog entry.
type pluginInfo struct {
	Name        string       `json:"name" yaml:"name"`
	Version     string       `json:"version" yaml:"version"`
	Runtime     string       `json:"runtime" yaml:"runtime"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Dir         string       `json:"dir" yaml:"dir"`
	Parameters  exchange.Map `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// NewListCmd creates the list subcommand.
func NewListCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List plugins in the catalog",
		Long: `List the enabled plugins found in the plugin catalog directory.
Directories without a valid plugin.yaml are skipped with a warning.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateFormat(output); err != nil {
				return err
			}
			c, err := a.openCatalog()
			if err != nil {
				return err
			}
			entries, err := c.Discover(cmd.Context())
			if err != nil {
				return err
			}

			infos := make([]pluginInfo, 0, len(entries))
			for _, e := range entries {
				infos = append(infos, pluginInfo{
					Name:        e.Manifest.Name,
					Version:     e.Manifest.Version,
					Runtime:     string(e.Manifest.Runtime),
					Description: e.Manifest.Description,
					Dir:         e.Dir,
					Parameters:  e.Manifest.Parameters,
				})
			}

			return encode(cmd.OutOrStdout(), output, infos, func(w io.Writer) error {
				if len(infos) == 0 {
					printf(w, "no plugins found in %s\n", c.Root())
					return nil
				}
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				printf(tw, "NAME\tVERSION\tRUNTIME\tDESCRIPTION\n")
				for _, p := range infos {
					printf(tw, "%s\t%s\t%s\t%s\n", p.Name, p.Version, p.Runtime, p.Description)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", formatText, "output format (text, json or yaml)")
	return cmd
}
