// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/smcverify/smcplug/internal/catalog"
)

// NewValidateCmd creates the validate subcommand.
func NewValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [plugin.yaml ...]",
		Short: "Validate plugin manifests without loading plugins",
		Long: `Validates plugin.yaml manifests against the manifest schema and the
manifest rules. Does NOT load any plugin artifact.
Exits with code 0 on success, non-zero on failure.

Without arguments every plugin directory in the catalog is checked.
Useful in CI pipelines to catch manifest errors early:
  smcplug validate --plugins-dir ./plugins`,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := args
			if len(paths) == 0 {
				var err error
				if paths, err = catalogManifests(a.cfg.PluginsDir); err != nil {
					return err
				}
			}
			return runValidate(cmd, paths)
		},
	}
}

// catalogManifests returns the manifest path of every directory in root.
func catalogManifests(root string) ([]string, error) {
	dirents, err := os.ReadDir(root)
	if err != nil {
		return nil, oops.With("dir", root).Hint("failed to read plugins directory").Wrap(err)
	}
	var paths []string
	for _, d := range dirents {
		if d.IsDir() {
			paths = append(paths, filepath.Join(root, d.Name(), catalog.ManifestFile))
		}
	}
	return paths, nil
}

func runValidate(cmd *cobra.Command, paths []string) error {
	failed := 0
	for _, path := range paths {
		if err := validateManifest(path); err != nil {
			failed++
			slog.Error("manifest validation failed", "path", path, "error", err)
			printf(cmd.ErrOrStderr(), "FAIL %s: %v\n", path, err)
			continue
		}
		printf(cmd.OutOrStdout(), "ok   %s\n", path)
	}

	if failed > 0 {
		return oops.Errorf("validation failed: %d of %d manifests invalid", failed, len(paths))
	}
	slog.Info("all manifests valid", "count", len(paths))
	return nil
}

func validateManifest(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path is supplied by the operator or built from the catalog root
	if err != nil {
		return oops.With("path", path).Wrap(err)
	}
	if err := catalog.ValidateSchema(data); err != nil {
		return err
	}
	_, err = catalog.ParseManifest(data)
	return err
}
