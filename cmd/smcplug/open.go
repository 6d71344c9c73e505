// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

package main

import (
	"context"

	"github.com/samber/oops"

	"github.com/smcverify/smcplug/internal/catalog"
	"github.com/smcverify/smcplug/internal/loader"
)

// open loads plugin name. With dir set the plugin artifact is loaded from
// dir through the configured backend and there is no manifest; otherwise
// the plugin comes from the catalog.
func (a *app) open(ctx context.Context, name, dir string) (*loader.Handle, *catalog.Manifest, error) {
	if dir == "" {
		c, err := a.openCatalog()
		if err != nil {
			return nil, nil, err
		}
		return c.Open(ctx, name)
	}

	l := a.loaders()[catalog.Runtime(a.cfg.Backend)]
	h, err := l.Load(ctx, dir, name)
	if err != nil {
		return nil, nil, err
	}
	if h == nil {
		return nil, nil, oops.
			Code(catalog.CodePluginNotFound).
			With("plugin", name).
			With("path", l.ArtifactPath(dir, name)).
			Errorf("plugin %q not found in %s", name, dir)
	}
	return h, nil, nil
}
