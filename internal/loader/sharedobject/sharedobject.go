// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

// Package sharedobject loads plugins built with -buildmode=plugin.
//
// The Go runtime cannot unload a plugin once opened, so closing a module
// only marks it released; the code stays mapped for the life of the
// process. Opening the same path twice returns the already loaded plugin.
package sharedobject

import (
	"context"
	"plugin"
	"runtime"

	"github.com/samber/oops"

	"github.com/smcverify/smcplug/internal/loader"
)

// BackendName identifies this backend in logs, metrics and manifests.
const BackendName = "shared"

// Compile-time interface check.
var _ loader.Backend = (*Backend)(nil)

// Backend opens shared-object plugins.
type Backend struct {
	goos string
}

// New returns a backend using the artifact naming of the running OS.
func New() *Backend {
	return &Backend{goos: runtime.GOOS}
}

// Name returns BackendName.
func (b *Backend) Name() string { return BackendName }

// ArtifactName returns the platform file name for plugin.
func (b *Backend) ArtifactName(name string) string {
	return ArtifactName(b.goos, name)
}

// ArtifactName returns the shared-object file name of plugin on goos:
// <name>.dll on windows, lib<name>.dylib on darwin and lib<name>.so elsewhere.
func ArtifactName(goos, name string) string {
	switch goos {
	case "windows":
		return name + ".dll"
	case "darwin", "ios":
		return "lib" + name + ".dylib"
	default:
		return "lib" + name + ".so"
	}
}

// Open maps the shared object at path into the process.
func (b *Backend) Open(_ context.Context, path string) (loader.Module, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, oops.In("sharedobject").
			With("path", path).
			Hint("the artifact must be built with -buildmode=plugin by the same toolchain and module versions as the host").
			Wrap(err)
	}
	return &module{plugin: p, path: path}, nil
}

type module struct {
	plugin *plugin.Plugin
	path   string
}

func (m *module) Lookup(symbol string) (any, error) {
	sym, err := m.plugin.Lookup(symbol)
	if err != nil {
		return nil, oops.In("sharedobject").
			With("path", m.path).
			With("symbol", symbol).
			Wrap(err)
	}
	return sym, nil
}

// Close is a no-op: Go plugins stay loaded until the process exits.
func (m *module) Close() error {
	return nil
}
