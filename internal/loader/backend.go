// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

package loader

import "context"

// Module is an opened plugin artifact.
type Module interface {
	// Lookup resolves an exported symbol by name.
	Lookup(symbol string) (any, error)

	// Close releases the module. It is called only after every instance
	// created from the module has been released.
	Close() error
}

// Backend opens one kind of plugin artifact.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	// ArtifactName maps a plugin name to the file name of its artifact.
	ArtifactName(plugin string) string

	// Open opens the artifact at path. The artifact is known to exist.
	Open(ctx context.Context, path string) (Module, error)
}
