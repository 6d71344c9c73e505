// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

package catalog

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/smcverify/smcplug/internal/loader"
	"github.com/smcverify/smcplug/internal/loader/luascript"
	"github.com/smcverify/smcplug/internal/loader/process"
	"github.com/smcverify/smcplug/internal/loader/sharedobject"
	"github.com/smcverify/smcplug/pkg/smcplugin"
)

// Entry is a discovered plugin: its manifest and the directory holding it.
type Entry struct {
	Manifest *Manifest
	Dir      string
}

// Catalog finds plugins in a directory of plugin directories:
//
//	<root>/<plugin>/plugin.yaml
//	<root>/<plugin>/<artifact>
//
// It holds no open plugins; every Open returns a handle the caller owns.
type Catalog struct {
	root    string
	loaders map[Runtime]*loader.Loader
	enabled []glob.Glob
}

// Option configures a Catalog.
type Option func(*Catalog) error

// WithLoader sets the loader used for plugins of runtime rt.
func WithLoader(rt Runtime, l *loader.Loader) Option {
	return func(c *Catalog) error {
		if l == nil {
			delete(c.loaders, rt)
			return nil
		}
		c.loaders[rt] = l
		return nil
	}
}

// WithEnabled restricts the catalog to plugin names matching at least one
// of the glob patterns. No patterns enables every plugin.
func WithEnabled(patterns ...string) Option {
	return func(c *Catalog) error {
		for _, p := range patterns {
			g, err := glob.Compile(p)
			if err != nil {
				return oops.In("catalog").With("pattern", p).Hint("invalid enable pattern").Wrap(err)
			}
			c.enabled = append(c.enabled, g)
		}
		return nil
	}
}

// DefaultLoaders returns one loader per supported runtime.
func DefaultLoaders(opts ...loader.Option) map[Runtime]*loader.Loader {
	return map[Runtime]*loader.Loader{
		RuntimeShared:  loader.New(sharedobject.New(), opts...),
		RuntimeProcess: loader.New(process.New(), opts...),
		RuntimeLua:     loader.New(luascript.New(), opts...),
	}
}

// New creates a catalog over root using DefaultLoaders unless overridden.
func New(root string, opts ...Option) (*Catalog, error) {
	c := &Catalog{
		root:    root,
		loaders: DefaultLoaders(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Root returns the catalog directory.
func (c *Catalog) Root() string { return c.root }

// Enabled reports whether name passes the enable filter.
func (c *Catalog) Enabled(name string) bool {
	if len(c.enabled) == 0 {
		return true
	}
	for _, g := range c.enabled {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// Discover finds all valid, enabled plugins sorted by name. Invalid
// entries are logged and skipped; a missing root yields no plugins.
func (c *Catalog) Discover(_ context.Context) ([]*Entry, error) {
	dirents, err := os.ReadDir(c.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, oops.In("catalog").With("dir", c.root).Hint("failed to read plugins directory").Wrap(err)
	}

	seen := make(map[string]string)
	var entries []*Entry
	for _, dirent := range dirents {
		if !dirent.IsDir() {
			continue
		}

		pluginDir := filepath.Join(c.root, dirent.Name())
		data, err := os.ReadFile(filepath.Join(pluginDir, ManifestFile)) //nolint:gosec // path built from ReadDir entries
		if err != nil {
			slog.Warn("skipping plugin without manifest",
				"dir", dirent.Name(),
				"error", err)
			continue
		}

		manifest, err := ParseManifest(data)
		if err != nil {
			slog.Warn("skipping plugin with invalid manifest",
				"dir", dirent.Name(),
				"error", err)
			continue
		}

		if !c.Enabled(manifest.Name) {
			slog.Debug("skipping disabled plugin", "plugin", manifest.Name)
			continue
		}

		if prev, dup := seen[manifest.Name]; dup {
			slog.Warn("skipping duplicate plugin",
				"plugin", manifest.Name,
				"dir", dirent.Name(),
				"first", prev)
			continue
		}
		seen[manifest.Name] = dirent.Name()

		entries = append(entries, &Entry{Manifest: manifest, Dir: pluginDir})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Manifest.Name < entries[j].Manifest.Name
	})
	return entries, nil
}

// Find returns the enabled plugin called name.
func (c *Catalog) Find(ctx context.Context, name string) (*Entry, error) {
	entries, err := c.Discover(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Manifest.Name == name {
			return e, nil
		}
	}
	return nil, oops.In("catalog").
		Code(CodePluginNotFound).
		With("plugin", name).
		With("dir", c.root).
		Errorf("plugin %q not found", name)
}

// Open finds the plugin name, checks its contract constraint and loads it.
// The returned handle is unconfigured; the manifest carries the default
// parameters and seed.
func (c *Catalog) Open(ctx context.Context, name string) (*loader.Handle, *Manifest, error) {
	entry, err := c.Find(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	m := entry.Manifest

	if err := m.CheckContract(smcplugin.ContractVersion); err != nil {
		return nil, nil, err
	}

	l, ok := c.loaders[m.Runtime]
	if !ok {
		return nil, nil, oops.In("catalog").
			Code(CodeUnsupportedRuntime).
			With("plugin", name).
			With("runtime", string(m.Runtime)).
			Errorf("no loader for runtime %q", m.Runtime)
	}

	h, err := l.Load(ctx, entry.Dir, name)
	if err != nil {
		return nil, nil, err
	}
	if h == nil {
		return nil, nil, oops.In("catalog").
			Code(CodePluginNotFound).
			With("plugin", name).
			With("path", l.ArtifactPath(entry.Dir, name)).
			Hint("the manifest exists but the artifact is missing").
			Errorf("plugin %q has no %s artifact", name, m.Runtime)
	}
	return h, m, nil
}
