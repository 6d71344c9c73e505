// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

package catalog_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smcverify/smcplug/internal/catalog"
	"github.com/smcverify/smcplug/pkg/errutil"
	"github.com/smcverify/smcplug/pkg/exchange"
	"github.com/smcverify/smcplug/pkg/smcplugin"
	"github.com/smcverify/smcplug/plugins/accumulation"
)

const luaManifest = `name: int_accumulation_smc_plugin
version: 1.0.0
runtime: lua
parameters: {}
seed: 9
`

// writePlugin creates <root>/<dir> with the given manifest and optional
// extra files.
func writePlugin(t *testing.T, root, dir, manifest string, files map[string][]byte) string {
	t.Helper()
	pluginDir := filepath.Join(root, dir)
	require.NoError(t, os.MkdirAll(pluginDir, 0o750))
	if manifest != "" {
		require.NoError(t, os.WriteFile(filepath.Join(pluginDir, catalog.ManifestFile), []byte(manifest), 0o600))
	}
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(pluginDir, name), data, 0o600))
	}
	return pluginDir
}

func accumulationScript(t *testing.T) map[string][]byte {
	t.Helper()
	src, err := os.ReadFile(filepath.Join("..", "..", "plugins", "lua", accumulation.Name+".lua"))
	require.NoError(t, err)
	return map[string][]byte{accumulation.Name + ".lua": src}
}

func newCatalog(t *testing.T, root string, opts ...catalog.Option) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(root, opts...)
	require.NoError(t, err)
	return c
}

func TestDiscover_MissingRootIsEmpty(t *testing.T) {
	c := newCatalog(t, filepath.Join(t.TempDir(), "nope"))
	entries, err := c.Discover(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDiscover_SkipsInvalidEntries(t *testing.T) {
	root := t.TempDir()
	writePlugin(t, root, "zeta", "name: zeta\nversion: 0.1.0\nruntime: process\n", nil)
	writePlugin(t, root, "alpha", "name: alpha\nversion: 2.0.0\nruntime: shared\n", nil)
	writePlugin(t, root, "no-manifest", "", nil)
	writePlugin(t, root, "broken", "name: Broken\nversion: 1.0.0\nruntime: lua\n", nil)
	writePlugin(t, root, "dup", "name: alpha\nversion: 3.0.0\nruntime: lua\n", nil)
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.yaml"), []byte("x: 1"), 0o600))

	entries, err := newCatalog(t, root).Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "alpha", entries[0].Manifest.Name)
	assert.Equal(t, filepath.Join(root, "alpha"), entries[0].Dir, "first directory in read order wins")
	assert.Equal(t, "zeta", entries[1].Manifest.Name)
}

func TestDiscover_EnableFilter(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"int_accumulation", "int_counter", "float_gain"} {
		writePlugin(t, root, name, "name: "+name+"\nversion: 1.0.0\nruntime: lua\n", nil)
	}

	c := newCatalog(t, root, catalog.WithEnabled("int_*"))
	entries, err := c.Discover(context.Background())
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Manifest.Name)
	}
	assert.Equal(t, []string{"int_accumulation", "int_counter"}, names)
	assert.False(t, c.Enabled("float_gain"))

	_, err = c.Find(context.Background(), "float_gain")
	errutil.AssertErrorCode(t, err, catalog.CodePluginNotFound)
}

func TestNew_InvalidEnablePattern(t *testing.T) {
	_, err := catalog.New(t.TempDir(), catalog.WithEnabled("int_["))
	require.Error(t, err)
	errutil.AssertErrorContext(t, err, "pattern", "int_[")
}

func TestOpen_LuaPlugin(t *testing.T) {
	root := t.TempDir()
	writePlugin(t, root, "accumulation", luaManifest, accumulationScript(t))

	h, m, err := newCatalog(t, root).Open(context.Background(), accumulation.Name)
	require.NoError(t, err)
	require.NotNil(t, h)
	t.Cleanup(func() { assert.NoError(t, h.Close()) })

	require.NotNil(t, m.Seed)
	assert.Equal(t, uint32(9), *m.Seed)
	assert.Equal(t, catalog.RuntimeLua, m.Runtime)
	assert.Equal(t, smcplugin.Unconfigured, h.State())

	require.NoError(t, h.LoadParameters(m.Parameters))
	_, err = h.Reset()
	require.NoError(t, err)
	out, err := h.NextStep(exchange.Map{accumulation.InputKey: exchange.Int(5)})
	require.NoError(t, err)
	assert.Equal(t, exchange.Map{accumulation.OutputKey: exchange.Int(5)}, out)
}

func TestOpen_EachCallReturnsFreshInstance(t *testing.T) {
	root := t.TempDir()
	writePlugin(t, root, "accumulation", luaManifest, accumulationScript(t))
	c := newCatalog(t, root)

	a, _, err := c.Open(context.Background(), accumulation.Name)
	require.NoError(t, err)
	defer a.Close()
	b, _, err := c.Open(context.Background(), accumulation.Name)
	require.NoError(t, err)
	defer b.Close()

	assert.NotEqual(t, a.ID(), b.ID())
	require.NoError(t, a.LoadParameters(exchange.New()))
	assert.Equal(t, smcplugin.Unconfigured, b.State())
}

func TestOpen_Failures(t *testing.T) {
	root := t.TempDir()
	writePlugin(t, root, "no-artifact", "name: no_artifact\nversion: 1.0.0\nruntime: lua\n", nil)
	writePlugin(t, root, "future", "name: future\nversion: 1.0.0\nruntime: lua\ncontract: '>= 2.0.0'\n", nil)
	writePlugin(t, root, "shared", "name: native\nversion: 1.0.0\nruntime: shared\n", nil)

	tests := []struct {
		name     string
		plugin   string
		opts     []catalog.Option
		wantCode string
	}{
		{"unknown plugin", "missing", nil, catalog.CodePluginNotFound},
		{"manifest without artifact", "no_artifact", nil, catalog.CodePluginNotFound},
		{"incompatible contract", "future", nil, catalog.CodeIncompatibleContract},
		{"runtime without loader", "native", []catalog.Option{catalog.WithLoader(catalog.RuntimeShared, nil)}, catalog.CodeUnsupportedRuntime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, m, err := newCatalog(t, root, tt.opts...).Open(context.Background(), tt.plugin)
			assert.Nil(t, h)
			assert.Nil(t, m)
			errutil.AssertErrorCode(t, err, tt.wantCode)
		})
	}
}
