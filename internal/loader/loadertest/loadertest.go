// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

// Package loadertest builds the bundled accumulation plugin into real
// artifacts and drives the reference scenario against a loaded handle.
package loadertest

import (
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smcverify/smcplug/internal/loader"
	"github.com/smcverify/smcplug/pkg/exchange"
	"github.com/smcverify/smcplug/pkg/smcplugin"
	"github.com/smcverify/smcplug/plugins/accumulation"
)

// PluginPackage is the import path of the accumulation plugin main package.
const PluginPackage = "github.com/smcverify/smcplug/plugins/int_accumulation_smc_plugin"

// goTool returns the go command, skipping the test when there is none.
func goTool(t *testing.T) string {
	t.Helper()
	goBin, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go toolchain not found in PATH")
	}
	return goBin
}

// BuildSharedObject compiles the plugin with -buildmode=plugin into a temp
// directory under artifact and returns that directory. The test is skipped
// on platforms without plugin support.
func BuildSharedObject(t *testing.T, artifact string) string {
	t.Helper()
	goBin := goTool(t)
	switch runtime.GOOS {
	case "linux", "darwin", "freebsd":
	default:
		t.Skipf("-buildmode=plugin is not supported on %s", runtime.GOOS)
	}
	out, err := exec.Command(goBin, "env", "CGO_ENABLED").Output()
	require.NoError(t, err)
	if strings.TrimSpace(string(out)) != "1" {
		t.Skip("-buildmode=plugin requires cgo")
	}
	return build(t, goBin, artifact, "-buildmode=plugin")
}

// BuildExecutable compiles the plugin as a go-plugin executable into a temp
// directory under artifact and returns that directory.
func BuildExecutable(t *testing.T, artifact string) string {
	t.Helper()
	return build(t, goTool(t), artifact)
}

func build(t *testing.T, goBin, artifact string, flags ...string) string {
	t.Helper()
	dir := t.TempDir()
	args := append([]string{"build"}, flags...)
	args = append(args, "-o", filepath.Join(dir, artifact), PluginPackage)

	t.Logf("compiling %s", artifact)
	cmd := exec.Command(goBin, args...) // #nosec G204 -- fixed arguments
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "go %s\n%s", strings.Join(args, " "), out)
	return dir
}

// RunAccumulation checks the accumulation plugin behind h: lifecycle
// enforcement, configuration rejection and the running sums for inputs
// 0..9 followed by -10.
func RunAccumulation(t *testing.T, h *loader.Handle) {
	t.Helper()
	assert.Equal(t, accumulation.Name, h.Instance().Name())

	_, err := h.Reset()
	assert.True(t, smcplugin.IsLifecycleViolation(err), "reset before configuration: %v", err)
	_, err = h.NextStep(exchange.Map{accumulation.InputKey: exchange.Int(1)})
	assert.True(t, smcplugin.IsLifecycleViolation(err), "step before configuration: %v", err)

	err = h.LoadParameters(exchange.Map{"gain": exchange.Int(2)})
	assert.True(t, smcplugin.IsConfigurationError(err), "non-empty configuration: %v", err)
	assert.Equal(t, smcplugin.Unconfigured, h.State())

	require.NoError(t, h.LoadParameters(exchange.New()))
	out, err := h.Reset()
	require.NoError(t, err)
	assert.Equal(t, exchange.Map{accumulation.OutputKey: exchange.Int(0)}, out)

	inputs := []int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, -10}
	want := []int64{0, 1, 3, 6, 10, 15, 21, 28, 36, 45, 35}
	for i, n := range inputs {
		out, err = h.NextStep(exchange.Map{accumulation.InputKey: exchange.Int(n)})
		require.NoError(t, err, "step %d", i)
		assert.Equal(t, exchange.Map{accumulation.OutputKey: exchange.Int(want[i])}, out, "step %d", i)
	}
}
