package luascript_test

import (
	"context"
	"testing"

	lua "github.com/yuin/gopher-lua"

	"github.com/smcverify/smcplug/internal/loader/luascript"
)

func newState(t *testing.T) *lua.LState {
	t.Helper()
	L, err := luascript.NewStateFactory().NewState(context.Background())
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	t.Cleanup(L.Close)
	return L
}

func TestStateFactory_NewState_LoadsSafeLibraries(t *testing.T) {
	L := newState(t)

	for _, lib := range []string{"table", "string", "math", "smc"} {
		if L.GetGlobal(lib).Type() == lua.LTNil {
			t.Errorf("library %q not loaded", lib)
		}
	}
}

func TestStateFactory_NewState_BlocksUnsafeLibraries(t *testing.T) {
	L := newState(t)

	for _, name := range []string{"os", "io", "debug", "package", "dofile", "loadfile", "loadstring", "load", "require"} {
		if L.GetGlobal(name).Type() != lua.LTNil {
			t.Errorf("unsafe global %q should not be defined", name)
		}
	}
}

func TestStateFactory_Helpers(t *testing.T) {
	L := newState(t)

	err := L.DoString(`
		int_ok = smc.is_int(3)
		frac_ok = smc.is_int(3.5)
		str_ok = smc.is_int("3")
		k_int = smc.kind(4)
		k_float = smc.kind(smc.float(4))
		k_frac = smc.kind(0.25)
		k_bool = smc.kind(true)
		k_str = smc.kind("x")
	`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}

	want := map[string]string{
		"int_ok":  "true",
		"frac_ok": "false",
		"str_ok":  "false",
		"k_int":   "int",
		"k_float": "float",
		"k_frac":  "float",
		"k_bool":  "bool",
		"k_str":   "string",
	}
	for global, w := range want {
		if got := L.GetGlobal(global).String(); got != w {
			t.Errorf("%s = %q, want %q", global, got, w)
		}
	}
}

func TestStateFactory_FloatRejectsNonNumbers(t *testing.T) {
	L := newState(t)

	if err := L.DoString(`smc.float("nope")`); err == nil {
		t.Fatal("expected error for smc.float on a string")
	}
}

func TestStateFactory_CancelledContextStopsScript(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	L, err := luascript.NewStateFactory().NewState(ctx)
	if err != nil {
		t.Fatalf("NewState() error = %v", err)
	}
	defer L.Close()

	cancel()
	if err := L.DoString(`while true do end`); err == nil {
		t.Fatal("expected cancelled script to fail")
	}
}

func TestStateFactory_RandomIsSeededPerState(t *testing.T) {
	draw := func(L *lua.LState) string {
		if err := L.DoString(`math.randomseed(7); r = math.random(1, 1000000)`); err != nil {
			t.Fatalf("DoString() error = %v", err)
		}
		return L.GetGlobal("r").String()
	}

	a, b := newState(t), newState(t)
	if ra, rb := draw(a), draw(b); ra != rb {
		t.Errorf("same seed gave %s and %s", ra, rb)
	}
	if err := a.DoString(`x = math.random(); y = math.random(3)`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}
	if err := a.DoString(`math.random(0)`); err == nil {
		t.Error("expected empty interval error")
	}
}
