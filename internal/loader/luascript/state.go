package luascript

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	lua "github.com/yuin/gopher-lua"
)

// safeLibrary represents a Lua library that is safe to load in sandboxed state.
type safeLibrary struct {
	name string
	fn   lua.LGFunction
}

// defaultSafeLibraries returns the list of libraries safe to load.
// Safe: base, table, string, math.
// Blocked: os, io, debug, package, coroutine, channel.
func defaultSafeLibraries() []safeLibrary {
	return []safeLibrary{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	}
}

// unsafeBaseFunctions lists base library functions that reach the filesystem
// or compile code at run time.
var unsafeBaseFunctions = []string{"dofile", "loadfile", "loadstring", "load", "require", "module"}

// StateFactory creates sandboxed Lua states with the smc helper module.
type StateFactory struct {
	libraries []safeLibrary
}

// NewStateFactory creates a new state factory.
func NewStateFactory() *StateFactory {
	return &StateFactory{
		libraries: defaultSafeLibraries(),
	}
}

// NewState creates a fresh Lua state with only safe libraries and the smc
// module loaded. A cancellable ctx aborts any call still running on the
// state when it is done.
func (f *StateFactory) NewState(ctx context.Context) (*lua.LState, error) {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})

	for _, lib := range f.libraries {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.fn),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			L.Close()
			return nil, fmt.Errorf("failed to open library %s: %w", lib.name, err)
		}
	}

	for _, fn := range unsafeBaseFunctions {
		L.SetGlobal(fn, lua.LNil)
	}

	registerHelpers(L)
	registerRandom(L)
	if ctx.Done() != nil {
		L.SetContext(ctx)
	}
	return L, nil
}

// floatTypeName is the metatable name of values produced by smc.float.
const floatTypeName = "smc.float"

// registerHelpers installs the smc table:
//
//	smc.is_int(x)  true if x is an integral number within ±2^53
//	smc.float(x)   marks x so that it is returned as a float even if integral
//	smc.kind(x)    "int", "float", "bool" or the Lua type name
func registerHelpers(L *lua.LState) {
	mt := L.NewTypeMetatable(floatTypeName)
	L.SetField(mt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		ud := L.CheckUserData(1)
		f, _ := ud.Value.(float64)
		L.Push(lua.LString(fmt.Sprintf("%g", f)))
		return 1
	}))

	smc := L.NewTable()
	L.SetField(smc, "is_int", L.NewFunction(func(L *lua.LState) int {
		n, ok := L.Get(1).(lua.LNumber)
		L.Push(lua.LBool(ok && isIntegral(float64(n))))
		return 1
	}))
	L.SetField(smc, "float", L.NewFunction(func(L *lua.LState) int {
		var f float64
		switch v := L.Get(1).(type) {
		case lua.LNumber:
			f = float64(v)
		case *lua.LUserData:
			fv, ok := v.Value.(float64)
			if !ok {
				L.ArgError(1, "number expected")
				return 0
			}
			f = fv
		default:
			L.ArgError(1, "number expected")
			return 0
		}
		L.Push(newFloat(L, f))
		return 1
	}))
	L.SetField(smc, "kind", L.NewFunction(func(L *lua.LState) int {
		v := L.Get(1)
		switch tv := v.(type) {
		case lua.LNumber:
			if isIntegral(float64(tv)) {
				L.Push(lua.LString("int"))
			} else {
				L.Push(lua.LString("float"))
			}
		case lua.LBool:
			L.Push(lua.LString("bool"))
		case *lua.LUserData:
			if _, ok := tv.Value.(float64); ok {
				L.Push(lua.LString("float"))
				return 1
			}
			L.Push(lua.LString(v.Type().String()))
		default:
			L.Push(lua.LString(v.Type().String()))
		}
		return 1
	}))
	L.SetGlobal("smc", smc)
}

func newFloat(L *lua.LState, f float64) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = f
	L.SetMetatable(ud, L.GetTypeMetatable(floatTypeName))
	return ud
}

// maxExactInt is the largest magnitude a Lua number holds without rounding.
const maxExactInt = 1 << 53

// isIntegral reports whether f holds an integer that converts to int64 and
// back without loss.
func isIntegral(f float64) bool {
	return f == math.Trunc(f) && math.Abs(f) <= maxExactInt
}

// registerRandom replaces math.random and math.randomseed with a generator
// owned by the state, so seeding one instance never affects another.
func registerRandom(L *lua.LState) {
	mathLib, ok := L.GetGlobal("math").(*lua.LTable)
	if !ok {
		return
	}
	src := rand.NewPCG(0, 0)
	rng := rand.New(src)

	L.SetField(mathLib, "randomseed", L.NewFunction(func(L *lua.LState) int {
		seed := uint64(L.CheckInt64(1))
		src.Seed(seed, seed)
		return 0
	}))
	L.SetField(mathLib, "random", L.NewFunction(func(L *lua.LState) int {
		switch L.GetTop() {
		case 0:
			L.Push(lua.LNumber(rng.Float64()))
		case 1:
			m := L.CheckInt64(1)
			if m < 1 {
				L.ArgError(1, "interval is empty")
				return 0
			}
			L.Push(lua.LNumber(1 + rng.Int64N(m)))
		default:
			lo, hi := L.CheckInt64(1), L.CheckInt64(2)
			if lo > hi {
				L.ArgError(2, "interval is empty")
				return 0
			}
			L.Push(lua.LNumber(lo + rng.Int64N(hi-lo+1)))
		}
		return 1
	}))
}
