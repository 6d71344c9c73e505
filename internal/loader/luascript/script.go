// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

package luascript

import (
	"log/slog"
	"math"
	"sort"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/smcverify/smcplug/pkg/exchange"
	"github.com/smcverify/smcplug/pkg/smcplugin"
)

// Compile-time interface checks.
var (
	_ smcplugin.Implementation = (*script)(nil)
	_ smcplugin.Seeder         = (*script)(nil)
)

// script adapts one Lua state to the implementation hooks.
type script struct {
	L    *lua.LState
	name string
	path string
}

func (s *script) resolveName() (string, error) {
	switch v := s.L.GetGlobal("name").(type) {
	case lua.LString:
		return string(v), nil
	case *lua.LFunction:
		ret, err := s.call("name", v, 1)
		if err != nil {
			return "", err
		}
		if str, ok := ret.(lua.LString); ok {
			return string(str), nil
		}
		return "", oops.In("luascript").
			With("path", s.path).
			Errorf("name() returned %s, want string", ret.Type())
	default:
		return "", oops.In("luascript").With("path", s.path).Errorf("script does not define name")
	}
}

func (s *script) Name() string { return s.name }

// SetRandomSeed calls set_random_seed(seed) when defined and seeds the
// math library otherwise.
func (s *script) SetRandomSeed(seed uint32) {
	fn, ok := s.L.GetGlobal("set_random_seed").(*lua.LFunction)
	if !ok {
		mathLib, _ := s.L.GetGlobal("math").(*lua.LTable)
		if mathLib == nil {
			return
		}
		randomseed, ok := s.L.GetField(mathLib, "randomseed").(*lua.LFunction)
		if !ok {
			return
		}
		fn = randomseed
	}
	if err := s.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, lua.LNumber(seed)); err != nil {
		slog.Warn("lua plugin seed call failed", "plugin", s.name, "path", s.path, "error", err)
	}
}

func (s *script) ProcessInitParameters(config exchange.Map) error {
	fn := s.L.GetGlobal("load_parameters")
	table, kinds, err := toTable(s.L, config)
	if err != nil {
		return err
	}
	_, err = s.call("load_parameters", fn, 0, table, kinds)
	return err
}

func (s *script) ProcessReset() (exchange.Map, error) {
	ret, err := s.call("reset", s.L.GetGlobal("reset"), 1)
	if err != nil {
		return nil, err
	}
	return fromTable(ret)
}

func (s *script) ProcessInput(input exchange.Map) (exchange.Map, error) {
	table, kinds, err := toTable(s.L, input)
	if err != nil {
		return nil, err
	}
	ret, err := s.call("next_step", s.L.GetGlobal("next_step"), 1, table, kinds)
	if err != nil {
		return nil, err
	}
	return fromTable(ret)
}

// Close releases the Lua state.
func (s *script) Close() error {
	s.L.Close()
	return nil
}

// call invokes fn in protected mode and returns its first result when nret
// is 1.
func (s *script) call(name string, fn lua.LValue, nret int, args ...lua.LValue) (lua.LValue, error) {
	if err := s.L.CallByParam(lua.P{Fn: fn, NRet: nret, Protect: true}, args...); err != nil {
		return nil, oops.In("luascript").
			With("path", s.path).
			With("function", name).
			Wrap(err)
	}
	if nret == 0 {
		return lua.LNil, nil
	}
	ret := s.L.Get(-1)
	s.L.Pop(1)
	return ret, nil
}

// toTable converts m into a Lua table and a parallel table of kind names.
// Ints beyond ±2^53 are rejected since a Lua number would round them.
func toTable(L *lua.LState, m exchange.Map) (*lua.LTable, *lua.LTable, error) {
	values := L.CreateTable(0, len(m))
	kinds := L.CreateTable(0, len(m))
	for k, v := range m {
		kinds.RawSetString(k, lua.LString(v.Kind().String()))
		switch v.Kind() {
		case exchange.KindInt:
			i, _ := v.AsInt()
			if i > maxExactInt || i < -maxExactInt {
				return nil, nil, oops.In("luascript").
					With("key", k).
					With("value", i).
					Errorf("int %d for %q cannot be passed to a Lua script without rounding", i, k)
			}
			values.RawSetString(k, lua.LNumber(i))
		case exchange.KindFloat:
			f, _ := v.AsFloat()
			values.RawSetString(k, lua.LNumber(f))
		case exchange.KindBool:
			b, _ := v.AsBool()
			values.RawSetString(k, lua.LBool(b))
		}
	}
	return values, kinds, nil
}

// fromTable converts a returned outputs table. A nil return stays nil so
// that the state machine reports it as a failed step.
func fromTable(ret lua.LValue) (exchange.Map, error) {
	if ret.Type() == lua.LTNil {
		return nil, nil
	}
	table, ok := ret.(*lua.LTable)
	if !ok {
		return nil, oops.In("luascript").Errorf("outputs must be a table, got %s", ret.Type())
	}

	out := exchange.New()
	var bad, inexact []string
	table.ForEach(func(k, v lua.LValue) {
		key, ok := k.(lua.LString)
		if !ok {
			bad = append(bad, k.String())
			return
		}
		if n, ok := v.(lua.LNumber); ok && isInexactInt(float64(n)) {
			inexact = append(inexact, string(key))
			return
		}
		val, ok := fromLua(v)
		if !ok {
			bad = append(bad, string(key))
			return
		}
		out[string(key)] = val
	})
	if len(inexact) > 0 {
		sort.Strings(inexact)
		return nil, oops.In("luascript").
			With("keys", inexact).
			Hint("wrap the value with smc.float to return it as a float").
			Errorf("outputs hold integral numbers beyond ±2^53 that may have been rounded")
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return nil, oops.In("luascript").
			With("keys", bad).
			Errorf("outputs hold keys or values that are not int, float or bool")
	}
	return out, nil
}

func fromLua(v lua.LValue) (exchange.Value, bool) {
	switch tv := v.(type) {
	case lua.LBool:
		return exchange.Bool(bool(tv)), true
	case lua.LNumber:
		f := float64(tv)
		if isIntegral(f) {
			return exchange.Int(int64(f)), true
		}
		return exchange.Float(f), true
	case *lua.LUserData:
		if f, ok := tv.Value.(float64); ok {
			return exchange.Float(f), true
		}
	}
	return exchange.Value{}, false
}

// isInexactInt reports whether f is a whole number too large for a Lua
// number to hold exactly.
func isInexactInt(f float64) bool {
	return f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) > maxExactInt
}
