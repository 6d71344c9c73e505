// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

// Package luascript loads plugins written in Lua.
//
// A script plugin defines global functions:
//
//	name()                      -> string (a plain string global also works)
//	load_parameters(cfg, kinds) -> raise error() to reject
//	reset()                     -> outputs table
//	next_step(input, kinds)     -> outputs table
//	set_random_seed(seed)       -> optional; defaults to math.randomseed
//
// kinds maps every key of cfg or input to "int", "float" or "bool", since
// Lua has a single number type. Integral numbers in an outputs table are
// returned as ints; wrap a value in smc.float(x) to return a float.
//
// Each instance runs in its own sandboxed state, so instances of one
// script share nothing.
package luascript

import (
	"bufio"
	"context"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/smcverify/smcplug/internal/loader"
	"github.com/smcverify/smcplug/pkg/smcplugin"
)

// BackendName identifies this backend in logs, metrics and manifests.
const BackendName = "lua"

// Globals every script must define.
var requiredFunctions = []string{"load_parameters", "reset", "next_step"}

// Compile-time interface check.
var _ loader.Backend = (*Backend)(nil)

// Backend loads Lua script plugins.
type Backend struct {
	factory *StateFactory
}

// New creates a Lua backend.
func New() *Backend {
	return &Backend{factory: NewStateFactory()}
}

// Name returns BackendName.
func (b *Backend) Name() string { return BackendName }

// ArtifactName returns <name>.lua.
func (b *Backend) ArtifactName(name string) string { return name + ".lua" }

// Open compiles the script at path. Syntax errors fail here; missing entry
// points fail at Lookup.
func (b *Backend) Open(ctx context.Context, path string) (loader.Module, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, oops.In("luascript").With("path", path).Hint("failed to read script").Wrap(err)
	}
	defer f.Close() //nolint:errcheck // read-only

	chunk, err := parse.Parse(bufio.NewReader(f), path)
	if err != nil {
		return nil, oops.In("luascript").With("path", path).Hint("syntax error").Wrap(err)
	}
	proto, err := lua.Compile(chunk, path)
	if err != nil {
		return nil, oops.In("luascript").With("path", path).Hint("compile error").Wrap(err)
	}

	// Run the chunk once so that errors at load time surface as open failures.
	L, err := b.factory.NewState(ctx)
	if err != nil {
		return nil, oops.In("luascript").With("path", path).Wrap(err)
	}
	defer L.Close()
	if err := run(L, proto); err != nil {
		return nil, oops.In("luascript").With("path", path).Hint("script failed while loading").Wrap(err)
	}

	return &module{factory: b.factory, proto: proto, path: path}, nil
}

// run executes a compiled chunk in L.
func run(L *lua.LState, proto *lua.FunctionProto) error {
	L.Push(L.NewFunctionFromProto(proto))
	return L.PCall(0, lua.MultRet, nil)
}

type module struct {
	factory *StateFactory
	proto   *lua.FunctionProto
	path    string
}

// Lookup checks that the script defines every entry point and returns a
// constructor that creates one sandboxed instance per call.
func (m *module) Lookup(symbol string) (any, error) {
	if symbol != smcplugin.FactorySymbol {
		return nil, oops.In("luascript").
			With("path", m.path).
			With("symbol", symbol).
			Errorf("lua plugins export only %s", smcplugin.FactorySymbol)
	}

	L, err := m.factory.NewState(context.Background())
	if err != nil {
		return nil, oops.In("luascript").With("path", m.path).Wrap(err)
	}
	defer L.Close()
	if err := run(L, m.proto); err != nil {
		return nil, oops.In("luascript").With("path", m.path).Wrap(err)
	}

	if v := L.GetGlobal("name"); v.Type() != lua.LTFunction && v.Type() != lua.LTString {
		return nil, oops.In("luascript").
			With("path", m.path).
			With("function", "name").
			Errorf("script does not define name")
	}
	for _, fn := range requiredFunctions {
		if L.GetGlobal(fn).Type() != lua.LTFunction {
			return nil, oops.In("luascript").
				With("path", m.path).
				With("function", fn).
				Errorf("script does not define function %s", fn)
		}
	}

	return smcplugin.Constructor(m.newInstance), nil
}

func (m *module) newInstance() (smcplugin.Contract, error) {
	L, err := m.factory.NewState(context.Background())
	if err != nil {
		return nil, oops.In("luascript").With("path", m.path).Wrap(err)
	}
	if err := run(L, m.proto); err != nil {
		L.Close()
		return nil, oops.In("luascript").With("path", m.path).Wrap(err)
	}

	s := &script{L: L, path: m.path}
	name, err := s.resolveName()
	if err != nil {
		L.Close()
		return nil, err
	}
	s.name = name
	return smcplugin.New(s), nil
}

// Close drops the compiled chunk. Instances hold their own state.
func (m *module) Close() error {
	m.proto = nil
	return nil
}
