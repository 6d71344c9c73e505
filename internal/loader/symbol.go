// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

package loader

import (
	"fmt"

	"github.com/samber/oops"

	"github.com/smcverify/smcplug/pkg/smcplugin"
)

// resolveFactory converts a looked-up symbol into a constructor. Shared
// objects hand back a pointer to the exported variable, other backends the
// value itself; both forms are accepted.
func resolveFactory(sym any) (smcplugin.Constructor, error) {
	var ctor smcplugin.Constructor
	switch f := sym.(type) {
	case smcplugin.Factory:
		if f != nil {
			ctor = lift(f)
		}
	case *smcplugin.Factory:
		if f != nil && *f != nil {
			ctor = lift(*f)
		}
	case func() smcplugin.Contract:
		if f != nil {
			ctor = lift(f)
		}
	case *func() smcplugin.Contract:
		if f != nil && *f != nil {
			ctor = lift(*f)
		}
	case smcplugin.Constructor:
		ctor = f
	case *smcplugin.Constructor:
		if f != nil {
			ctor = *f
		}
	case func() (smcplugin.Contract, error):
		ctor = f
	default:
		return nil, oops.In("loader").
			Code(CodeSymbolResolution).
			With("symbol", smcplugin.FactorySymbol).
			With("type", fmt.Sprintf("%T", sym)).
			Hint("export it with smcplugin.Register").
			Errorf("symbol %s has type %T, want smcplugin.Factory", smcplugin.FactorySymbol, sym)
	}
	if ctor == nil {
		return nil, oops.In("loader").
			Code(CodeSymbolResolution).
			With("symbol", smcplugin.FactorySymbol).
			Errorf("symbol %s is nil", smcplugin.FactorySymbol)
	}
	return ctor, nil
}

func lift[F ~func() smcplugin.Contract](f F) smcplugin.Constructor {
	return func() (smcplugin.Contract, error) {
		return f(), nil
	}
}

// construct invokes ctor exactly once. A panic, an error or a nil instance
// is a FACTORY_FAILURE.
func construct(ctor smcplugin.Constructor) (instance smcplugin.Contract, err error) {
	defer func() {
		if r := recover(); r != nil {
			instance = nil
			err = oops.In("loader").
				Code(CodeFactoryFailure).
				With("panic", fmt.Sprint(r)).
				Errorf("plugin factory panicked: %v", r)
		}
	}()

	instance, err = ctor()
	if err != nil {
		return nil, classify(oops.In("loader"), CodeFactoryFailure, err)
	}
	if instance == nil {
		return nil, oops.In("loader").
			Code(CodeFactoryFailure).
			Errorf("plugin factory returned no instance")
	}
	return instance, nil
}
