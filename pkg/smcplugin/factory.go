// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

package smcplugin

// FactorySymbol is the fixed name of the factory a plugin module exports.
// It is the only contract between the host and a plugin artifact.
const FactorySymbol = "SMCPluginFactory"

// Factory creates one plugin instance. Each call returns a new, independent
// instance owned by the caller.
type Factory func() Contract

// Register builds the exported factory for an implementation constructor.
// Every instance it returns is wrapped in the lifecycle state machine.
//
//	var SMCPluginFactory = smcplugin.Register(accumulation.New)
func Register[T Implementation](newImpl func() T) Factory {
	if newImpl == nil {
		panic("smcplugin: constructor cannot be nil")
	}
	return func() Contract {
		return New(newImpl())
	}
}

// Constructor is the fallible form of Factory. Loaders accept a module
// exporting either form under FactorySymbol.
type Constructor func() (Contract, error)
