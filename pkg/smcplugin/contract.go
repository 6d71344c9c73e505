// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

// Package smcplugin defines the lifecycle contract every SMC plugin honors
// and the SDK plugin authors use to fulfill it.
//
// A plugin author implements Implementation (the extension points) and
// exports a factory built with Register:
//
//	package main
//
//	import "github.com/smcverify/smcplug/pkg/smcplugin"
//
//	var SMCPluginFactory = smcplugin.Register(NewCounter)
//
//	// Allows the same package to run as a process plugin.
//	func main() { smcplugin.Serve(SMCPluginFactory) }
//
// The host only ever sees the Contract returned by the factory. That
// Contract enforces the state machine
//
//	Unconfigured --LoadParameters(valid)--> Configured
//	Configured   --Reset / NextStep-------> Configured
//
// and rejects Reset and NextStep while Unconfigured with a
// LIFECYCLE_VIOLATION error. Every fallible operation reports failure
// through its returned error; a nil map is never a success.
package smcplugin

import (
	"github.com/smcverify/smcplug/pkg/exchange"
)

// ContractVersion is the version of this contract. Plugin manifests state
// a semver constraint against it.
const ContractVersion = "1.0.0"

// State is the lifecycle state of a plugin instance.
type State int

// Lifecycle states. There is no transition back to Unconfigured.
const (
	Unconfigured State = iota
	Configured
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Unconfigured:
		return "unconfigured"
	case Configured:
		return "configured"
	default:
		return "unknown"
	}
}

// Contract is the host-facing interface of a plugin instance.
//
// A Contract is not safe for concurrent use: callers either keep one
// instance per goroutine or serialize all calls to a shared instance.
type Contract interface {
	// Name returns the stable identifier of the implementation.
	Name() string

	// SetRandomSeed seeds internal randomness. Callable in any state.
	SetRandomSeed(seed uint32)

	// LoadParameters validates and applies config, then moves the instance
	// to Configured. On error the instance stays Unconfigured.
	LoadParameters(config exchange.Map) error

	// Reset restores the initial internal state and returns the matching outputs.
	Reset() (exchange.Map, error)

	// NextStep advances the internal state using input and returns the new outputs.
	NextStep(input exchange.Map) (exchange.Map, error)

	// State reports the lifecycle state.
	State() State
}

// Implementation holds the extension points a concrete plugin provides.
// The lifecycle checks are done by Plugin before any hook runs, so hooks
// never see an unconfigured Reset or NextStep.
type Implementation interface {
	// Name returns the stable identifier of the implementation.
	Name() string

	// ProcessInitParameters validates and applies the configuration.
	ProcessInitParameters(config exchange.Map) error

	// ProcessReset resets the internal state and returns the initial outputs.
	ProcessReset() (exchange.Map, error)

	// ProcessInput validates input, advances the state and returns the outputs.
	ProcessInput(input exchange.Map) (exchange.Map, error)
}

// Seeder is implemented by plugins that use randomness.
type Seeder interface {
	SetRandomSeed(seed uint32)
}
