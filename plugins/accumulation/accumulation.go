// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

// Package accumulation implements the integer accumulation plugin: the
// output is the running sum of every integer fed to it since the last reset.
package accumulation

import (
	"math"

	"github.com/samber/oops"

	"github.com/smcverify/smcplug/pkg/exchange"
	"github.com/smcverify/smcplug/pkg/smcplugin"
)

// Plugin identity and exchange keys.
const (
	Name      = "int_accumulation_smc_plugin"
	InputKey  = "input_value"
	OutputKey = "accumulated_value"
)

// Compile-time interface check.
var _ smcplugin.Implementation = (*Accumulator)(nil)

// Accumulator sums integer inputs.
type Accumulator struct {
	current int64
}

// New returns an accumulator at zero.
func New() *Accumulator {
	return &Accumulator{}
}

// Name returns the plugin name.
func (a *Accumulator) Name() string {
	return Name
}

// ProcessInitParameters accepts only the empty configuration.
func (a *Accumulator) ProcessInitParameters(config exchange.Map) error {
	if len(config) != 0 {
		return oops.In("accumulation").
			With("keys", config.Keys()).
			Errorf("invalid configuration: expected no parameters")
	}
	return nil
}

// ProcessReset sets the sum back to zero.
func (a *Accumulator) ProcessReset() (exchange.Map, error) {
	a.current = 0
	return a.outputs(), nil
}

// ProcessInput adds the single integer input to the sum.
func (a *Accumulator) ProcessInput(input exchange.Map) (exchange.Map, error) {
	if len(input) != 1 || !input.Has(InputKey) {
		return nil, oops.In("accumulation").
			With("keys", input.Keys()).
			Errorf("invalid input: expected only %q", InputKey)
	}
	n, err := input.Int(InputKey)
	if err != nil {
		return nil, err
	}
	if (n > 0 && a.current > math.MaxInt64-n) || (n < 0 && a.current < math.MinInt64-n) {
		return nil, oops.In("accumulation").
			With("current", a.current).
			With("input", n).
			Errorf("accumulated value overflows int64")
	}
	a.current += n
	return a.outputs(), nil
}

func (a *Accumulator) outputs() exchange.Map {
	return exchange.Map{OutputKey: exchange.Int(a.current)}
}
