// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

package smcplugin

import (
	"io"

	"github.com/samber/oops"

	"github.com/smcverify/smcplug/pkg/exchange"
)

// Compile-time interface check.
var _ Contract = (*Plugin)(nil)

// Plugin wraps an Implementation in the enforced lifecycle state machine.
type Plugin struct {
	impl  Implementation
	state State
}

// New wraps impl. Panics if impl is nil.
func New(impl Implementation) *Plugin {
	if impl == nil {
		panic("smcplugin: implementation cannot be nil")
	}
	return &Plugin{impl: impl}
}

// Name returns the implementation name.
func (p *Plugin) Name() string {
	return p.impl.Name()
}

// State reports the lifecycle state.
func (p *Plugin) State() State {
	return p.state
}

// SetRandomSeed forwards seed to implementations that implement Seeder and
// is a no-op otherwise.
func (p *Plugin) SetRandomSeed(seed uint32) {
	if s, ok := p.impl.(Seeder); ok {
		s.SetRandomSeed(seed)
	}
}

// LoadParameters validates and applies config. Loading parameters twice is
// rejected with ALREADY_CONFIGURED and leaves the instance untouched.
func (p *Plugin) LoadParameters(config exchange.Map) error {
	if p.state == Configured {
		return ErrAlreadyConfigured(p.Name())
	}
	if err := config.Validate(); err != nil {
		return failure(CodeConfiguration, p.Name(), "load_parameters", err)
	}

	cfg := config.Clone()
	if err := guard(func() error { return p.impl.ProcessInitParameters(cfg) }); err != nil {
		return failure(CodeConfiguration, p.Name(), "load_parameters", err)
	}

	p.state = Configured
	return nil
}

// Reset restores the initial state. Requires Configured.
func (p *Plugin) Reset() (exchange.Map, error) {
	if p.state != Configured {
		return nil, ErrLifecycleViolation(p.Name(), "reset")
	}

	var out exchange.Map
	err := guard(func() error {
		var hookErr error
		out, hookErr = p.impl.ProcessReset()
		return hookErr
	})
	return p.outputs("reset", out, err)
}

// NextStep advances the state with input. Requires Configured.
func (p *Plugin) NextStep(input exchange.Map) (exchange.Map, error) {
	if p.state != Configured {
		return nil, ErrLifecycleViolation(p.Name(), "next_step")
	}
	if err := input.Validate(); err != nil {
		return nil, failure(CodeStepFailure, p.Name(), "next_step", err)
	}

	in := input.Clone()
	var out exchange.Map
	err := guard(func() error {
		var hookErr error
		out, hookErr = p.impl.ProcessInput(in)
		return hookErr
	})
	return p.outputs("next_step", out, err)
}

// outputs maps the hook result onto the single error channel: a hook error,
// a nil map and a map holding invalid values are all STEP_FAILURE.
func (p *Plugin) outputs(op string, out exchange.Map, err error) (exchange.Map, error) {
	if err != nil {
		return nil, failure(CodeStepFailure, p.Name(), op, err)
	}
	if out == nil {
		return nil, oops.In("smcplugin").
			Code(CodeStepFailure).
			With("plugin", p.Name()).
			With("operation", op).
			Errorf("%s produced no outputs", op)
	}
	if err := out.Validate(); err != nil {
		return nil, failure(CodeStepFailure, p.Name(), op, err)
	}
	return out.Clone(), nil
}

// Close releases resources held by the implementation when it implements
// io.Closer. The instance must not be used afterwards.
func (p *Plugin) Close() error {
	if c, ok := p.impl.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
	}()
	return fn()
}
