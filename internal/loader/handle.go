// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

package loader

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/smcverify/smcplug/pkg/exchange"
	"github.com/smcverify/smcplug/pkg/smcplugin"
)

// Compile-time interface check.
var _ smcplugin.Contract = (*Handle)(nil)

// Handle owns a plugin instance together with the module it came from.
// Close releases the instance first and the module second, so the code
// behind the instance is never unloaded while the instance is reachable.
//
// A Handle forwards the Contract to its instance. Like the instance, it is
// not safe for concurrent use apart from Close.
type Handle struct {
	id      ulid.ULID
	name    string
	path    string
	backend string

	mu       sync.Mutex
	instance smcplugin.Contract
	module   Module
}

func newHandle(name, path, backend string, instance smcplugin.Contract, module Module) *Handle {
	OpenHandles.WithLabelValues(backend).Inc()
	return &Handle{
		id:       ulid.Make(),
		name:     name,
		path:     path,
		backend:  backend,
		instance: instance,
		module:   module,
	}
}

// ID returns the unique id of this handle, used to correlate logs.
func (h *Handle) ID() string { return h.id.String() }

// Name returns the plugin name. It stays valid after Close.
func (h *Handle) Name() string { return h.name }

// Path returns the artifact path the plugin was loaded from.
func (h *Handle) Path() string { return h.path }

// Backend returns the name of the backend that opened the artifact.
func (h *Handle) Backend() string { return h.backend }

// Released reports whether Close has been called.
func (h *Handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.instance == nil
}

// Instance returns the owned instance, or nil after Close. The instance
// must not be used once the handle is closed.
func (h *Handle) Instance() smcplugin.Contract {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.instance
}

// SetRandomSeed forwards the seed. It is ignored on a released handle.
func (h *Handle) SetRandomSeed(seed uint32) {
	inst, err := h.live("set_random_seed")
	if err != nil {
		slog.Warn("seed ignored on released plugin handle", "plugin", h.name, "handle", h.ID())
		return
	}
	inst.SetRandomSeed(seed)
}

// LoadParameters forwards the configuration.
func (h *Handle) LoadParameters(config exchange.Map) error {
	inst, err := h.live("load_parameters")
	if err != nil {
		return err
	}
	return inst.LoadParameters(config)
}

// Reset forwards a reset.
func (h *Handle) Reset() (exchange.Map, error) {
	inst, err := h.live("reset")
	if err != nil {
		return nil, err
	}
	return inst.Reset()
}

// NextStep forwards one step.
func (h *Handle) NextStep(input exchange.Map) (exchange.Map, error) {
	inst, err := h.live("next_step")
	if err != nil {
		return nil, err
	}
	return inst.NextStep(input)
}

// State returns the instance state. A released handle reports Unconfigured.
func (h *Handle) State() smcplugin.State {
	inst, err := h.live("state")
	if err != nil {
		return smcplugin.Unconfigured
	}
	return inst.State()
}

// Close releases the instance and then the module. Calling Close again is
// a no-op.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.instance == nil {
		return nil
	}

	var errs []error
	if c, ok := h.instance.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	h.instance = nil

	if err := h.module.Close(); err != nil {
		errs = append(errs, err)
	}
	h.module = nil
	OpenHandles.WithLabelValues(h.backend).Dec()

	if err := errors.Join(errs...); err != nil {
		return oops.In("loader").
			Code(CodeModuleCloseFailure).
			With("plugin", h.name).
			With("handle", h.ID()).
			Errorf("closing plugin handle: %v", err)
	}
	slog.Debug("plugin handle closed", "plugin", h.name, "handle", h.ID(), "backend", h.backend)
	return nil
}

func (h *Handle) live(op string) (smcplugin.Contract, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.instance == nil {
		return nil, oops.In("loader").
			Code(CodeHandleReleased).
			With("plugin", h.name).
			With("handle", h.ID()).
			With("operation", op).
			Errorf("%s called on a released plugin handle", op)
	}
	return h.instance, nil
}
