// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

package smcplugin

import (
	"github.com/samber/oops"

	"github.com/smcverify/smcplug/pkg/exchange"
)

// WireValue is the gob-friendly form of an exchange value.
type WireValue struct {
	Kind  exchange.Kind
	Int   int64
	Float float64
	Bool  bool
}

// WireMap is the gob-friendly form of an exchange map.
type WireMap map[string]WireValue

// WireError carries a coded error across the process boundary.
type WireError struct {
	Code    string
	Message string
}

// ConfigReply is the reply to LoadParameters.
type ConfigReply struct {
	Err *WireError
}

// StepReply is the reply to Reset and NextStep.
type StepReply struct {
	Outputs WireMap
	Err     *WireError
}

// ToWire converts an exchange map for transport.
func ToWire(m exchange.Map) WireMap {
	out := make(WireMap, len(m))
	for k, v := range m {
		w := WireValue{Kind: v.Kind()}
		switch v.Kind() {
		case exchange.KindInt:
			w.Int, _ = v.AsInt()
		case exchange.KindFloat:
			w.Float, _ = v.AsFloat()
		case exchange.KindBool:
			w.Bool, _ = v.AsBool()
		}
		out[k] = w
	}
	return out
}

// FromWire converts a transported map back. Unknown kinds are rejected.
func FromWire(w WireMap) (exchange.Map, error) {
	out := make(exchange.Map, len(w))
	for k, v := range w {
		switch v.Kind {
		case exchange.KindInt:
			out[k] = exchange.Int(v.Int)
		case exchange.KindFloat:
			out[k] = exchange.Float(v.Float)
		case exchange.KindBool:
			out[k] = exchange.Bool(v.Bool)
		default:
			return nil, oops.In("smcplugin").
				Code(exchange.CodeInvalidValue).
				With("key", k).
				With("kind", int(v.Kind)).
				Errorf("key %q has unknown value kind", k)
		}
	}
	return out, nil
}

// toWireError flattens err into its code and message.
func toWireError(err error) *WireError {
	if err == nil {
		return nil
	}
	return &WireError{Code: CodeOf(err), Message: err.Error()}
}

// fromWireError rebuilds a coded error on the host side.
func fromWireError(plugin, op string, w *WireError) error {
	if w == nil {
		return nil
	}
	return oops.In("smcplugin").
		Code(w.Code).
		With("plugin", plugin).
		With("operation", op).
		With("remote", true).
		Errorf("%s", w.Message)
}
