// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

// Package exchange defines the typed key/value map that is the only data
// format crossing the plugin boundary: configuration goes in, states and
// outputs come out.
//
// Values are restricted to a closed set of scalar kinds (64-bit signed
// integer, 64-bit float, boolean). Typed extraction never converts between
// kinds: asking for an int where a float is stored is an error.
package exchange

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/oops"
)

// Error codes returned by map lookups and decoders.
const (
	CodeKeyNotFound  = "KEY_NOT_FOUND"
	CodeTypeMismatch = "TYPE_MISMATCH"
	CodeInvalidValue = "INVALID_VALUE"
)

// Kind identifies the scalar kind held by a Value.
type Kind uint8

// Supported value kinds. KindInvalid is the zero Value.
const (
	KindInvalid Kind = iota
	KindInt
	KindFloat
	KindBool
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	default:
		return "invalid"
	}
}

// Value is a tagged scalar. The zero Value is invalid and is never stored
// by the decoders in this package.
type Value struct {
	kind Kind
	i    int64
	f    float64
	b    bool
}

// Int returns an integer Value.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Float returns a floating point Value.
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// Bool returns a boolean Value.
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// Kind reports the kind of the stored scalar.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds a scalar.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// AsInt returns the stored integer or a TYPE_MISMATCH error.
func (v Value) AsInt() (int64, error) {
	if v.kind != KindInt {
		return 0, mismatch("", KindInt, v.kind)
	}
	return v.i, nil
}

// AsFloat returns the stored float or a TYPE_MISMATCH error.
func (v Value) AsFloat() (float64, error) {
	if v.kind != KindFloat {
		return 0, mismatch("", KindFloat, v.kind)
	}
	return v.f, nil
}

// AsBool returns the stored boolean or a TYPE_MISMATCH error.
func (v Value) AsBool() (bool, error) {
	if v.kind != KindBool {
		return false, mismatch("", KindBool, v.kind)
	}
	return v.b, nil
}

// Equal reports whether both values have the same kind and payload.
// NaN floats compare equal to each other.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f || (math.IsNaN(v.f) && math.IsNaN(o.f))
	case KindBool:
		return v.b == o.b
	default:
		return true
	}
}

// String formats the value the way the literal syntax and JSON codec write it.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return formatFloat(v.f)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return "<invalid>"
	}
}

// formatFloat always keeps a fraction or exponent so that the text form
// cannot be read back as an integer.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if strings.ContainsAny(s, ".eEnN") { // NaN, Inf carry letters
		return s
	}
	return s + ".0"
}

// Map is the exchange map. A nil Map is a valid empty map for reads.
type Map map[string]Value

// New returns an empty Map.
func New() Map {
	return make(Map)
}

// Get returns the value stored under key and whether it was present.
func (m Map) Get(key string) (Value, bool) {
	v, ok := m[key]
	return v, ok
}

// Has reports whether key is present.
func (m Map) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// Set stores v under key and returns m for chaining.
func (m Map) Set(key string, v Value) Map {
	m[key] = v
	return m
}

// Int extracts an integer stored under key.
func (m Map) Int(key string) (int64, error) {
	v, err := m.lookup(key)
	if err != nil {
		return 0, err
	}
	if v.kind != KindInt {
		return 0, mismatch(key, KindInt, v.kind)
	}
	return v.i, nil
}

// Float extracts a float stored under key.
func (m Map) Float(key string) (float64, error) {
	v, err := m.lookup(key)
	if err != nil {
		return 0, err
	}
	if v.kind != KindFloat {
		return 0, mismatch(key, KindFloat, v.kind)
	}
	return v.f, nil
}

// Bool extracts a boolean stored under key.
func (m Map) Bool(key string) (bool, error) {
	v, err := m.lookup(key)
	if err != nil {
		return false, err
	}
	if v.kind != KindBool {
		return false, mismatch(key, KindBool, v.kind)
	}
	return v.b, nil
}

func (m Map) lookup(key string) (Value, error) {
	v, ok := m[key]
	if !ok {
		return Value{}, oops.In("exchange").
			Code(CodeKeyNotFound).
			With("key", key).
			Errorf("key %q not found", key)
	}
	return v, nil
}

// Equal reports whether both maps hold the same keys with equal values.
func (m Map) Equal(o Map) bool {
	if len(m) != len(o) {
		return false
	}
	for k, v := range m {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Clone returns an independent copy. Cloning nil yields an empty, non-nil map.
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Keys returns the keys in sorted order.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate rejects maps holding invalid (zero) values.
func (m Map) Validate() error {
	for _, k := range m.Keys() {
		if !m[k].IsValid() {
			return oops.In("exchange").
				Code(CodeInvalidValue).
				With("key", k).
				Errorf("key %q holds no value", k)
		}
	}
	return nil
}

// String renders the map in literal syntax with sorted keys.
func (m Map) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range m.Keys() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(k)
		sb.WriteString(": ")
		sb.WriteString(m[k].String())
	}
	sb.WriteByte('}')
	return sb.String()
}

func mismatch(key string, want, got Kind) error {
	b := oops.In("exchange").
		Code(CodeTypeMismatch).
		With("want", want.String()).
		With("got", got.String())
	if key != "" {
		return b.With("key", key).Errorf("key %q holds %s, not %s", key, got, want)
	}
	return b.Errorf("value holds %s, not %s", got, want)
}
