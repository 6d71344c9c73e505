// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

package exchange

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// MarshalJSON encodes the map as a flat JSON object with sorted keys.
// Floats always carry a fraction or exponent; NaN and infinities are rejected.
func (m Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, oops.In("exchange").Code(CodeInvalidValue).With("key", k).Wrap(err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := m[k].MarshalJSON()
		if err != nil {
			return nil, oops.In("exchange").With("key", k).Wrap(err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON encodes a single scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindFloat && (math.IsNaN(v.f) || math.IsInf(v.f, 0)) {
		return nil, oops.In("exchange").
			Code(CodeInvalidValue).
			Errorf("float %v cannot be encoded as JSON", v.f)
	}
	if !v.IsValid() {
		return nil, oops.In("exchange").Code(CodeInvalidValue).Errorf("cannot encode invalid value")
	}
	return []byte(v.String()), nil
}

// UnmarshalJSON decodes a flat JSON object. Numbers without a fraction or
// exponent become ints, the rest become floats. Duplicate keys are rejected.
func (m *Map) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return oops.In("exchange").Code(CodeInvalidValue).Hint("expected a flat JSON object").Wrap(err)
	}
	if tok == nil {
		return oops.In("exchange").Code(CodeInvalidValue).Errorf("exchange map cannot be null")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return oops.In("exchange").
			Code(CodeInvalidValue).
			Hint("expected a flat JSON object").
			Errorf("exchange map must be a JSON object, got %v", tok)
	}

	out := New()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return oops.In("exchange").Code(CodeInvalidValue).Wrap(err)
		}
		key, _ := tok.(string)
		if _, dup := out[key]; dup {
			return oops.In("exchange").Code(CodeInvalidValue).With("key", key).Errorf("duplicate key %q", key)
		}
		var rv any
		if err := dec.Decode(&rv); err != nil {
			return oops.In("exchange").Code(CodeInvalidValue).With("key", key).Wrap(err)
		}
		v, err := fromJSON(key, rv)
		if err != nil {
			return err
		}
		out[key] = v
	}
	if _, err := dec.Token(); err != nil {
		return oops.In("exchange").Code(CodeInvalidValue).Wrap(err)
	}
	*m = out
	return nil
}

func fromJSON(key string, rv any) (Value, error) {
	switch val := rv.(type) {
	case bool:
		return Bool(val), nil
	case json.Number:
		s := val.String()
		if strings.ContainsAny(s, ".eE") {
			f, err := val.Float64()
			if err != nil {
				return Value{}, oops.In("exchange").Code(CodeInvalidValue).With("key", key).Wrap(err)
			}
			return Float(f), nil
		}
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Value{}, oops.In("exchange").
				Code(CodeInvalidValue).
				With("key", key).
				Hint("integers must fit in 64 bits").
				Wrap(err)
		}
		return Int(i), nil
	default:
		return Value{}, oops.In("exchange").
			Code(CodeInvalidValue).
			With("key", key).
			Errorf("key %q: only int, float and bool values are allowed, got %T", key, rv)
	}
}

// MarshalYAML emits a mapping node whose scalars carry explicit tags, so
// that floats like 1.0 survive a round trip.
func (m Map) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range m.Keys() {
		v := m[k]
		var tag string
		switch v.kind {
		case KindInt:
			tag = "!!int"
		case KindFloat:
			tag = "!!float"
		case KindBool:
			tag = "!!bool"
		default:
			return nil, oops.In("exchange").Code(CodeInvalidValue).With("key", k).Errorf("cannot encode invalid value")
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: yamlScalar(v)},
		)
	}
	return node, nil
}

func yamlScalar(v Value) string {
	if v.kind != KindFloat {
		return v.String()
	}
	switch {
	case math.IsNaN(v.f):
		return ".nan"
	case math.IsInf(v.f, 1):
		return ".inf"
	case math.IsInf(v.f, -1):
		return "-.inf"
	default:
		return formatFloat(v.f)
	}
}

// UnmarshalYAML decodes a flat YAML mapping, using the resolved scalar tag
// to pick the value kind.
func (m *Map) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*m = New()
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return oops.In("exchange").
			Code(CodeInvalidValue).
			With("line", node.Line).
			Errorf("exchange map must be a YAML mapping")
	}

	out := make(Map, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		key := keyNode.Value
		if _, dup := out[key]; dup {
			return oops.In("exchange").Code(CodeInvalidValue).With("key", key).Errorf("duplicate key %q", key)
		}
		v, err := fromYAML(key, valNode)
		if err != nil {
			return err
		}
		out[key] = v
	}
	*m = out
	return nil
}

func fromYAML(key string, n *yaml.Node) (Value, error) {
	if n.Kind != yaml.ScalarNode {
		return Value{}, oops.In("exchange").
			Code(CodeInvalidValue).
			With("key", key).
			With("line", n.Line).
			Errorf("key %q: nested values are not allowed", key)
	}

	var err error
	switch n.ShortTag() {
	case "!!int":
		var i int64
		if err = n.Decode(&i); err == nil {
			return Int(i), nil
		}
	case "!!float":
		var f float64
		if err = n.Decode(&f); err == nil {
			return Float(f), nil
		}
	case "!!bool":
		var b bool
		if err = n.Decode(&b); err == nil {
			return Bool(b), nil
		}
	default:
		return Value{}, oops.In("exchange").
			Code(CodeInvalidValue).
			With("key", key).
			With("line", n.Line).
			Errorf("key %q: only int, float and bool values are allowed, got %s", key, n.ShortTag())
	}
	return Value{}, oops.In("exchange").Code(CodeInvalidValue).With("key", key).Wrap(err)
}
