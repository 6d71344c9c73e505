// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/smcverify/smcplug/internal/observability"
)

// Output formats accepted by --output.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func validateFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatYAML:
		return nil
	default:
		return oops.Errorf("output must be 'text', 'json' or 'yaml', got %q", format)
	}
}

// encode writes v as JSON or YAML. text is used for the text format.
func encode(w io.Writer, format string, v any, text func(io.Writer) error) error {
	var err error
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err = enc.Encode(v); err == nil {
			err = enc.Close()
		}
	default:
		err = text(w)
	}
	if err != nil {
		observability.RecordOutputWriteFailure(format)
		return oops.With("format", format).Hint("failed to write output").Wrap(err)
	}
	return nil
}

// printf writes to w, ignoring errors like fmt.Fprintf callers usually do
// for terminal output.
func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
