// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

package engine

import (
	"os"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/smcverify/smcplug/pkg/exchange"
)

// Trajectory is one simulation run: the configuration, an optional seed,
// the inputs fed to NextStep in order and, optionally, the outputs each
// step is expected to produce.
//
// Trajectory files are YAML; JSON documents parse as well.
//
//	parameters: {}
//	seed: 42
//	inputs:
//	  - {input_value: 1}
//	  - {input_value: 2}
//	expect:
//	  - {accumulated_value: 1}
//	  - {accumulated_value: 3}
type Trajectory struct {
	Parameters exchange.Map   `yaml:"parameters,omitempty"`
	Seed       *uint32        `yaml:"seed,omitempty"`
	Inputs     []exchange.Map `yaml:"inputs"`
	Expect     []exchange.Map `yaml:"expect,omitempty"`
}

// ParseTrajectory decodes and validates a trajectory document.
func ParseTrajectory(data []byte) (*Trajectory, error) {
	var t Trajectory
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, oops.In("engine").
			Code(CodeInvalidTrajectory).
			Errorf("invalid trajectory: %s", err.Error())
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// LoadTrajectory reads and parses the trajectory file at path.
func LoadTrajectory(path string) (*Trajectory, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is supplied by the operator
	if err != nil {
		return nil, oops.In("engine").With("path", path).Hint("failed to read trajectory").Wrap(err)
	}
	t, err := ParseTrajectory(data)
	if err != nil {
		return nil, oops.In("engine").With("path", path).Wrap(err)
	}
	return t, nil
}

// Validate checks that every map holds valid values and that Expect, when
// present, has one entry per input.
func (t *Trajectory) Validate() error {
	errb := oops.In("engine").Code(CodeInvalidTrajectory)
	if err := t.Parameters.Validate(); err != nil {
		return errb.With("phase", PhaseConfigure).Errorf("invalid parameters: %s", err.Error())
	}
	for i, in := range t.Inputs {
		if err := in.Validate(); err != nil {
			return errb.With("step", i).Errorf("invalid input %d: %s", i, err.Error())
		}
	}
	if len(t.Expect) > 0 && len(t.Expect) != len(t.Inputs) {
		return errb.
			With("inputs", len(t.Inputs)).
			With("expect", len(t.Expect)).
			Errorf("expect has %d entries for %d inputs", len(t.Expect), len(t.Inputs))
	}
	return nil
}
