// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

// Package catalog discovers plugins described by plugin.yaml manifests and
// opens them through the loader matching their runtime.
package catalog

import (
	"regexp"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/smcverify/smcplug/pkg/exchange"
	"github.com/smcverify/smcplug/pkg/smcplugin"
)

// ManifestFile is the manifest file name inside a plugin directory.
const ManifestFile = "plugin.yaml"

// Runtime identifies how a plugin artifact is loaded.
type Runtime string

// Runtimes supported by the catalog.
const (
	RuntimeShared  Runtime = "shared"
	RuntimeProcess Runtime = "process"
	RuntimeLua     Runtime = "lua"
)

// Manifest represents a plugin.yaml file.
type Manifest struct {
	Name        string       `yaml:"name" jsonschema:"pattern=^[a-z]([a-z0-9_-]*[a-z0-9])?$,maxLength=64"`
	Version     string       `yaml:"version" jsonschema:"minLength=1"`
	Runtime     Runtime      `yaml:"runtime" jsonschema:"enum=shared,enum=process,enum=lua"`
	Description string       `yaml:"description,omitempty"`
	Contract    string       `yaml:"contract,omitempty" jsonschema:"description=semver constraint on the plugin contract version"`
	Parameters  exchange.Map `yaml:"parameters,omitempty" jsonschema:"description=default configuration passed to LoadParameters"`
	Seed        *uint32      `yaml:"seed,omitempty" jsonschema:"description=default random seed"`
}

// maxNameLength is the maximum allowed length for plugin names.
const maxNameLength = 64

// namePattern validates plugin names: must start with a lowercase letter,
// followed by lowercase letters, digits, underscores or hyphens, and cannot
// end with an underscore or hyphen.
var namePattern = regexp.MustCompile(`^[a-z]([a-z0-9_-]*[a-z0-9])?$`)

// ParseManifest parses and validates a plugin.yaml file.
func ParseManifest(data []byte) (*Manifest, error) {
	if len(data) == 0 {
		return nil, oops.In("catalog").Code(CodeInvalidManifest).Errorf("manifest data is empty")
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, invalid(oops.In("catalog").Hint("invalid YAML"), "invalid YAML", err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks manifest constraints.
func (m *Manifest) Validate() error {
	errb := oops.In("catalog").Code(CodeInvalidManifest).With("plugin", m.Name)

	if m.Name == "" || !namePattern.MatchString(m.Name) {
		return errb.Errorf("name %q must start with a-z, contain only a-z, 0-9, '_' or '-', and end with a letter or digit", m.Name)
	}
	if len(m.Name) > maxNameLength {
		return errb.Errorf("name must be %d characters or less, got %d", maxNameLength, len(m.Name))
	}

	if m.Version == "" {
		return errb.Errorf("version is required")
	}
	if _, err := semver.NewVersion(m.Version); err != nil {
		return errb.With("version", m.Version).Wrapf(err, "version is not semver")
	}

	switch m.Runtime {
	case RuntimeShared, RuntimeProcess, RuntimeLua:
	default:
		return errb.Errorf("runtime must be 'shared', 'process' or 'lua', got %q", m.Runtime)
	}

	if _, err := m.constraint(); err != nil {
		return errb.With("contract", m.Contract).Wrapf(err, "contract is not a semver constraint")
	}

	if err := m.Parameters.Validate(); err != nil {
		return invalid(oops.In("catalog").With("plugin", m.Name), "invalid parameters", err)
	}

	return nil
}

// constraint returns the contract constraint. An empty constraint accepts
// any contract with the host's major version.
func (m *Manifest) constraint() (*semver.Constraints, error) {
	c := m.Contract
	if c == "" {
		c = "^" + smcplugin.ContractVersion
	}
	return semver.NewConstraint(c)
}

// CheckContract reports whether the manifest accepts contract version v.
func (m *Manifest) CheckContract(v string) error {
	c, err := m.constraint()
	if err != nil {
		return oops.In("catalog").Code(CodeInvalidManifest).With("plugin", m.Name).Wrap(err)
	}
	version, err := semver.NewVersion(v)
	if err != nil {
		return oops.In("catalog").With("contract_version", v).Wrap(err)
	}
	if ok, reasons := c.Validate(version); !ok {
		msgs := make([]string, len(reasons))
		for i, r := range reasons {
			msgs[i] = r.Error()
		}
		return oops.In("catalog").
			Code(CodeIncompatibleContract).
			With("plugin", m.Name).
			With("constraint", c.String()).
			With("contract_version", v).
			With("reasons", msgs).
			Errorf("plugin %s requires contract %s, host provides %s", m.Name, c.String(), v)
	}
	return nil
}
