// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

package catalog

import "github.com/samber/oops"

// Error codes returned by the catalog.
const (
	CodeInvalidManifest      = "INVALID_MANIFEST"
	CodePluginNotFound       = "PLUGIN_NOT_FOUND"
	CodeIncompatibleContract = "INCOMPATIBLE_CONTRACT"
	CodeUnsupportedRuntime   = "UNSUPPORTED_RUNTIME"
)

// invalid reports err as an invalid manifest. A cause with its own code is
// flattened so INVALID_MANIFEST stays the outermost code.
func invalid(b oops.OopsErrorBuilder, msg string, err error) error {
	b = b.Code(CodeInvalidManifest)
	o, ok := oops.AsOops(err)
	if !ok {
		return b.Wrapf(err, "%s", msg)
	}
	for k, v := range o.Context() {
		b = b.With(k, v)
	}
	if inner, _ := o.Code().(string); inner != "" {
		b = b.With("cause_code", inner)
	}
	return b.Errorf("%s: %s", msg, err.Error())
}
