// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

package loader

import "github.com/samber/oops"

// Error codes returned by Load and by a released Handle.
const (
	CodeInvalidName        = "INVALID_NAME"
	CodeOpenFailure        = "OPEN_FAILURE"
	CodeSymbolResolution   = "SYMBOL_RESOLUTION_FAILURE"
	CodeFactoryFailure     = "FACTORY_FAILURE"
	CodeHandleReleased     = "HANDLE_RELEASED"
	CodeModuleCloseFailure = "MODULE_CLOSE_FAILURE"
)

// Load outcomes used as metric labels.
const (
	OutcomeLoaded         = "loaded"
	OutcomeNotFound       = "not_found"
	OutcomeInvalidName    = "invalid_name"
	OutcomeOpenFailure    = "open_failure"
	OutcomeSymbolFailure  = "symbol_failure"
	OutcomeFactoryFailure = "factory_failure"
)

func outcomeOf(err error) string {
	o, ok := oops.AsOops(err)
	if !ok {
		return OutcomeOpenFailure
	}
	switch o.Code() {
	case CodeInvalidName:
		return OutcomeInvalidName
	case CodeSymbolResolution:
		return OutcomeSymbolFailure
	case CodeFactoryFailure:
		return OutcomeFactoryFailure
	default:
		return OutcomeOpenFailure
	}
}

// classify attaches code to err. Oops keeps the innermost code, so a cause
// that already carries one is flattened instead of wrapped.
func classify(b oops.OopsErrorBuilder, code string, err error) error {
	b = b.Code(code)
	o, ok := oops.AsOops(err)
	if !ok {
		return b.Wrap(err)
	}
	inner, _ := o.Code().(string)
	if inner == "" {
		return b.Wrap(err)
	}
	for k, v := range o.Context() {
		b = b.With(k, v)
	}
	return b.With("cause_code", inner).Errorf("%s", err.Error())
}
