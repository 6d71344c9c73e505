// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

package smcplugin

import (
	"fmt"

	"github.com/samber/oops"
)

// Error codes for contract failures.
const (
	CodeConfiguration      = "CONFIGURATION_ERROR"
	CodeAlreadyConfigured  = "ALREADY_CONFIGURED"
	CodeLifecycleViolation = "LIFECYCLE_VIOLATION"
	CodeStepFailure        = "STEP_FAILURE"
	CodeTransportFailure   = "TRANSPORT_FAILURE"
)

// CodeOf returns the oops error code carried by err, or "" if none.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	o, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := o.Code().(string)
	return code
}

// IsLifecycleViolation reports whether err rejects a call made before configuration.
func IsLifecycleViolation(err error) bool {
	return CodeOf(err) == CodeLifecycleViolation
}

// IsConfigurationError reports whether err rejects a configuration.
func IsConfigurationError(err error) bool {
	return CodeOf(err) == CodeConfiguration
}

// IsStepFailure reports whether err reports a failed Reset or NextStep.
func IsStepFailure(err error) bool {
	return CodeOf(err) == CodeStepFailure
}

// ErrLifecycleViolation creates the error returned by Reset and NextStep
// on an unconfigured instance.
func ErrLifecycleViolation(plugin, op string) error {
	return oops.In("smcplugin").
		Code(CodeLifecycleViolation).
		With("plugin", plugin).
		With("operation", op).
		Hint("call LoadParameters first").
		Errorf("%s called before parameters were loaded", op)
}

// ErrAlreadyConfigured creates the error returned by a second LoadParameters.
func ErrAlreadyConfigured(plugin string) error {
	return oops.In("smcplugin").
		Code(CodeAlreadyConfigured).
		With("plugin", plugin).
		With("operation", "load_parameters").
		Errorf("parameters already loaded")
}

// failure classifies an error returned by an implementation hook. The
// cause is flattened into the message and context rather than wrapped so
// that the hook's own error codes cannot shadow code.
func failure(code, plugin, op string, cause error) error {
	b := oops.In("smcplugin").Code(code)
	if o, ok := oops.AsOops(cause); ok {
		for k, v := range o.Context() {
			b = b.With(k, v)
		}
		if inner := CodeOf(cause); inner != "" {
			b = b.With("cause_code", inner)
		}
	}
	return b.
		With("plugin", plugin).
		With("operation", op).
		Errorf("%s: %s", op, cause.Error())
}

// recovered turns a panic value from a hook into an error.
func recovered(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("plugin panicked: %w", err)
	}
	return fmt.Errorf("plugin panicked: %v", r)
}
