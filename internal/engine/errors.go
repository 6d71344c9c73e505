// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

package engine

// Error codes returned by the engine.
const (
	CodeInvalidTrajectory = "INVALID_TRAJECTORY"
	CodeRunCancelled      = "RUN_CANCELLED"
	CodeOutputMismatch    = "OUTPUT_MISMATCH"
)

// Phases reported in the "phase" context of run errors and as metric labels.
const (
	PhaseSeed      = "seed"
	PhaseConfigure = "configure"
	PhaseReset     = "reset"
	PhaseStep      = "step"
)
