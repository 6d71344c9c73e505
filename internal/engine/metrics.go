// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values.
const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// RunsTotal counts trajectory runs by plugin and outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var RunsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "smcplug_engine_runs_total",
		Help: "Total number of trajectory runs by plugin and outcome",
	},
	[]string{"plugin", "outcome"},
)

// CallsTotal counts contract calls made by the runner by plugin, phase
// and outcome.
var CallsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "smcplug_engine_calls_total",
		Help: "Total number of plugin contract calls by plugin, phase and outcome",
	},
	[]string{"plugin", "phase", "outcome"},
)

// StepDuration is the histogram of NextStep latency.
var StepDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "smcplug_engine_step_duration_seconds",
		Help:    "NextStep duration in seconds",
		Buckets: []float64{.00001, .0001, .001, .01, .1, 1},
	},
	[]string{"plugin"},
)

// Collectors returns the engine metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{RunsTotal, CallsTotal, StepDuration}
}

// RegisterMetrics registers the engine metrics with reg.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Collectors()...)
}

func outcome(err error) string {
	if err != nil {
		return outcomeFailure
	}
	return outcomeSuccess
}

func recordCall(plugin, phase string, err error) {
	CallsTotal.WithLabelValues(plugin, phase, outcome(err)).Inc()
}

func recordStep(plugin string, d time.Duration, err error) {
	recordCall(plugin, PhaseStep, err)
	StepDuration.WithLabelValues(plugin).Observe(d.Seconds())
}

func recordRun(plugin string, err error) {
	RunsTotal.WithLabelValues(plugin, outcome(err)).Inc()
}
