// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

package loader

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LoadsTotal counts Load calls by backend and outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var LoadsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "smcplug_loader_loads_total",
		Help: "Total number of plugin load attempts by backend and outcome",
	},
	[]string{"backend", "outcome"},
)

// LoadDuration is the histogram of Load latency.
// Use RegisterMetrics to register this with a Prometheus registry.
var LoadDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "smcplug_loader_load_duration_seconds",
		Help:    "Plugin load duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"backend"},
)

// OpenHandles tracks handles that have been loaded and not yet closed.
var OpenHandles = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "smcplug_loader_open_handles",
		Help: "Number of plugin handles currently open by backend",
	},
	[]string{"backend"},
)

// Collectors returns the loader metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{LoadsTotal, LoadDuration, OpenHandles}
}

// RegisterMetrics registers the loader metrics with reg.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Collectors()...)
}

func recordLoad(backend, outcome string, d time.Duration) {
	LoadsTotal.WithLabelValues(backend, outcome).Inc()
	LoadDuration.WithLabelValues(backend).Observe(d.Seconds())
}
