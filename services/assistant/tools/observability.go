// Copyright (C) 2026 Hunch Creative Ltd (dev@hunchcreative.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tools

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Package-level Prometheus metrics for tool dispatch.
// Auto-registered via promauto so no explicit registry wiring is needed.
var (
	// toolExecutionsTotal counts tool dispatches.
	//
	// Labels:
	//   - tool: the requested tool name
	//   - status: "success", "error", "unknown", "panic"
	toolExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dot",
			Subsystem: "tools",
			Name:      "executions_total",
			Help:      "Total tool dispatches by outcome.",
		},
		[]string{"tool", "status"},
	)

	// toolExecutionDuration measures tool execution time.
	//
	// Labels:
	//   - tool: the requested tool name
	//   - status: "success", "error", "unknown", "panic"
	toolExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dot",
			Subsystem: "tools",
			Name:      "execution_duration_seconds",
			Help:      "Duration of tool executions in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"tool", "status"},
	)
)

// recordToolMetrics records one completed dispatch.
//
// Thread Safety: Safe for concurrent use.
func recordToolMetrics(tool, status string, duration time.Duration) {
	toolExecutionsTotal.WithLabelValues(tool, status).Inc()
	toolExecutionDuration.WithLabelValues(tool, status).Observe(duration.Seconds())
}
