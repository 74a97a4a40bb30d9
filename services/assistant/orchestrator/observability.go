// Copyright (C) 2026 Hunch Creative Ltd (dev@hunchcreative.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Observability
// =============================================================================

// orchestratorTracerName is the tracer identifier for query orchestration
// spans.
const orchestratorTracerName = "dot.assistant.orchestrator"

// Query outcomes recorded on metrics and spans.
const (
	// outcomeParsed means the engine produced a valid intent.
	outcomeParsed = "parsed"
	// outcomeSoftFail means the engine responded but the response did not
	// parse as intent JSON.
	outcomeSoftFail = "soft_fail"
	// outcomeEngineError means a generation round failed outright.
	outcomeEngineError = "engine_error"
)

var (
	queryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dot",
			Subsystem: "orchestrator",
			Name:      "query_duration_seconds",
			Help:      "End-to-end duration of query orchestration, including tool rounds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"outcome"},
	)

	queriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dot",
			Subsystem: "orchestrator",
			Name:      "queries_total",
			Help:      "Total queries orchestrated, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	toolRoundsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dot",
			Subsystem: "orchestrator",
			Name:      "tool_rounds_total",
			Help:      "Queries whose first round requested tool execution.",
		},
	)
)

// recordQueryMetrics records one orchestrated query.
func recordQueryMetrics(outcome string, duration time.Duration) {
	queryDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	queriesTotal.WithLabelValues(outcome).Inc()
}
