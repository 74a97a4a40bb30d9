// Copyright (C) 2026 Hunch Creative Ltd (dev@hunchcreative.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// engineTracerName is the shared OTel tracer name for all Engine adapters.
const engineTracerName = "dot.assistant.engine"

// Package-level Prometheus metrics for Engine adapter operations.
// Auto-registered via promauto so no explicit registry wiring is needed.
var (
	// generateCallDuration measures the duration of Engine API calls.
	//
	// Labels:
	//   - provider: "anthropic", "openai", or "gemini"
	//   - status: "success" or "error"
	generateCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dot",
			Subsystem: "engine",
			Name:      "call_duration_seconds",
			Help:      "Duration of Engine API calls in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "status"},
	)

	// generateCallsTotal counts the total number of Engine API calls.
	//
	// Labels:
	//   - provider: "anthropic", "openai", or "gemini"
	//   - status: "success" or "error"
	generateCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dot",
			Subsystem: "engine",
			Name:      "calls_total",
			Help:      "Total number of Engine API calls.",
		},
		[]string{"provider", "status"},
	)

	// generateErrorsTotal counts Engine errors by type.
	//
	// Labels:
	//   - provider: "anthropic", "openai", or "gemini"
	//   - error_type: "timeout", "auth", "rate_limit", "server", "nil_client", "unknown"
	generateErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dot",
			Subsystem: "engine",
			Name:      "errors_total",
			Help:      "Total Engine errors by type.",
		},
		[]string{"provider", "error_type"},
	)
)

// classifyGenerateError maps an error to a label-safe error type string.
//
// Description:
//
//	Inspects the error message to categorize it into one of the predefined
//	error types. Used for Prometheus labels to avoid high cardinality.
//
// Inputs:
//
//	err - The error to classify. May be nil.
//
// Outputs:
//
//	string - One of: "timeout", "auth", "rate_limit", "server",
//	         "nil_client", "unknown". Returns empty string for nil error.
//
// Thread Safety: Safe for concurrent use.
func classifyGenerateError(err error) string {
	if err == nil {
		return ""
	}

	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "client is nil"):
		return "nil_client"
	case strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "context canceled") ||
		strings.Contains(msg, "timeout"):
		return "timeout"
	case strings.Contains(msg, "status 401") ||
		strings.Contains(msg, "status 403") ||
		strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "authentication") ||
		strings.Contains(msg, "api key"):
		return "auth"
	case strings.Contains(msg, "status 429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests"):
		return "rate_limit"
	case strings.Contains(msg, "status 500") ||
		strings.Contains(msg, "status 502") ||
		strings.Contains(msg, "status 503") ||
		strings.Contains(msg, "server error") ||
		strings.Contains(msg, "overloaded"):
		return "server"
	default:
		return "unknown"
	}
}

// recordGenerateMetrics records Prometheus metrics for a completed Engine call.
//
// Description:
//
//	One-shot metric recording for both success and error paths.
//
// Inputs:
//
//	provider - Provider name ("anthropic", "openai", "gemini").
//	duration - How long the call took.
//	err - The error, if any. Nil means success.
//
// Thread Safety: Safe for concurrent use.
func recordGenerateMetrics(provider string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
		errType := classifyGenerateError(err)
		generateErrorsTotal.WithLabelValues(provider, errType).Inc()
	}

	generateCallDuration.WithLabelValues(provider, status).Observe(duration.Seconds())
	generateCallsTotal.WithLabelValues(provider, status).Inc()
}
