// Copyright (C) 2026 Hunch Creative Ltd (dev@hunchcreative.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package telemetry bootstraps the OpenTelemetry trace exporter. Spans are
// created throughout the codebase unconditionally; this package decides
// whether they go anywhere.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// EnvTraceExporter selects the span exporter: "otlp", "stdout", or unset/
// "off" for no exporting. The otlp exporter honors the standard
// OTEL_EXPORTER_OTLP_ENDPOINT variable.
const EnvTraceExporter = "DOT_TRACE_EXPORTER"

// SetupTracing installs a global tracer provider per DOT_TRACE_EXPORTER.
//
// Description:
//
//	With the variable unset the global provider stays a no-op and span
//	creation costs almost nothing, so instrumented code needs no feature
//	flags. The returned shutdown func flushes pending spans; call it on
//	process exit. It is non-nil even in the off case.
//
// Outputs:
//   - func(context.Context) error: Shutdown hook.
//   - error: Non-nil for an unrecognized exporter name or exporter
//     construction failure.
func SetupTracing(ctx context.Context, serviceName string, logger *slog.Logger) (func(context.Context) error, error) {
	if logger == nil {
		logger = slog.Default()
	}

	mode := strings.ToLower(strings.TrimSpace(os.Getenv(EnvTraceExporter)))

	var exporter sdktrace.SpanExporter
	var err error
	switch mode {
	case "", "off", "none":
		logger.Debug("trace exporting disabled")
		return func(context.Context) error { return nil }, nil
	case "otlp":
		var opts []otlptracegrpc.Option
		if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" {
			// No endpoint configured means a collector sidecar on the
			// default port, which speaks plaintext.
			opts = append(opts,
				otlptracegrpc.WithEndpoint("localhost:4317"),
				otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
			)
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("telemetry: creating otlp exporter: %w", err)
		}
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("telemetry: creating stdout exporter: %w", err)
		}
	default:
		return nil, fmt.Errorf("telemetry: unknown trace exporter %q (valid: otlp, stdout, off)", mode)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
	)

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	logger.Info("trace exporting enabled", slog.String("exporter", mode), slog.String("service", serviceName))
	return provider.Shutdown, nil
}
