// Copyright (C) 2026 Hunch Creative Ltd (dev@hunchcreative.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hunchcreative/dot/services/llm"
	"github.com/hunchcreative/dot/services/records"
)

// =============================================================================
// reserve_job_number Tool
// =============================================================================

var reserveJobNumberTracer = otel.Tracer("dot.tools.reserve_job_number")

// ReserveJobNumberParams contains the parsed input parameters.
type ReserveJobNumberParams struct {
	// ClientCode identifies the client whose sequence advances. Required.
	ClientCode string `json:"clientCode"`
}

// reserveJobNumberTool wraps records.Store.ReserveJobNumber.
//
// Description:
//
//	Reserves the next job number for a client and advances the sequence.
//	This is the only tool that writes. The dispatcher fronts it with a
//	confirmation step, so by the time Execute runs the reservation is
//	meant to happen.
//
// Thread Safety: Safe for concurrent use; the store serializes the
// sequence advance.
type reserveJobNumberTool struct {
	store  records.Store
	logger *slog.Logger
}

// NewReserveJobNumberTool creates the reserve_job_number tool.
//
// Inputs:
//   - store: The record-store client. Must not be nil.
//
// Outputs:
//   - Tool: The reserve_job_number tool implementation.
func NewReserveJobNumberTool(store records.Store) Tool {
	return &reserveJobNumberTool{
		store:  store,
		logger: slog.Default(),
	}
}

func (t *reserveJobNumberTool) Name() string {
	return "reserve_job_number"
}

func (t *reserveJobNumberTool) Definition() llm.ToolDef {
	return llm.ToolDef{
		Type: "function",
		Function: llm.ToolFunction{
			Name: "reserve_job_number",
			Description: "Reserve the next job number for a client and advance " +
				"the sequence. This changes data. Only call it when the user " +
				"explicitly asks for a new job number.",
			Parameters: llm.ToolParameters{
				Type: "object",
				Properties: map[string]llm.ToolParamDef{
					"clientCode": {
						Type:        "string",
						Description: "Three-letter client code (e.g. FIS, SKY, TOW).",
					},
				},
				Required: []string{"clientCode"},
			},
		},
	}
}

// Execute runs the reserve_job_number tool.
func (t *reserveJobNumberTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var p ReserveJobNumberParams
	if err := json.Unmarshal(args, &p); err != nil {
		return nil, fmt.Errorf("reserve_job_number arguments are not valid JSON")
	}
	if p.ClientCode == "" {
		return nil, fmt.Errorf("clientCode is required")
	}

	ctx, span := reserveJobNumberTracer.Start(ctx, "reserveJobNumberTool.Execute",
		trace.WithAttributes(
			attribute.String("tool", "reserve_job_number"),
			attribute.String("client_code", p.ClientCode),
		),
	)
	defer span.End()

	reservation, err := t.store.ReserveJobNumber(ctx, p.ClientCode)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, records.ErrNotFound) {
			return nil, fmt.Errorf("No client found with code %q", p.ClientCode)
		}
		t.logger.Warn("job number reservation failed",
			slog.String("client_code", p.ClientCode),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("job number reservation failed: %s", llm.SafeLogString(err.Error()))
	}

	t.logger.Info("job number reserved",
		slog.String("client_code", p.ClientCode),
		slog.String("job_number", reservation.ReservedJobNumber),
	)
	span.SetAttributes(attribute.String("job_number", reservation.ReservedJobNumber))

	return reservation, nil
}
