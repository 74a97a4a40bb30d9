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
// get_client_detail Tool
// =============================================================================

var getClientDetailTracer = otel.Tracer("dot.tools.get_client_detail")

// GetClientDetailParams contains the parsed input parameters.
type GetClientDetailParams struct {
	// ClientCode identifies the client. Required.
	ClientCode string `json:"clientCode"`
}

// getClientDetailTool wraps records.Store.ClientDetail.
//
// Description:
//
//	Fetches one client's commercial record: quarter budgets with labels,
//	rollover configuration, and the next job number in sequence.
//
// Thread Safety: Safe for concurrent use. Read-only against the store.
type getClientDetailTool struct {
	store  records.Store
	logger *slog.Logger
}

// NewGetClientDetailTool creates the get_client_detail tool.
//
// Inputs:
//   - store: The record-store client. Must not be nil.
//
// Outputs:
//   - Tool: The get_client_detail tool implementation.
func NewGetClientDetailTool(store records.Store) Tool {
	return &getClientDetailTool{
		store:  store,
		logger: slog.Default(),
	}
}

func (t *getClientDetailTool) Name() string {
	return "get_client_detail"
}

func (t *getClientDetailTool) Definition() llm.ToolDef {
	return llm.ToolDef{
		Type: "function",
		Function: llm.ToolFunction{
			Name: "get_client_detail",
			Description: "Fetch one client's commercial record: current and last " +
				"quarter budgets with labels, rollover settings, and the next job " +
				"number. Use when a question needs budget figures or the job " +
				"number sequence for a specific client.",
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

// Execute runs the get_client_detail tool.
func (t *getClientDetailTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var p GetClientDetailParams
	if err := json.Unmarshal(args, &p); err != nil {
		return nil, fmt.Errorf("get_client_detail arguments are not valid JSON")
	}
	if p.ClientCode == "" {
		return nil, fmt.Errorf("clientCode is required")
	}

	ctx, span := getClientDetailTracer.Start(ctx, "getClientDetailTool.Execute",
		trace.WithAttributes(
			attribute.String("tool", "get_client_detail"),
			attribute.String("client_code", p.ClientCode),
		),
	)
	defer span.End()

	detail, err := t.store.ClientDetail(ctx, p.ClientCode)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, records.ErrNotFound) {
			return nil, fmt.Errorf("No client found with code %q", p.ClientCode)
		}
		t.logger.Warn("client detail fetch failed",
			slog.String("client_code", p.ClientCode),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("client detail fetch failed: %s", llm.SafeLogString(err.Error()))
	}

	return detail, nil
}
