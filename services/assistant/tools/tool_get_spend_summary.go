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
// get_spend_summary Tool
// =============================================================================

var getSpendSummaryTracer = otel.Tracer("dot.tools.get_spend_summary")

// defaultSpendPeriod is used when the engine omits the period input.
const defaultSpendPeriod = "thisQuarter"

// GetSpendSummaryParams contains the parsed input parameters.
type GetSpendSummaryParams struct {
	// ClientCode identifies the client. Required.
	ClientCode string `json:"clientCode"`

	// Period selects the reporting window. Defaults to thisQuarter.
	Period string `json:"period"`
}

// getSpendSummaryTool wraps records.Store.SpendSummary.
//
// Description:
//
//	Rolls up spend against budget for one client and period: budget,
//	spent, remaining, percent used, and rollover flags.
//
// Thread Safety: Safe for concurrent use. Read-only against the store.
type getSpendSummaryTool struct {
	store  records.Store
	logger *slog.Logger
}

// NewGetSpendSummaryTool creates the get_spend_summary tool.
//
// Inputs:
//   - store: The record-store client. Must not be nil.
//
// Outputs:
//   - Tool: The get_spend_summary tool implementation.
func NewGetSpendSummaryTool(store records.Store) Tool {
	return &getSpendSummaryTool{
		store:  store,
		logger: slog.Default(),
	}
}

func (t *getSpendSummaryTool) Name() string {
	return "get_spend_summary"
}

func (t *getSpendSummaryTool) Definition() llm.ToolDef {
	return llm.ToolDef{
		Type: "function",
		Function: llm.ToolFunction{
			Name: "get_spend_summary",
			Description: "Summarize a client's spend against budget for a " +
				"period: budget, spent, remaining, percent used, rollover flags. " +
				"Use for 'how much have we spent', 'what's left in the budget', " +
				"and tracker questions.",
			Parameters: llm.ToolParameters{
				Type: "object",
				Properties: map[string]llm.ToolParamDef{
					"clientCode": {
						Type:        "string",
						Description: "Three-letter client code (e.g. FIS, SKY, TOW).",
					},
					"period": {
						Type:        "string",
						Description: "Reporting window.",
						Enum:        []any{"thisQuarter", "lastQuarter"},
					},
				},
				Required: []string{"clientCode"},
			},
		},
	}
}

// Execute runs the get_spend_summary tool.
func (t *getSpendSummaryTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var p GetSpendSummaryParams
	if err := json.Unmarshal(args, &p); err != nil {
		return nil, fmt.Errorf("get_spend_summary arguments are not valid JSON")
	}
	if p.ClientCode == "" {
		return nil, fmt.Errorf("clientCode is required")
	}
	if p.Period == "" {
		p.Period = defaultSpendPeriod
	}

	ctx, span := getSpendSummaryTracer.Start(ctx, "getSpendSummaryTool.Execute",
		trace.WithAttributes(
			attribute.String("tool", "get_spend_summary"),
			attribute.String("client_code", p.ClientCode),
			attribute.String("period", p.Period),
		),
	)
	defer span.End()

	summary, err := t.store.SpendSummary(ctx, p.ClientCode, p.Period)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, records.ErrNotFound) {
			return nil, fmt.Errorf("No client found with code %q", p.ClientCode)
		}
		t.logger.Warn("spend summary fetch failed",
			slog.String("client_code", p.ClientCode),
			slog.String("period", p.Period),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("spend summary fetch failed: %s", llm.SafeLogString(err.Error()))
	}

	return summary, nil
}
