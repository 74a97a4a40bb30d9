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
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hunchcreative/dot/services/llm"
	"github.com/hunchcreative/dot/services/records"
)

// =============================================================================
// search_people Tool
// =============================================================================

var searchPeopleTracer = otel.Tracer("dot.tools.search_people")

// SearchPeopleParams contains the parsed input parameters.
type SearchPeopleParams struct {
	// ClientCode optionally restricts the search to one client.
	ClientCode string `json:"clientCode"`

	// SearchTerm optionally filters by name fragment.
	SearchTerm string `json:"searchTerm"`
}

// searchPeopleTool wraps records.Store.SearchPeople.
//
// Description:
//
//	Looks up people in the contact book, optionally narrowed to a client
//	and a name fragment. Both inputs are optional; calling with neither
//	returns the whole book, counted.
//
// Thread Safety: Safe for concurrent use. Read-only against the store.
type searchPeopleTool struct {
	store  records.Store
	logger *slog.Logger
}

// NewSearchPeopleTool creates the search_people tool.
//
// Inputs:
//   - store: The record-store client. Must not be nil.
//
// Outputs:
//   - Tool: The search_people tool implementation.
func NewSearchPeopleTool(store records.Store) Tool {
	return &searchPeopleTool{
		store:  store,
		logger: slog.Default(),
	}
}

func (t *searchPeopleTool) Name() string {
	return "search_people"
}

func (t *searchPeopleTool) Definition() llm.ToolDef {
	return llm.ToolDef{
		Type: "function",
		Function: llm.ToolFunction{
			Name: "search_people",
			Description: "Search the studio's contact book. " +
				"Use for questions about people: emails, phone numbers, birthdays, " +
				"'who is X', or 'how many people do we know at Y'. " +
				"Both inputs are optional; omit both to count everyone.",
			Parameters: llm.ToolParameters{
				Type: "object",
				Properties: map[string]llm.ToolParamDef{
					"clientCode": {
						Type:        "string",
						Description: "Three-letter client code to restrict the search to (e.g. FIS, SKY).",
					},
					"searchTerm": {
						Type:        "string",
						Description: "Name fragment to match against contact names.",
					},
				},
			},
		},
	}
}

// Execute runs the search_people tool.
func (t *searchPeopleTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var p SearchPeopleParams
	if err := json.Unmarshal(args, &p); err != nil {
		return nil, fmt.Errorf("search_people arguments are not valid JSON")
	}

	ctx, span := searchPeopleTracer.Start(ctx, "searchPeopleTool.Execute",
		trace.WithAttributes(
			attribute.String("tool", "search_people"),
			attribute.String("client_code", p.ClientCode),
			attribute.Bool("has_search_term", p.SearchTerm != ""),
		),
	)
	defer span.End()

	result, err := t.store.SearchPeople(ctx, records.PeopleQuery{
		ClientCode: p.ClientCode,
		SearchTerm: p.SearchTerm,
	})
	if err != nil {
		span.RecordError(err)
		t.logger.Warn("people search failed",
			slog.String("client_code", p.ClientCode),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("people search failed: %s", llm.SafeLogString(err.Error()))
	}

	span.SetAttributes(attribute.Int("count", result.Count))
	return result, nil
}
