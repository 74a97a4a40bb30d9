// Copyright (C) 2026 Hunch Creative Ltd (dev@hunchcreative.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package tools implements the assistant's record-store tools and the
// registry that dispatches engine tool calls to them. Tool failures are
// data, not control flow: every execution yields a JSON payload, and
// anything that goes wrong inside a tool becomes {"error": "..."} in that
// payload. The dispatch loop never sees a tool raise.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hunchcreative/dot/services/llm"
	"github.com/hunchcreative/dot/services/records"
)

// Tool is one executable record-store operation.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Tool interface {
	// Name returns the tool name the engine calls it by.
	Name() string

	// Definition returns the schema offered to the engine.
	Definition() llm.ToolDef

	// Execute runs the tool with raw JSON arguments.
	//
	// Outputs:
	//   - any: JSON-marshalable success payload.
	//   - error: A message fit to show the engine. The registry renders it
	//     as {"error": message}; implementations must not leak secrets or
	//     internals in it.
	Execute(ctx context.Context, args json.RawMessage) (any, error)
}

// Registry holds the tool set and dispatches calls by name.
//
// Thread Safety: Registry is immutable after construction and safe for
// concurrent use.
type Registry struct {
	tools  map[string]Tool
	order  []string
	logger *slog.Logger
}

// NewRegistry creates a Registry over the given tools.
//
// Inputs:
//   - logger: Destination for execution failures. Nil uses slog.Default().
//   - toolSet: Tools to register, in discovery order.
//
// Outputs:
//   - *Registry: The configured registry.
func NewRegistry(logger *slog.Logger, toolSet ...Tool) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		tools:  make(map[string]Tool, len(toolSet)),
		logger: logger,
	}
	for _, t := range toolSet {
		if _, dup := r.tools[t.Name()]; dup {
			continue
		}
		r.tools[t.Name()] = t
		r.order = append(r.order, t.Name())
	}
	return r
}

// NewRecordsRegistry wires the full record-store tool set over one Store.
//
// Inputs:
//   - store: The record-store client. Must not be nil.
//   - logger: Destination for execution failures. Nil uses slog.Default().
//
// Outputs:
//   - *Registry: Registry with search_people, get_client_detail,
//     get_spend_summary, and reserve_job_number.
func NewRecordsRegistry(store records.Store, logger *slog.Logger) *Registry {
	if store == nil {
		panic("tools: NewRecordsRegistry requires a non-nil store")
	}
	return NewRegistry(logger,
		NewSearchPeopleTool(store),
		NewGetClientDetailTool(store),
		NewGetSpendSummaryTool(store),
		NewReserveJobNumberTool(store),
	)
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Definitions returns schemas for the named tools, skipping unknown names.
//
// Description:
//
//	An empty names list returns every registered tool, in registration
//	order. The gating predicate feeds its enabled subset here; a rule
//	naming a tool that was never registered simply contributes nothing.
func (r *Registry) Definitions(names ...string) []llm.ToolDef {
	if len(names) == 0 {
		names = r.order
	}

	defs := make([]llm.ToolDef, 0, len(names))
	for _, name := range names {
		if tool, ok := r.tools[name]; ok {
			defs = append(defs, tool.Definition())
		}
	}
	return defs
}

// Execute dispatches one tool call and returns the JSON result payload.
//
// Description:
//
//	Always returns a payload. An unregistered name yields
//	{"error": "Unknown tool: <name>"}; a tool error yields
//	{"error": <message>}; a panic inside a tool is recovered and reported
//	the same way. The caller can hand the payload straight back to the
//	engine as a tool_result block.
//
// Inputs:
//   - ctx: Context for cancellation.
//   - name: The tool name from the engine's tool call.
//   - args: Raw JSON arguments. Empty is treated as {}.
//
// Outputs:
//   - string: JSON payload, success or {"error": ...}.
//
// Thread Safety: Safe for concurrent use.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (payload string) {
	start := time.Now()
	status := "success"

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool panicked",
				slog.String("tool", name),
				slog.Any("panic", rec),
			)
			status = "panic"
			payload = errorPayload(fmt.Sprintf("Tool %s failed unexpectedly", name))
		}
		recordToolMetrics(name, status, time.Since(start))
	}()

	tool, ok := r.tools[name]
	if !ok {
		r.logger.Warn("unknown tool requested", slog.String("tool", name))
		status = "unknown"
		return errorPayload("Unknown tool: " + name)
	}

	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	result, err := tool.Execute(ctx, args)
	if err != nil {
		r.logger.Warn("tool execution failed",
			slog.String("tool", name),
			slog.String("error", err.Error()),
		)
		status = "error"
		return errorPayload(err.Error())
	}

	raw, err := json.Marshal(result)
	if err != nil {
		r.logger.Error("tool result not encodable",
			slog.String("tool", name),
			slog.String("error", err.Error()),
		)
		status = "error"
		return errorPayload(fmt.Sprintf("Tool %s produced an unencodable result", name))
	}

	return string(raw)
}

// errorPayload renders a message as the standard tool error payload.
func errorPayload(msg string) string {
	raw, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return `{"error":"internal error"}`
	}
	return string(raw)
}
