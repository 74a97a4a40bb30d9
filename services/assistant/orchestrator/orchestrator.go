// Copyright (C) 2026 Hunch Creative Ltd (dev@hunchcreative.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package orchestrator runs one user question through the full interpretation
// pipeline: session context, system prompt, keyword-gated tool offering, up
// to one tool round against the engine, and validation of the final intent
// JSON. The orchestrator owns the conversation protocol; the engine only sees
// messages and tool definitions.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/hunchcreative/dot/services/assistant/config"
	"github.com/hunchcreative/dot/services/assistant/engine"
	"github.com/hunchcreative/dot/services/assistant/intent"
	"github.com/hunchcreative/dot/services/assistant/session"
	"github.com/hunchcreative/dot/services/assistant/tools"
	"github.com/hunchcreative/dot/services/llm"
)

var orchestratorTracer = otel.Tracer(orchestratorTracerName)

// reserveToolName is the one tool fronted by the confirmation step.
const reserveToolName = "reserve_job_number"

// =============================================================================
// Orchestrator
// =============================================================================

// Orchestrator coordinates sessions, the engine, and the tool registry to
// turn a question into a structured intent.
//
// Thread Safety: Orchestrator is safe for concurrent use. Concurrent queries
// for the same session serialize on the session's run lock.
type Orchestrator struct {
	sessions *session.Store
	engine   engine.Engine
	registry *tools.Registry
	prompts  *PromptBuilder
	logger   *slog.Logger
	now      func() time.Time
}

// NewOrchestrator creates a new Orchestrator.
//
// Inputs:
//   - sessions: Session store. Must not be nil.
//   - eng: Generation engine. Must not be nil.
//   - registry: Tool registry whose definitions are offered to the engine.
//   - logger: Structured logger. Falls back to slog.Default() if nil.
//
// Outputs:
//   - *Orchestrator: Configured orchestrator.
//   - error: Non-nil if prompt template parsing fails.
func NewOrchestrator(sessions *session.Store, eng engine.Engine, registry *tools.Registry, logger *slog.Logger) (*Orchestrator, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session store is nil")
	}
	if eng == nil {
		return nil, fmt.Errorf("engine is nil")
	}
	if registry == nil {
		return nil, fmt.Errorf("tool registry is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	prompts, err := NewPromptBuilder()
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		sessions: sessions,
		engine:   eng,
		registry: registry,
		prompts:  prompts,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// QueryRequest is one question to interpret.
type QueryRequest struct {
	// Question is the user's raw text.
	Question string

	// SessionID groups questions into a conversation. The caller owns the
	// identifier; unknown IDs start a fresh session.
	SessionID string

	// Roster is the client list visible to this caller, rendered into the
	// prompt for code resolution.
	Roster []ClientRosterEntry

	// ClientScope, when set, locks the session to one client code. Tool
	// arguments are rewritten to that code regardless of what the engine
	// asked for.
	ClientScope string
}

// QueryResult is the outcome of one interpreted question.
//
// Exactly one of Intent and Diagnostic is meaningful: a parse failure
// leaves Intent nil and explains itself in Diagnostic. Raw always carries
// the engine's final text.
type QueryResult struct {
	Intent     *intent.Intent
	Diagnostic string
	Raw        string
}

// SubmitQuery interprets one question within its session.
//
// Description:
//
//	Builds the system prompt from session context, offers the keyword-gated
//	tool subset, and runs at most two engine rounds: the first may request
//	tools, the second (tool-less) must produce the final intent JSON.
//	Engine transport failures return an error. A response that does not
//	parse is NOT an error: the question alone is recorded in history and
//	the result carries a diagnostic, so one bad generation never poisons
//	the conversation.
//
// Outputs:
//   - *QueryResult: Parsed intent or soft-fail diagnostic.
//   - error: Non-nil only for invalid input or engine failure.
func (o *Orchestrator) SubmitQuery(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	if req.Question == "" {
		return nil, fmt.Errorf("question is empty")
	}
	if req.SessionID == "" {
		return nil, fmt.Errorf("session ID is empty")
	}

	start := time.Now()
	ctx, span := orchestratorTracer.Start(ctx, "orchestrator.SubmitQuery")
	defer span.End()
	span.SetAttributes(
		attribute.String("session_id", req.SessionID),
		attribute.Bool("scoped", req.ClientScope != ""),
	)

	sess := o.sessions.GetOrCreate(req.SessionID)
	sess.Acquire()
	defer sess.Release()

	system, err := o.prompts.BuildSystemInstructions(o.now(), req.Roster, buildContextHint(sess), req.ClientScope)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "prompt build failed")
		return nil, err
	}

	messages := historyMessages(sess)
	messages = append(messages, llm.ChatMessage{Role: "user", Content: req.Question})

	defs := o.gatedDefinitions(ctx, req.Question)
	span.SetAttributes(attribute.Int("tools_offered", len(defs)))

	resp, err := o.engine.Generate(ctx, engine.Request{
		SystemInstructions: system,
		Messages:           messages,
		Tools:              defs,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "engine round failed")
		recordQueryMetrics(outcomeEngineError, time.Since(start))
		return nil, fmt.Errorf("generating intent: %w", err)
	}

	finalText := resp.Text
	if resp.StopReason == engine.StopToolUse && len(resp.ToolCalls) > 0 {
		toolRoundsTotal.Inc()
		span.SetAttributes(attribute.Int("tool_calls", len(resp.ToolCalls)))

		results := o.dispatchTools(ctx, sess, req, resp.ToolCalls)

		followup := append(messages,
			llm.ChatMessage{Role: "assistant", Content: resp.Text, ToolCalls: resp.ToolCalls},
			llm.ChatMessage{Role: "user", Content: toolResultInstruction, ToolResults: results},
		)

		// No tools on the second round. The engine has its data; the only
		// acceptable next output is the intent JSON.
		resp, err = o.engine.Generate(ctx, engine.Request{
			SystemInstructions: system,
			Messages:           followup,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "engine tool round failed")
			recordQueryMetrics(outcomeEngineError, time.Since(start))
			return nil, fmt.Errorf("generating intent after tools: %w", err)
		}
		finalText = resp.Text
	}

	vr := validateResponse(finalText)
	if vr.Parsed == nil {
		o.logger.Warn("engine response did not parse",
			"session_id", req.SessionID,
			"diagnostic", vr.Diagnostic,
			"response", llm.SafeLogString(vr.Raw))
		span.SetAttributes(attribute.String("outcome", outcomeSoftFail))

		// Record the question so the conversation survives, but no
		// assistant turn: there is no intent to summarize.
		o.sessions.Append(req.SessionID, session.Message{Role: "user", Content: req.Question})
		recordQueryMetrics(outcomeSoftFail, time.Since(start))
		return &QueryResult{Diagnostic: vr.Diagnostic, Raw: vr.Raw}, nil
	}

	o.recordTurn(req, vr.Parsed)
	span.SetAttributes(
		attribute.String("outcome", outcomeParsed),
		attribute.String("core_request", string(vr.Parsed.CoreRequest)),
	)
	recordQueryMetrics(outcomeParsed, time.Since(start))
	return &QueryResult{Intent: vr.Parsed, Raw: vr.Raw}, nil
}

// ClearSession drops one session's history and context.
func (o *Orchestrator) ClearSession(id string) {
	o.sessions.Clear(id)
}

// ToolNames lists the registered tools, for the introspection endpoint.
func (o *Orchestrator) ToolNames() []string {
	return o.registry.Names()
}

// gatedDefinitions returns the tool definitions to offer for a question.
// A nil result withholds tools entirely, forcing a plain text turn.
func (o *Orchestrator) gatedDefinitions(ctx context.Context, question string) []llm.ToolDef {
	cfg, err := config.GetGateConfig(ctx)
	if err != nil {
		// Gate config should always load (the default is embedded). If it
		// somehow cannot, offering everything degrades cost, not
		// correctness.
		o.logger.Warn("gate config unavailable, offering all tools", "error", err)
		return o.registry.Definitions()
	}

	enabled := cfg.EnabledTools(question)
	if len(enabled) == 0 {
		return nil
	}
	return o.registry.Definitions(enabled...)
}

// dispatchTools executes the engine's tool calls sequentially and returns
// one result per call, in call order.
//
// Description:
//
//	Two interventions happen here rather than in the registry. Scoped
//	sessions get clientCode rewritten on every call. And reserve_job_number
//	is fronted by a confirmation step: the first request for a client
//	returns a confirmation_required payload and arms the session; only a
//	repeat request for the same client executes the reservation.
func (o *Orchestrator) dispatchTools(ctx context.Context, sess *session.Session, req QueryRequest, calls []llm.ToolCallResponse) []llm.ToolResult {
	results := make([]llm.ToolResult, 0, len(calls))
	for _, call := range calls {
		args := call.Arguments
		if req.ClientScope != "" {
			args = forceClientScope(args, req.ClientScope)
		}

		var payload string
		if call.Name == reserveToolName {
			payload = o.executeReserve(ctx, sess, req.SessionID, args)
		} else {
			payload = o.registry.Execute(ctx, call.Name, args)
		}

		results = append(results, llm.ToolResult{ToolUseID: call.ID, Name: call.Name, Content: payload})
	}
	return results
}

// executeReserve runs the confirmation step in front of job number
// reservation.
//
// Reservation consumes a number even if the caller walks away, so the
// first ask never executes: it arms the session for the requested client
// and tells the engine a confirmation is needed. A second ask for the
// same client goes through and disarms. Asking for a different client
// re-arms for that client instead.
func (o *Orchestrator) executeReserve(ctx context.Context, sess *session.Session, sessionID string, args json.RawMessage) string {
	code := clientCodeFromArgs(args)
	if code == "" {
		// Let the tool reject the missing clientCode itself.
		return o.registry.Execute(ctx, reserveToolName, args)
	}

	if armed := sess.ContextValue(session.KeyPendingReserve); armed != code {
		o.sessions.MergeContext(sessionID, map[string]string{session.KeyPendingReserve: code})
		o.logger.Info("job number reservation pending confirmation",
			"session_id", sessionID, "client_code", code)
		payload, err := json.Marshal(map[string]string{
			"status":  "confirmation_required",
			"message": fmt.Sprintf("Reserving a job number for %s is permanent and uses up the next number. Ask the user to confirm, then call this tool again.", code),
		})
		if err != nil {
			return `{"error": "internal error"}`
		}
		return string(payload)
	}

	o.sessions.MergeContext(sessionID, map[string]string{session.KeyPendingReserve: ""})
	return o.registry.Execute(ctx, reserveToolName, args)
}

// recordTurn appends the question and the intent summary to history and
// merges the resolved client into session context.
func (o *Orchestrator) recordTurn(req QueryRequest, it *intent.Intent) {
	o.sessions.Append(req.SessionID,
		session.Message{Role: "user", Content: req.Question},
		session.Message{Role: "assistant", Content: summarizeIntent(it)},
	)
	if client := it.ResolvedClient(); client != "" {
		o.sessions.MergeContext(req.SessionID, map[string]string{session.KeyLastClient: client})
	}
}

// historyMessages converts session history into engine chat messages.
func historyMessages(sess *session.Session) []llm.ChatMessage {
	history := sess.History()
	messages := make([]llm.ChatMessage, 0, len(history)+1)
	for _, msg := range history {
		messages = append(messages, llm.ChatMessage{Role: msg.Role, Content: msg.Content})
	}
	return messages
}

// clientCodeFromArgs extracts clientCode from raw tool arguments, or ""
// when absent or unparseable.
func clientCodeFromArgs(args json.RawMessage) string {
	var fields struct {
		ClientCode string `json:"clientCode"`
	}
	if len(args) == 0 {
		return ""
	}
	if err := json.Unmarshal(args, &fields); err != nil {
		return ""
	}
	return fields.ClientCode
}
