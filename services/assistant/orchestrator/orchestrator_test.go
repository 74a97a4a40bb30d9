// Copyright (C) 2026 Hunch Creative Ltd (dev@hunchcreative.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hunchcreative/dot/services/assistant/config"
	"github.com/hunchcreative/dot/services/assistant/engine"
	"github.com/hunchcreative/dot/services/assistant/session"
	"github.com/hunchcreative/dot/services/assistant/tools"
	"github.com/hunchcreative/dot/services/llm"
	"github.com/hunchcreative/dot/services/records"
)

// =============================================================================
// Fakes
// =============================================================================

// fakeEngine replays scripted responses and captures every request.
type fakeEngine struct {
	requests  []engine.Request
	responses []engine.Response
	err       error
}

func (f *fakeEngine) Generate(_ context.Context, req engine.Request) (*engine.Response, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return nil, errors.New("fake engine: no scripted response left")
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return &resp, nil
}

// fakeRecords implements records.Store with optional overrides and call
// capture for the calls the tests care about.
type fakeRecords struct {
	peopleQueries []records.PeopleQuery
	spendCodes    []string
	reserveCodes  []string
}

func (f *fakeRecords) SearchPeople(_ context.Context, q records.PeopleQuery) (*records.PeopleResult, error) {
	f.peopleQueries = append(f.peopleQueries, q)
	return &records.PeopleResult{
		Count: 1,
		People: []records.Person{
			{Name: "Sarah Chen", Email: "sarah@fisherfunds.co.nz", ClientCode: "FIS"},
		},
	}, nil
}

func (f *fakeRecords) ClientDetail(_ context.Context, clientCode string) (*records.ClientDetail, error) {
	return &records.ClientDetail{ClientCode: clientCode, ClientName: "Somebody"}, nil
}

func (f *fakeRecords) SpendSummary(_ context.Context, clientCode, period string) (*records.SpendSummary, error) {
	f.spendCodes = append(f.spendCodes, clientCode)
	return &records.SpendSummary{ClientCode: clientCode, Period: period, Budget: 100000, Spent: 40000, Remaining: 60000}, nil
}

func (f *fakeRecords) ReserveJobNumber(_ context.Context, clientCode string) (*records.JobReservation, error) {
	f.reserveCodes = append(f.reserveCodes, clientCode)
	return &records.JobReservation{ClientCode: clientCode, ReservedJobNumber: clientCode + "-0097", NextJobNumber: clientCode + "-0098"}, nil
}

// =============================================================================
// Helpers
// =============================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("tracer shutdown: %v", err)
		}
	})
	return exporter
}

type fixture struct {
	orch    *Orchestrator
	eng     *fakeEngine
	store   *session.Store
	records *fakeRecords
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	config.ResetGateConfig()
	t.Cleanup(config.ResetGateConfig)

	recs := &fakeRecords{}
	eng := &fakeEngine{}
	store := session.NewStore(0, testLogger())
	registry := tools.NewRecordsRegistry(recs, testLogger())

	orch, err := NewOrchestrator(store, eng, registry, testLogger())
	if err != nil {
		t.Fatalf("NewOrchestrator failed: %v", err)
	}
	return &fixture{orch: orch, eng: eng, store: store, records: recs}
}

func testRoster() []ClientRosterEntry {
	return []ClientRosterEntry{
		{Code: "SKY", Name: "Sky TV"},
		{Code: "TOW", Name: "Tower Insurance"},
		{Code: "FIS", Name: "Fisher Funds"},
	}
}

func textResponse(body string) engine.Response {
	return engine.Response{StopReason: engine.StopEnd, Text: body}
}

func toolResponse(id, name, args string) engine.Response {
	return engine.Response{
		StopReason: engine.StopToolUse,
		Text:       "Let me check.",
		ToolCalls: []llm.ToolCallResponse{
			{ID: id, Name: name, Arguments: json.RawMessage(args)},
		},
	}
}

// Scripted engine outputs. Shape matches the response format the prompt
// pins: every key present, nulls for the inapplicable ones.
const findSkyJSON = `{
  "coreRequest": "FIND",
  "modifiers": {"client": "SKY", "status": null, "withClient": null, "dateRange": null, "sortBy": null, "sortOrder": null, "period": null},
  "searchTerms": [],
  "understood": true,
  "fallbackMessage": null,
  "clarifyMessage": null,
  "nextPrompt": "What's due for Sky?",
  "handoffQuestion": null,
  "logTitle": null,
  "logNotes": null,
  "responseText": null
}`

const queryFisherJSON = `{
  "coreRequest": "QUERY",
  "modifiers": {"client": "FIS", "status": null, "withClient": null, "dateRange": null, "sortBy": null, "sortOrder": null, "period": null},
  "searchTerms": ["Sarah"],
  "understood": true,
  "fallbackMessage": null,
  "clarifyMessage": null,
  "nextPrompt": "Need her phone number?",
  "handoffQuestion": null,
  "logTitle": null,
  "logNotes": null,
  "responseText": "Sarah Chen is sarah@fisherfunds.co.nz."
}`

// =============================================================================
// SubmitQuery
// =============================================================================

func TestSubmitQuery_TextTurn(t *testing.T) {
	f := newFixture(t)
	f.eng.responses = []engine.Response{textResponse(findSkyJSON)}

	result, err := f.orch.SubmitQuery(context.Background(), QueryRequest{
		Question:  "Show me Sky jobs",
		SessionID: "sess-text",
		Roster:    testRoster(),
	})
	if err != nil {
		t.Fatalf("SubmitQuery failed: %v", err)
	}
	if result.Intent == nil {
		t.Fatalf("expected parsed intent, got diagnostic %q", result.Diagnostic)
	}
	if result.Intent.CoreRequest != "FIND" {
		t.Errorf("expected FIND, got %s", result.Intent.CoreRequest)
	}
	if got := result.Intent.ResolvedClient(); got != "SKY" {
		t.Errorf("expected resolved client SKY, got %q", got)
	}

	history := f.store.GetOrCreate("sess-text").History()
	if len(history) != 2 {
		t.Fatalf("expected 2 history messages, got %d", len(history))
	}
	if history[0].Role != "user" || history[0].Content != "Show me Sky jobs" {
		t.Errorf("unexpected user turn: %+v", history[0])
	}
	if history[1].Role != "assistant" || history[1].Content != "FIND for SKY" {
		t.Errorf("unexpected assistant turn: %+v", history[1])
	}

	if got := f.store.GetOrCreate("sess-text").ContextValue(session.KeyLastClient); got != "SKY" {
		t.Errorf("expected lastClient SKY, got %q", got)
	}
}

func TestSubmitQuery_FreshSessionHint(t *testing.T) {
	f := newFixture(t)
	f.eng.responses = []engine.Response{textResponse(findSkyJSON)}

	if _, err := f.orch.SubmitQuery(context.Background(), QueryRequest{
		Question:  "Show me Sky jobs",
		SessionID: "sess-fresh",
		Roster:    testRoster(),
	}); err != nil {
		t.Fatalf("SubmitQuery failed: %v", err)
	}

	if len(f.eng.requests) != 1 {
		t.Fatalf("expected 1 engine request, got %d", len(f.eng.requests))
	}
	system := f.eng.requests[0].SystemInstructions
	if !strings.Contains(system, "Fresh conversation - no prior context.") {
		t.Error("expected fresh conversation hint in system instructions")
	}
	if !strings.Contains(system, "SKY = Sky TV") {
		t.Error("expected roster entry in system instructions")
	}
}

func TestSubmitQuery_ContextCarryOver(t *testing.T) {
	f := newFixture(t)
	f.eng.responses = []engine.Response{
		textResponse(findSkyJSON),
		textResponse(findSkyJSON),
	}

	ctx := context.Background()
	req := QueryRequest{Question: "Show me Sky jobs", SessionID: "sess-carry", Roster: testRoster()}
	if _, err := f.orch.SubmitQuery(ctx, req); err != nil {
		t.Fatalf("first query failed: %v", err)
	}

	req.Question = "What about them being overdue?"
	if _, err := f.orch.SubmitQuery(ctx, req); err != nil {
		t.Fatalf("second query failed: %v", err)
	}

	if len(f.eng.requests) != 2 {
		t.Fatalf("expected 2 engine requests, got %d", len(f.eng.requests))
	}
	system := f.eng.requests[1].SystemInstructions
	if !strings.Contains(system, "Last client discussed: SKY.") {
		t.Errorf("expected carry-over hint, instructions were:\n%s", system)
	}

	// The prior turns ride along as chat history.
	msgs := f.eng.requests[1].Messages
	if len(msgs) != 3 {
		t.Fatalf("expected history + question = 3 messages, got %d", len(msgs))
	}
	if msgs[1].Role != "assistant" || msgs[1].Content != "FIND for SKY" {
		t.Errorf("unexpected history turn: %+v", msgs[1])
	}
}

func TestSubmitQuery_ToolRound(t *testing.T) {
	f := newFixture(t)
	f.eng.responses = []engine.Response{
		toolResponse("toolu_01", "search_people", `{"clientCode":"FIS","searchTerm":"Sarah"}`),
		textResponse(queryFisherJSON),
	}

	result, err := f.orch.SubmitQuery(context.Background(), QueryRequest{
		Question:  "What's Sarah's email at Fisher?",
		SessionID: "sess-tools",
		Roster:    testRoster(),
	})
	if err != nil {
		t.Fatalf("SubmitQuery failed: %v", err)
	}
	if result.Intent == nil {
		t.Fatalf("expected parsed intent, got diagnostic %q", result.Diagnostic)
	}
	if result.Intent.ResponseText == nil || !strings.Contains(*result.Intent.ResponseText, "sarah@fisherfunds.co.nz") {
		t.Error("expected responseText carrying the looked-up email")
	}

	if len(f.records.peopleQueries) != 1 {
		t.Fatalf("expected 1 people search, got %d", len(f.records.peopleQueries))
	}
	if q := f.records.peopleQueries[0]; q.ClientCode != "FIS" || q.SearchTerm != "Sarah" {
		t.Errorf("unexpected people query: %+v", q)
	}

	if len(f.eng.requests) != 2 {
		t.Fatalf("expected 2 engine rounds, got %d", len(f.eng.requests))
	}

	second := f.eng.requests[1]
	if second.Tools != nil {
		t.Error("second round must not offer tools")
	}
	if len(second.Messages) != 3 {
		t.Fatalf("expected question + assistant + results = 3 messages, got %d", len(second.Messages))
	}
	assistant := second.Messages[1]
	if assistant.Role != "assistant" || len(assistant.ToolCalls) != 1 {
		t.Errorf("expected assistant turn with tool call, got %+v", assistant)
	}
	feedback := second.Messages[2]
	if feedback.Role != "user" || len(feedback.ToolResults) != 1 {
		t.Fatalf("expected user turn with tool result, got %+v", feedback)
	}
	if feedback.ToolResults[0].ToolUseID != "toolu_01" {
		t.Errorf("tool result id mismatch: %q", feedback.ToolResults[0].ToolUseID)
	}
	if !strings.Contains(feedback.ToolResults[0].Content, "Sarah Chen") {
		t.Errorf("tool result missing payload: %q", feedback.ToolResults[0].Content)
	}
	if feedback.Content != toolResultInstruction {
		t.Errorf("expected trailing format instruction, got %q", feedback.Content)
	}
}

func TestSubmitQuery_ScopeRewrite(t *testing.T) {
	f := newFixture(t)
	f.eng.responses = []engine.Response{
		toolResponse("toolu_02", "get_spend_summary", `{"clientCode":"SKY","period":"thisQuarter"}`),
		textResponse(queryFisherJSON),
	}

	if _, err := f.orch.SubmitQuery(context.Background(), QueryRequest{
		Question:    "How's the Sky budget tracking?",
		SessionID:   "sess-scope",
		Roster:      testRoster(),
		ClientScope: "TOW",
	}); err != nil {
		t.Fatalf("SubmitQuery failed: %v", err)
	}

	if len(f.records.spendCodes) != 1 {
		t.Fatalf("expected 1 spend lookup, got %d", len(f.records.spendCodes))
	}
	if f.records.spendCodes[0] != "TOW" {
		t.Errorf("scope rewrite failed: spend lookup used %q, want TOW", f.records.spendCodes[0])
	}
}

func TestSubmitQuery_ScopedPromptMentionsClient(t *testing.T) {
	f := newFixture(t)
	f.eng.responses = []engine.Response{textResponse(findSkyJSON)}

	if _, err := f.orch.SubmitQuery(context.Background(), QueryRequest{
		Question:    "What's on this week?",
		SessionID:   "sess-scoped-prompt",
		Roster:      testRoster(),
		ClientScope: "TOW",
	}); err != nil {
		t.Fatalf("SubmitQuery failed: %v", err)
	}

	system := f.eng.requests[0].SystemInstructions
	if !strings.Contains(system, "locked to client TOW") {
		t.Error("expected scoped permission block in system instructions")
	}
}

func TestSubmitQuery_FencedResponse(t *testing.T) {
	f := newFixture(t)
	f.eng.responses = []engine.Response{textResponse("```json\n" + findSkyJSON + "\n```")}

	result, err := f.orch.SubmitQuery(context.Background(), QueryRequest{
		Question:  "Show me Sky jobs",
		SessionID: "sess-fence",
		Roster:    testRoster(),
	})
	if err != nil {
		t.Fatalf("SubmitQuery failed: %v", err)
	}
	if result.Intent == nil {
		t.Fatalf("fenced response should parse, got diagnostic %q", result.Diagnostic)
	}
	if result.Intent.CoreRequest != "FIND" {
		t.Errorf("expected FIND, got %s", result.Intent.CoreRequest)
	}
}

func TestSubmitQuery_UnparseableResponse(t *testing.T) {
	f := newFixture(t)
	f.eng.responses = []engine.Response{textResponse("Sure! Happy to help with that.")}

	result, err := f.orch.SubmitQuery(context.Background(), QueryRequest{
		Question:  "Show me Sky jobs",
		SessionID: "sess-soft",
		Roster:    testRoster(),
	})
	if err != nil {
		t.Fatalf("soft failure must not be an error: %v", err)
	}
	if result.Intent != nil {
		t.Fatal("expected nil intent on parse failure")
	}
	if result.Diagnostic == "" {
		t.Error("expected a diagnostic")
	}
	if result.Raw != "Sure! Happy to help with that." {
		t.Errorf("expected raw engine text, got %q", result.Raw)
	}

	// The question is kept so the conversation survives, but no assistant
	// turn is invented.
	history := f.store.GetOrCreate("sess-soft").History()
	if len(history) != 1 {
		t.Fatalf("expected 1 history message, got %d", len(history))
	}
	if history[0].Role != "user" {
		t.Errorf("expected user turn, got %+v", history[0])
	}
}

func TestSubmitQuery_EngineError(t *testing.T) {
	f := newFixture(t)
	f.eng.err = errors.New("anthropic: API returned status 500")

	_, err := f.orch.SubmitQuery(context.Background(), QueryRequest{
		Question:  "Show me Sky jobs",
		SessionID: "sess-err",
		Roster:    testRoster(),
	})
	if err == nil {
		t.Fatal("expected error from engine failure")
	}
	if !strings.Contains(err.Error(), "generating intent") {
		t.Errorf("unexpected error text: %v", err)
	}

	if history := f.store.GetOrCreate("sess-err").History(); len(history) != 0 {
		t.Errorf("engine errors must not record history, got %d messages", len(history))
	}
}

func TestSubmitQuery_InputValidation(t *testing.T) {
	f := newFixture(t)

	if _, err := f.orch.SubmitQuery(context.Background(), QueryRequest{SessionID: "s"}); err == nil {
		t.Error("expected error for empty question")
	}
	if _, err := f.orch.SubmitQuery(context.Background(), QueryRequest{Question: "hi"}); err == nil {
		t.Error("expected error for empty session id")
	}
}

// =============================================================================
// Reservation confirmation
// =============================================================================

func TestSubmitQuery_ReserveConfirmation(t *testing.T) {
	f := newFixture(t)
	f.eng.responses = []engine.Response{
		toolResponse("toolu_03", "reserve_job_number", `{"clientCode":"TOW"}`),
		textResponse(queryFisherJSON),
		toolResponse("toolu_04", "reserve_job_number", `{"clientCode":"TOW"}`),
		textResponse(queryFisherJSON),
	}

	ctx := context.Background()
	req := QueryRequest{Question: "Reserve a job number for Tower", SessionID: "sess-reserve", Roster: testRoster()}

	// First ask: the reservation must not execute.
	if _, err := f.orch.SubmitQuery(ctx, req); err != nil {
		t.Fatalf("first query failed: %v", err)
	}
	if len(f.records.reserveCodes) != 0 {
		t.Fatalf("first ask must not reserve, got %d reservations", len(f.records.reserveCodes))
	}
	firstResult := f.eng.requests[1].Messages[2].ToolResults[0].Content
	if !strings.Contains(firstResult, "confirmation_required") {
		t.Errorf("expected confirmation payload, got %q", firstResult)
	}
	if got := f.store.GetOrCreate("sess-reserve").ContextValue(session.KeyPendingReserve); got != "TOW" {
		t.Errorf("expected session armed for TOW, got %q", got)
	}

	// Second ask for the same client: executes and disarms.
	req.Question = "Yes, go ahead"
	if _, err := f.orch.SubmitQuery(ctx, req); err != nil {
		t.Fatalf("second query failed: %v", err)
	}
	if len(f.records.reserveCodes) != 1 || f.records.reserveCodes[0] != "TOW" {
		t.Fatalf("expected one TOW reservation, got %v", f.records.reserveCodes)
	}
	secondResult := f.eng.requests[3].Messages[len(f.eng.requests[3].Messages)-1].ToolResults[0].Content
	if !strings.Contains(secondResult, "TOW-0097") {
		t.Errorf("expected reserved number in payload, got %q", secondResult)
	}
	if got := f.store.GetOrCreate("sess-reserve").ContextValue(session.KeyPendingReserve); got != "" {
		t.Errorf("expected disarmed session, got %q", got)
	}
}

func TestSubmitQuery_ReserveDifferentClientRearms(t *testing.T) {
	f := newFixture(t)
	f.eng.responses = []engine.Response{
		toolResponse("toolu_05", "reserve_job_number", `{"clientCode":"TOW"}`),
		textResponse(queryFisherJSON),
		toolResponse("toolu_06", "reserve_job_number", `{"clientCode":"FIS"}`),
		textResponse(queryFisherJSON),
	}

	ctx := context.Background()
	req := QueryRequest{Question: "Reserve a job number for Tower", SessionID: "sess-rearm", Roster: testRoster()}
	if _, err := f.orch.SubmitQuery(ctx, req); err != nil {
		t.Fatalf("first query failed: %v", err)
	}

	req.Question = "Actually make it Fisher"
	if _, err := f.orch.SubmitQuery(ctx, req); err != nil {
		t.Fatalf("second query failed: %v", err)
	}

	if len(f.records.reserveCodes) != 0 {
		t.Fatalf("switching clients must re-arm, not reserve: %v", f.records.reserveCodes)
	}
	if got := f.store.GetOrCreate("sess-rearm").ContextValue(session.KeyPendingReserve); got != "FIS" {
		t.Errorf("expected re-armed for FIS, got %q", got)
	}
}

// =============================================================================
// Tool gating
// =============================================================================

func TestSubmitQuery_GateWithholdsTools(t *testing.T) {
	f := newFixture(t)
	f.eng.responses = []engine.Response{textResponse(findSkyJSON)}

	if _, err := f.orch.SubmitQuery(context.Background(), QueryRequest{
		Question:  "Show me Sky jobs due this week",
		SessionID: "sess-gate-none",
		Roster:    testRoster(),
	}); err != nil {
		t.Fatalf("SubmitQuery failed: %v", err)
	}

	if offered := f.eng.requests[0].Tools; offered != nil {
		t.Errorf("expected no tools for a plain find, got %d", len(offered))
	}
}

func TestSubmitQuery_GateOffersMatchingTools(t *testing.T) {
	f := newFixture(t)
	f.eng.responses = []engine.Response{textResponse(queryFisherJSON)}

	if _, err := f.orch.SubmitQuery(context.Background(), QueryRequest{
		Question:  "What's Sarah's email at Fisher?",
		SessionID: "sess-gate-match",
		Roster:    testRoster(),
	}); err != nil {
		t.Fatalf("SubmitQuery failed: %v", err)
	}

	offered := f.eng.requests[0].Tools
	if len(offered) != 1 {
		t.Fatalf("expected 1 gated tool, got %d", len(offered))
	}
	if offered[0].Function.Name != "search_people" {
		t.Errorf("expected search_people, got %q", offered[0].Function.Name)
	}
}

// =============================================================================
// Tracing
// =============================================================================

func TestSubmitQuery_SpanCreated(t *testing.T) {
	exporter := setupTestTracer(t)
	f := newFixture(t)
	f.eng.responses = []engine.Response{textResponse(findSkyJSON)}

	if _, err := f.orch.SubmitQuery(context.Background(), QueryRequest{
		Question:  "Show me Sky jobs",
		SessionID: "sess-span",
		Roster:    testRoster(),
	}); err != nil {
		t.Fatalf("SubmitQuery failed: %v", err)
	}

	spans := exporter.GetSpans()
	var found bool
	for _, span := range spans {
		if span.Name != "orchestrator.SubmitQuery" {
			continue
		}
		found = true
		var outcome string
		for _, attr := range span.Attributes {
			if string(attr.Key) == "outcome" {
				outcome = attr.Value.AsString()
			}
		}
		if outcome != "parsed" {
			t.Errorf("expected outcome attribute parsed, got %q", outcome)
		}
	}
	if !found {
		t.Error("expected orchestrator.SubmitQuery span")
	}
}

// =============================================================================
// ClearSession
// =============================================================================

func TestClearSession(t *testing.T) {
	f := newFixture(t)
	f.eng.responses = []engine.Response{textResponse(findSkyJSON)}

	if _, err := f.orch.SubmitQuery(context.Background(), QueryRequest{
		Question:  "Show me Sky jobs",
		SessionID: "sess-clear",
		Roster:    testRoster(),
	}); err != nil {
		t.Fatalf("SubmitQuery failed: %v", err)
	}

	f.orch.ClearSession("sess-clear")
	if history := f.store.GetOrCreate("sess-clear").History(); len(history) != 0 {
		t.Errorf("expected empty history after clear, got %d messages", len(history))
	}
}

// =============================================================================
// Validator
// =============================================================================

func TestStripFences(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"whitespace", "  \n{\"a\":1}\n  ", `{"a":1}`},
		{"fence with trailing space", "```json\n{\"a\":1}\n``` ", `{"a":1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := stripFences(tc.in); got != tc.want {
				t.Errorf("stripFences(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestValidateResponse_Normalizes(t *testing.T) {
	vr := validateResponse(`{"coreRequest":"SING","understood":true}`)
	if vr.Parsed == nil {
		t.Fatalf("expected parse success, diagnostic %q", vr.Diagnostic)
	}
	if vr.Parsed.CoreRequest != "UNKNOWN" {
		t.Errorf("invalid coreRequest should normalize to UNKNOWN, got %s", vr.Parsed.CoreRequest)
	}
	if vr.Parsed.Understood {
		t.Error("normalized unknown must not claim understood")
	}
	if vr.Parsed.FallbackMessage == nil {
		t.Error("expected stock fallback message")
	}
	if vr.Parsed.SearchTerms == nil {
		t.Error("searchTerms must normalize to empty slice")
	}
}

func TestValidateResponse_Empty(t *testing.T) {
	vr := validateResponse("   ")
	if vr.Parsed != nil {
		t.Fatal("expected nil parse for empty response")
	}
	if vr.Diagnostic == "" {
		t.Error("expected diagnostic for empty response")
	}
}

func TestSummarizeIntent(t *testing.T) {
	vr := validateResponse(findSkyJSON)
	if vr.Parsed == nil {
		t.Fatal("fixture must parse")
	}
	if got := summarizeIntent(vr.Parsed); got != "FIND for SKY" {
		t.Errorf("expected FIND for SKY, got %q", got)
	}

	vr.Parsed.Modifiers.Client = nil
	if got := summarizeIntent(vr.Parsed); got != "FIND" {
		t.Errorf("expected FIND, got %q", got)
	}
}

// =============================================================================
// Scope guard
// =============================================================================

func TestForceClientScope(t *testing.T) {
	cases := []struct {
		name  string
		args  string
		bound string
		want  string
	}{
		{"overrides", `{"clientCode":"SKY","period":"thisQuarter"}`, "TOW", "TOW"},
		{"adds when missing", `{"searchTerm":"Sarah"}`, "TOW", "TOW"},
		{"empty args", ``, "TOW", "TOW"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := forceClientScope(json.RawMessage(tc.args), tc.bound)
			if got := clientCodeFromArgs(out); got != tc.want {
				t.Errorf("clientCode = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestForceClientScope_Passthrough(t *testing.T) {
	args := json.RawMessage(`{"clientCode":"SKY"}`)
	if out := forceClientScope(args, ""); string(out) != string(args) {
		t.Error("unscoped sessions must not rewrite arguments")
	}

	bad := json.RawMessage(`{not json`)
	if out := forceClientScope(bad, "TOW"); string(out) != string(bad) {
		t.Error("unparseable arguments must pass through untouched")
	}
}

// =============================================================================
// Context hint
// =============================================================================

func TestBuildContextHint(t *testing.T) {
	store := session.NewStore(time.Minute, testLogger())

	sess := store.GetOrCreate("hint-empty")
	if got := buildContextHint(sess); got != "" {
		t.Errorf("fresh session hint should be empty, got %q", got)
	}

	store.MergeContext("hint-client", map[string]string{session.KeyLastClient: "SKY"})
	sess = store.GetOrCreate("hint-client")
	if got := buildContextHint(sess); got != "Last client discussed: SKY." {
		t.Errorf("unexpected hint: %q", got)
	}

	store.MergeContext("hint-both", map[string]string{
		session.KeyLastClient: "TOW",
		session.KeyLastJob:    "TOW-0042",
	})
	sess = store.GetOrCreate("hint-both")
	hint := buildContextHint(sess)
	if !strings.Contains(hint, "Last client discussed: TOW.") || !strings.Contains(hint, "Last job discussed: TOW-0042.") {
		t.Errorf("unexpected hint: %q", hint)
	}
}
