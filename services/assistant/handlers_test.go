// Copyright (C) 2026 Hunch Creative Ltd (dev@hunchcreative.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/hunchcreative/dot/services/assistant/engine"
	"github.com/hunchcreative/dot/services/assistant/intent"
	"github.com/hunchcreative/dot/services/records"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockEngine implements engine.Engine for testing.
type MockEngine struct {
	generateFunc func(ctx context.Context, req engine.Request) (*engine.Response, error)
	requests     []engine.Request
}

func (m *MockEngine) Generate(ctx context.Context, req engine.Request) (*engine.Response, error) {
	m.requests = append(m.requests, req)
	if m.generateFunc != nil {
		return m.generateFunc(ctx, req)
	}
	return &engine.Response{StopReason: engine.StopEnd, Text: intentFixture}, nil
}

// stubRecords implements records.Store with static data.
type stubRecords struct{}

func (stubRecords) SearchPeople(context.Context, records.PeopleQuery) (*records.PeopleResult, error) {
	return &records.PeopleResult{Count: 0, People: []records.Person{}}, nil
}

func (stubRecords) ClientDetail(_ context.Context, clientCode string) (*records.ClientDetail, error) {
	return &records.ClientDetail{ClientCode: clientCode}, nil
}

func (stubRecords) SpendSummary(_ context.Context, clientCode, period string) (*records.SpendSummary, error) {
	return &records.SpendSummary{ClientCode: clientCode, Period: period}, nil
}

func (stubRecords) ReserveJobNumber(_ context.Context, clientCode string) (*records.JobReservation, error) {
	return &records.JobReservation{ClientCode: clientCode, ReservedJobNumber: clientCode + "-0001"}, nil
}

const intentFixture = `{
  "coreRequest": "FIND",
  "modifiers": {"client": "SKY", "status": null, "withClient": null, "dateRange": null, "sortBy": null, "sortOrder": null, "period": null},
  "searchTerms": [],
  "understood": true,
  "fallbackMessage": null,
  "clarifyMessage": null,
  "nextPrompt": null,
  "handoffQuestion": null,
  "logTitle": null,
  "logNotes": null,
  "responseText": null
}`

func newTestHandlers(t *testing.T, eng *MockEngine) *Handlers {
	t.Helper()
	cfg := DefaultServiceConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	svc, err := NewService(cfg, eng, stubRecords{})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return NewHandlers(svc)
}

func setupTestRouter(handlers *Handlers) *gin.Engine {
	r := gin.New()
	v1 := r.Group("/v1")
	RegisterRoutes(v1, handlers)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleQuery_Success(t *testing.T) {
	eng := &MockEngine{}
	r := setupTestRouter(newTestHandlers(t, eng))

	body := `{"question": "Show me Sky jobs", "sessionId": "web-1", "clientRoster": [{"code": "SKY", "name": "Sky TV"}]}`
	w := postJSON(t, r, "/v1/assistant/query", body, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d, body %s", w.Code, http.StatusOK, w.Body.String())
	}

	var it intent.Intent
	if err := json.Unmarshal(w.Body.Bytes(), &it); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if it.CoreRequest != "FIND" {
		t.Errorf("CoreRequest = %s, want FIND", it.CoreRequest)
	}
	if it.ResolvedClient() != "SKY" {
		t.Errorf("client = %q, want SKY", it.ResolvedClient())
	}
}

func TestHandleQuery_MissingQuestion(t *testing.T) {
	r := setupTestRouter(newTestHandlers(t, &MockEngine{}))

	w := postJSON(t, r, "/v1/assistant/query", `{"sessionId": "web-1"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal error: %v", err)
	}
	if resp.Code != "INVALID_REQUEST" {
		t.Errorf("Code = %s, want INVALID_REQUEST", resp.Code)
	}
}

func TestHandleQuery_InvalidRosterCode(t *testing.T) {
	r := setupTestRouter(newTestHandlers(t, &MockEngine{}))

	body := `{"question": "hi", "sessionId": "web-1", "clientRoster": [{"code": "sky1", "name": "Sky TV"}]}`
	w := postJSON(t, r, "/v1/assistant/query", body, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("lowercase roster code must fail binding, got %d", w.Code)
	}
}

func TestHandleQuery_InvalidScopeHeader(t *testing.T) {
	r := setupTestRouter(newTestHandlers(t, &MockEngine{}))

	body := `{"question": "hi", "sessionId": "web-1"}`
	w := postJSON(t, r, "/v1/assistant/query", body, map[string]string{ScopeHeader: "not a code"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal error: %v", err)
	}
	if resp.Code != "INVALID_SCOPE" {
		t.Errorf("Code = %s, want INVALID_SCOPE", resp.Code)
	}
}

func TestHandleQuery_ScopeReachesPrompt(t *testing.T) {
	eng := &MockEngine{}
	r := setupTestRouter(newTestHandlers(t, eng))

	body := `{"question": "What's on this week?", "sessionId": "web-scope"}`
	w := postJSON(t, r, "/v1/assistant/query", body, map[string]string{ScopeHeader: "TOW"})
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	if len(eng.requests) != 1 {
		t.Fatalf("expected 1 engine request, got %d", len(eng.requests))
	}
	if !strings.Contains(eng.requests[0].SystemInstructions, "locked to client TOW") {
		t.Error("expected scope to reach the system instructions")
	}
}

func TestHandleQuery_SoftFailStaysOK(t *testing.T) {
	eng := &MockEngine{
		generateFunc: func(_ context.Context, _ engine.Request) (*engine.Response, error) {
			return &engine.Response{StopReason: engine.StopEnd, Text: "Sorry, here you go!"}, nil
		},
	}
	r := setupTestRouter(newTestHandlers(t, eng))

	body := `{"question": "Show me Sky jobs", "sessionId": "web-soft"}`
	w := postJSON(t, r, "/v1/assistant/query", body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("parse failures must stay 200, got %d", w.Code)
	}

	var resp QueryFailureResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if resp.Parsed != nil {
		t.Error("expected null parsed field")
	}
	if resp.Error == "" {
		t.Error("expected diagnostic in error field")
	}
}

func TestHandleQuery_EngineFailure(t *testing.T) {
	eng := &MockEngine{
		generateFunc: func(_ context.Context, _ engine.Request) (*engine.Response, error) {
			return nil, errors.New("anthropic: API returned status 503")
		},
	}
	r := setupTestRouter(newTestHandlers(t, eng))

	body := `{"question": "Show me Sky jobs", "sessionId": "web-down"}`
	w := postJSON(t, r, "/v1/assistant/query", body, nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusBadGateway)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal error: %v", err)
	}
	if resp.Code != "ENGINE_FAILURE" {
		t.Errorf("Code = %s, want ENGINE_FAILURE", resp.Code)
	}
}

func TestHandleClearSession(t *testing.T) {
	r := setupTestRouter(newTestHandlers(t, &MockEngine{}))

	w := postJSON(t, r, "/v1/assistant/session/clear", `{"sessionId": "web-1"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp ClearSessionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if !resp.Success {
		t.Error("expected success true")
	}

	// Clearing again is idempotent.
	w = postJSON(t, r, "/v1/assistant/session/clear", `{"sessionId": "web-1"}`, nil)
	if w.Code != http.StatusOK {
		t.Errorf("repeat clear should succeed, got %d", w.Code)
	}
}

func TestHandleClearSession_MissingID(t *testing.T) {
	r := setupTestRouter(newTestHandlers(t, &MockEngine{}))

	w := postJSON(t, r, "/v1/assistant/session/clear", `{}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHandleListTools(t *testing.T) {
	r := setupTestRouter(newTestHandlers(t, &MockEngine{}))

	req := httptest.NewRequest("GET", "/v1/assistant/tools", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp ToolsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if len(resp.Tools) != 4 {
		t.Fatalf("expected 4 tools, got %v", resp.Tools)
	}
	if resp.Tools[0] != "search_people" {
		t.Errorf("expected search_people first, got %q", resp.Tools[0])
	}
}

func TestHandleHealthAndReady(t *testing.T) {
	r := setupTestRouter(newTestHandlers(t, &MockEngine{}))

	for _, path := range []string{"/v1/assistant/health", "/v1/assistant/ready"} {
		req := httptest.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want %d", path, w.Code, http.StatusOK)
		}
	}
}
