// Copyright (C) 2026 Hunch Creative Ltd (dev@hunchcreative.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// These are unit tests that don't require a running server.
// Run with: go test ./cmd/dotctl/...

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hunchcreative/dot/services/assistant/intent"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

const parsedIntentJSON = `{
	"coreRequest": "FIND",
	"modifiers": {"client": "SKY", "status": null, "withClient": null, "dateRange": null, "sortBy": null, "sortOrder": null, "period": null},
	"searchTerms": ["brand", "refresh"],
	"understood": true,
	"fallbackMessage": null,
	"clarifyMessage": null,
	"nextPrompt": "Want live jobs only?",
	"handoffQuestion": null,
	"logTitle": null,
	"logNotes": null,
	"responseText": null
}`

// =============================================================================
// ROSTER FLAG PARSING
// =============================================================================

func TestParseRoster(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    []rosterEntry
		wantErr bool
	}{
		{"nil input", nil, nil, false},
		{"single entry", []string{"SKY=Sky TV"}, []rosterEntry{{Code: "SKY", Name: "Sky TV"}}, false},
		{"multiple entries", []string{"SKY=Sky TV", "TOW=Tower Insurance"}, []rosterEntry{{Code: "SKY", Name: "Sky TV"}, {Code: "TOW", Name: "Tower Insurance"}}, false},
		{"lowercase code upcased", []string{"fis=Fisher Funds"}, []rosterEntry{{Code: "FIS", Name: "Fisher Funds"}}, false},
		{"padding trimmed", []string{" SKY = Sky TV "}, []rosterEntry{{Code: "SKY", Name: "Sky TV"}}, false},
		{"name keeps equals sign", []string{"ONE=One NZ = mobile"}, []rosterEntry{{Code: "ONE", Name: "One NZ = mobile"}}, false},
		{"missing separator", []string{"SKY"}, nil, true},
		{"empty name", []string{"SKY="}, nil, true},
		{"empty code", []string{"=Sky TV"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRoster(tt.pairs)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// =============================================================================
// REPLY DECODING
// =============================================================================

func TestDecodeQueryReply_ParsedIntent(t *testing.T) {
	reply, err := decodeQueryReply([]byte(parsedIntentJSON))
	require.NoError(t, err)
	require.NotNil(t, reply.Intent)
	assert.Empty(t, reply.Fallback)
	assert.Equal(t, intent.Find, reply.Intent.CoreRequest)
	assert.Equal(t, "SKY", reply.Intent.ResolvedClient())
	assert.Equal(t, []string{"brand", "refresh"}, reply.Intent.SearchTerms)
}

func TestDecodeQueryReply_SoftFailure(t *testing.T) {
	body := `{"parsed": null, "error": "engine returned an empty response"}`
	reply, err := decodeQueryReply([]byte(body))
	require.NoError(t, err)
	assert.Nil(t, reply.Intent)
	assert.Equal(t, "engine returned an empty response", reply.Fallback)
}

func TestDecodeQueryReply_InvalidJSON(t *testing.T) {
	_, err := decodeQueryReply([]byte("not json"))
	require.Error(t, err)
}

func TestServerErrorMessage(t *testing.T) {
	assert.Equal(t, "engine failed", serverErrorMessage([]byte(`{"error": "engine failed", "code": "ENGINE_FAILURE"}`)))
	assert.Equal(t, "plain text", serverErrorMessage([]byte(" plain text \n")))
}

// =============================================================================
// RENDERING
// =============================================================================

func renderToString(t *testing.T, reply *queryReply) string {
	t.Helper()
	var buf bytes.Buffer
	renderReply(&buf, reply)
	return buf.String()
}

func TestRenderReply_SoftFailure(t *testing.T) {
	out := renderToString(t, &queryReply{Fallback: "engine returned an empty response"})
	assert.Equal(t, "engine returned an empty response\n", out)
}

func TestRenderReply_NotUnderstood(t *testing.T) {
	it := &intent.Intent{
		CoreRequest:     intent.Unknown,
		Understood:      false,
		FallbackMessage: strPtr("I'm a project bot, not a weather app."),
	}
	out := renderToString(t, &queryReply{Intent: it})
	assert.Contains(t, out, "weather app")
}

func TestRenderReply_Clarify(t *testing.T) {
	it := &intent.Intent{
		CoreRequest:    intent.Clarify,
		Understood:     true,
		ClarifyMessage: strPtr("Remind me, which client?"),
	}
	out := renderToString(t, &queryReply{Intent: it})
	assert.Contains(t, out, "Remind me, which client?")
}

func TestRenderReply_Handoff(t *testing.T) {
	it := &intent.Intent{
		CoreRequest:     intent.Handoff,
		Understood:      true,
		HandoffQuestion: strPtr("Can Sky extend the Q3 deadline?"),
	}
	out := renderToString(t, &queryReply{Intent: it})
	assert.Contains(t, out, "Handing off to the team:")
	assert.Contains(t, out, "Can Sky extend the Q3 deadline?")
}

func TestRenderReply_Log(t *testing.T) {
	it := &intent.Intent{
		CoreRequest: intent.Log,
		Understood:  true,
		LogTitle:    strPtr("Sky call moved to Thursday"),
		LogNotes:    strPtr("Gemma is out Wednesday."),
	}
	out := renderToString(t, &queryReply{Intent: it})
	assert.Contains(t, out, "Noted: Sky call moved to Thursday")
	assert.Contains(t, out, "Gemma is out Wednesday.")
}

func TestRenderReply_ResponseText(t *testing.T) {
	it := &intent.Intent{
		CoreRequest:  intent.Help,
		Understood:   true,
		ResponseText: strPtr("Ask me about jobs, people, or budgets."),
	}
	out := renderToString(t, &queryReply{Intent: it})
	assert.Contains(t, out, "Ask me about jobs, people, or budgets.")
}

func TestRenderReply_DataRequestSummary(t *testing.T) {
	it := &intent.Intent{
		CoreRequest: intent.Due,
		Modifiers: intent.Modifiers{
			Client:    strPtr("SKY"),
			DateRange: strPtr("thisWeek"),
			Status:    strPtr("live"),
		},
		Understood: true,
	}
	out := renderToString(t, &queryReply{Intent: it})
	assert.Contains(t, out, "Checking due dates for SKY (due thisWeek, status live)")
}

func TestRenderReply_SearchTermsAndSort(t *testing.T) {
	it := &intent.Intent{
		CoreRequest: intent.Find,
		Modifiers: intent.Modifiers{
			SortBy:     strPtr("deadline"),
			SortOrder:  strPtr("asc"),
			WithClient: boolPtr(true),
		},
		SearchTerms: []string{"brand", "refresh"},
		Understood:  true,
	}
	out := renderToString(t, &queryReply{Intent: it})
	assert.Contains(t, out, "Searching jobs")
	assert.Contains(t, out, "sorted by deadline asc")
	assert.Contains(t, out, "with client")
	assert.Contains(t, out, `matching "brand refresh"`)
}

func TestRenderReply_NextPromptHint(t *testing.T) {
	reply, err := decodeQueryReply([]byte(parsedIntentJSON))
	require.NoError(t, err)
	out := renderToString(t, reply)
	assert.Contains(t, out, `try: "Want live jobs only?"`)
}

// =============================================================================
// HTTP CLIENT
// =============================================================================

func TestSubmitQuery_SendsScopeAndBody(t *testing.T) {
	var gotScope string
	var gotBody queryRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/assistant/query", r.URL.Path)
		gotScope = r.Header.Get("X-Dot-Client-Scope")
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(parsedIntentJSON))
	}))
	defer srv.Close()

	client := newAssistantClient(srv.URL, "TOW")
	reply, err := client.submitQuery(context.Background(), "What's due for Sky?", "sess-1", []rosterEntry{{Code: "SKY", Name: "Sky TV"}})
	require.NoError(t, err)
	require.NotNil(t, reply.Intent)

	assert.Equal(t, "TOW", gotScope)
	assert.Equal(t, "What's due for Sky?", gotBody.Question)
	assert.Equal(t, "sess-1", gotBody.SessionID)
	require.Len(t, gotBody.ClientRoster, 1)
	assert.Equal(t, "SKY", gotBody.ClientRoster[0].Code)
}

func TestSubmitQuery_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error": "engine request failed", "code": "ENGINE_FAILURE"}`))
	}))
	defer srv.Close()

	client := newAssistantClient(srv.URL, "")
	_, err := client.submitQuery(context.Background(), "hello", "sess-1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
	assert.Contains(t, err.Error(), "engine request failed")
}

func TestClearSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/assistant/session/clear", r.URL.Path)
		var req clearRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "sess-9", req.SessionID)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": true}`))
	}))
	defer srv.Close()

	client := newAssistantClient(srv.URL, "")
	require.NoError(t, client.clearSession(context.Background(), "sess-9"))
}

func TestListTools(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/assistant/tools", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tools": ["search_people", "get_client_detail"]}`))
	}))
	defer srv.Close()

	client := newAssistantClient(srv.URL, "")
	tools, err := client.listTools(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"search_people", "get_client_detail"}, tools)
}

// =============================================================================
// SERVER ADDRESS RESOLUTION
// =============================================================================

func TestGetServerBaseURL(t *testing.T) {
	origFlag := serverFlag
	t.Cleanup(func() { serverFlag = origFlag })

	serverFlag = ""
	t.Setenv("DOT_SERVER_URL", "")
	assert.Equal(t, "http://localhost:8080", getServerBaseURL())

	t.Setenv("DOT_SERVER_URL", "http://dot.internal:9000")
	assert.Equal(t, "http://dot.internal:9000", getServerBaseURL())

	serverFlag = "http://override:1234"
	assert.Equal(t, "http://override:1234", getServerBaseURL())
}

func TestNewAssistantClient_TrimsTrailingSlash(t *testing.T) {
	client := newAssistantClient("http://localhost:8080/", "")
	assert.False(t, strings.HasSuffix(client.baseURL, "/"))
}
