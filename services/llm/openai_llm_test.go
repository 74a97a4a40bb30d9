// Copyright (C) 2026 Hunch Creative Ltd (dev@hunchcreative.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func openaiTextResponse(text string) string {
	resp := openaiResponse{
		ID:     "chatcmpl-123",
		Object: "chat.completion",
		Choices: []openaiChoice{
			{Message: openaiMessage{Role: "assistant", Content: text}, FinishReason: "stop"},
		},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func TestOpenAIClient_ChatWithTools_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer test-key")
		}

		var req openaiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.Model != "gpt-test" {
			t.Errorf("model = %q, want %q", req.Model, "gpt-test")
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(openaiTextResponse("Hello from the engine!")))
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig("test-key", "gpt-test", server.URL)

	messages := []ChatMessage{
		{Role: "system", Content: "You are a test assistant."},
		{Role: "user", Content: "Hello"},
	}

	result, err := client.ChatWithTools(context.Background(), messages, GenerationParams{}, nil)
	if err != nil {
		t.Fatalf("ChatWithTools failed: %v", err)
	}
	if result.Content != "Hello from the engine!" {
		t.Errorf("content = %q, want %q", result.Content, "Hello from the engine!")
	}
	if result.StopReason != "end" {
		t.Errorf("stop reason = %q, want %q", result.StopReason, "end")
	}
}

func TestOpenAIClient_ChatWithTools_ToolCallResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openaiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if len(req.Tools) != 1 || req.Tools[0].Function.Name != "search_people" {
			t.Errorf("tools = %+v, want one search_people function", req.Tools)
		}

		resp := `{
			"id": "chatcmpl-123",
			"object": "chat.completion",
			"choices": [{
				"index": 0,
				"message": {
					"role": "assistant",
					"tool_calls": [{
						"id": "call_abc",
						"type": "function",
						"function": {"name": "search_people", "arguments": "{\"searchTerm\": \"Sarah\"}"}
					}]
				},
				"finish_reason": "tool_calls"
			}]
		}`
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(resp))
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig("test-key", "gpt-test", server.URL)

	tools := []ToolDef{
		{
			Type: "function",
			Function: ToolFunction{
				Name:        "search_people",
				Description: "Search for people",
				Parameters: ToolParameters{
					Type: "object",
					Properties: map[string]ToolParamDef{
						"searchTerm": {Type: "string"},
					},
				},
			},
		},
	}
	messages := []ChatMessage{{Role: "user", Content: "Who is Sarah?"}}

	result, err := client.ChatWithTools(context.Background(), messages, GenerationParams{}, tools)
	if err != nil {
		t.Fatalf("ChatWithTools failed: %v", err)
	}
	if result.StopReason != "tool_use" {
		t.Errorf("stop reason = %q, want %q", result.StopReason, "tool_use")
	}
	if len(result.ToolCalls) != 1 {
		t.Fatalf("len(ToolCalls) = %d, want 1", len(result.ToolCalls))
	}
	if result.ToolCalls[0].ID != "call_abc" {
		t.Errorf("ToolCalls[0].ID = %q, want %q", result.ToolCalls[0].ID, "call_abc")
	}
	if result.ToolCalls[0].Name != "search_people" {
		t.Errorf("ToolCalls[0].Name = %q, want %q", result.ToolCalls[0].Name, "search_people")
	}
	if got := result.ToolCalls[0].ArgumentsString(); got != `{"searchTerm": "Sarah"}` {
		t.Errorf("arguments = %q, want raw argument JSON", got)
	}
}

func TestOpenAIClient_ChatWithTools_ToolResultsFanOut(t *testing.T) {
	var captured openaiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(openaiTextResponse(`{"coreRequest": "FIND"}`)))
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig("test-key", "gpt-test", server.URL)

	messages := []ChatMessage{
		{Role: "user", Content: "What is FIS working on?"},
		{
			Role:    "assistant",
			Content: "Checking the client record.",
			ToolCalls: []ToolCallResponse{
				{ID: "call_1", Name: "get_client_detail", Arguments: json.RawMessage(`{"clientCode":"FIS"}`)},
				{ID: "call_2", Name: "search_people"},
			},
		},
		{
			Role:    "user",
			Content: "Use the tool results above to answer in the required JSON format.",
			ToolResults: []ToolResult{
				{ToolUseID: "call_1", Name: "get_client_detail", Content: `{"clientName":"Fishtank"}`},
				{ToolUseID: "call_2", Name: "search_people", Content: `{"error":"no results"}`},
			},
		},
	}

	if _, err := client.ChatWithTools(context.Background(), messages, GenerationParams{}, nil); err != nil {
		t.Fatalf("ChatWithTools failed: %v", err)
	}

	// user, assistant with tool_calls, two tool messages, trailing user instruction.
	if len(captured.Messages) != 5 {
		t.Fatalf("len(messages) = %d, want 5", len(captured.Messages))
	}

	assistant := captured.Messages[1]
	if len(assistant.ToolCalls) != 2 {
		t.Fatalf("assistant tool_calls = %d, want 2", len(assistant.ToolCalls))
	}
	if assistant.ToolCalls[0].Function.Arguments != `{"clientCode":"FIS"}` {
		t.Errorf("tool call 0 arguments = %q, want raw JSON string", assistant.ToolCalls[0].Function.Arguments)
	}
	// Absent arguments still have to serialize as a valid JSON object.
	if assistant.ToolCalls[1].Function.Arguments != "{}" {
		t.Errorf("tool call 1 arguments = %q, want empty object", assistant.ToolCalls[1].Function.Arguments)
	}

	if captured.Messages[2].Role != "tool" || captured.Messages[2].ToolCallID != "call_1" {
		t.Errorf("message 2 = %+v, want tool message for call_1", captured.Messages[2])
	}
	if captured.Messages[2].Content != `{"clientName":"Fishtank"}` {
		t.Errorf("message 2 content = %q, want tool payload", captured.Messages[2].Content)
	}
	if captured.Messages[3].Role != "tool" || captured.Messages[3].ToolCallID != "call_2" {
		t.Errorf("message 3 = %+v, want tool message for call_2", captured.Messages[3])
	}
	if captured.Messages[4].Role != "user" || !strings.Contains(captured.Messages[4].Content, "required JSON format") {
		t.Errorf("message 4 = %+v, want trailing user instruction", captured.Messages[4])
	}
}

func TestOpenAIClient_ChatWithTools_GenerationParams(t *testing.T) {
	var captured openaiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(openaiTextResponse("ok")))
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig("test-key", "gpt-test", server.URL)

	temp := float32(0.0)
	topP := float32(0.9)
	maxTokens := 512
	params := GenerationParams{Temperature: &temp, TopP: &topP, MaxTokens: &maxTokens}

	if _, err := client.ChatWithTools(context.Background(), []ChatMessage{{Role: "user", Content: "Hi"}}, params, nil); err != nil {
		t.Fatalf("ChatWithTools failed: %v", err)
	}

	if captured.Temperature == nil || *captured.Temperature != 0.0 {
		t.Errorf("temperature = %v, want 0.0", captured.Temperature)
	}
	if captured.TopP == nil || *captured.TopP != 0.9 {
		t.Errorf("top_p = %v, want 0.9", captured.TopP)
	}
	if captured.MaxCompletionTokens == nil || *captured.MaxCompletionTokens != 512 {
		t.Errorf("max_completion_tokens = %v, want 512", captured.MaxCompletionTokens)
	}
}

func TestOpenAIClient_ChatWithTools_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"type": "rate_limit_error", "message": "slow down"}}`))
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig("test-key", "gpt-test", server.URL)

	_, err := client.ChatWithTools(context.Background(), []ChatMessage{{Role: "user", Content: "Hi"}}, GenerationParams{}, nil)
	if err == nil {
		t.Fatal("expected error for non-200 status")
	}
	if !strings.Contains(err.Error(), "status 429") {
		t.Errorf("error should include status code, got: %s", err.Error())
	}
}

func TestOpenAIClient_ChatWithTools_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "chatcmpl-123", "object": "chat.completion", "choices": []}`))
	}))
	defer server.Close()

	client := NewOpenAIClientWithConfig("test-key", "gpt-test", server.URL)

	_, err := client.ChatWithTools(context.Background(), []ChatMessage{{Role: "user", Content: "Hi"}}, GenerationParams{}, nil)
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
	if !strings.Contains(err.Error(), "no choices") {
		t.Errorf("error = %q, want no-choices message", err.Error())
	}
}

func TestNewOpenAIClient_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewOpenAIClient()
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
	if !strings.Contains(err.Error(), "openai:") {
		t.Errorf("error should carry the openai: prefix, got: %s", err.Error())
	}
}

func TestNewOpenAIClient_DefaultModel(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("OPENAI_MODEL", "")

	client, err := NewOpenAIClient()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.model != "gpt-4o-mini" {
		t.Errorf("model = %q, want %q", client.model, "gpt-4o-mini")
	}
}

func TestNewOpenAIClient_CustomModel(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("OPENAI_MODEL", "gpt-4o")

	client, err := NewOpenAIClient()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.Model() != "gpt-4o" {
		t.Errorf("Model() = %q, want %q", client.Model(), "gpt-4o")
	}
}
