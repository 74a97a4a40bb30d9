// Copyright (C) 2026 Hunch Creative Ltd (dev@hunchcreative.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// =============================================================================
// Gemini Wire Types
// =============================================================================

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
	Tools             []geminiToolDeclaration `json:"tools,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text             string              `json:"text,omitempty"`
	FunctionCall     *geminiFunctionCall `json:"functionCall,omitempty"`
	FunctionResponse *geminiFunctionResp `json:"functionResponse,omitempty"`
}

type geminiFunctionCall struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

type geminiFunctionResp struct {
	Name     string                 `json:"name"`
	Response map[string]interface{} `json:"response"`
}

type geminiFunctionDeclaration struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  interface{} `json:"parameters"`
}

type geminiToolDeclaration struct {
	FunctionDeclarations []geminiFunctionDeclaration `json:"functionDeclarations"`
}

type geminiGenerationConfig struct {
	Temperature     *float32 `json:"temperature,omitempty"`
	TopP            *float32 `json:"topP,omitempty"`
	TopK            *int     `json:"topK,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
	Error      *geminiError      `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// =============================================================================
// Client
// =============================================================================

// GeminiClient talks to the Gemini generateContent API (DOT_ENGINE=gemini).
//
// Thread Safety: GeminiClient is safe for concurrent use.
type GeminiClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

// NewGeminiClientWithConfig creates a GeminiClient with explicit
// configuration. Useful for testing with mock servers.
func NewGeminiClientWithConfig(apiKey, model, baseURL string) *GeminiClient {
	return &GeminiClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
	}
}

// NewGeminiClient creates a GeminiClient from the environment.
//
// Reads GEMINI_API_KEY and GEMINI_MODEL. A missing key is an error; a
// missing model gets a default.
func NewGeminiClient() (*GeminiClient, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: API key is missing (GEMINI_API_KEY)")
	}

	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		model = "gemini-1.5-flash"
		slog.Info("GEMINI_MODEL not set, defaulting to", "model", model)
	}

	return &GeminiClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultGeminiBaseURL,
	}, nil
}

// Model returns the configured model name.
func (g *GeminiClient) Model() string {
	return g.model
}

// ChatWithTools sends one conversation round and returns text and/or tool
// calls.
//
// Description:
//
//	Converts neutral ChatMessage values to Gemini wire format. A "system"
//	message becomes the systemInstruction block, assistant turns map to
//	role "model" (with functionCall parts when they carried ToolCalls), and
//	a user turn carrying ToolResults becomes one user content whose parts
//	are functionResponse entries followed by a text part when Content is
//	set. Gemini does not assign tool call ids, so responses carry synthetic
//	"gemini-call-N" ids and results are matched by function name instead.
//
// Inputs:
//   - ctx: Context for cancellation and timeout.
//   - messages: Conversation history with tool metadata.
//   - params: Generation parameters.
//   - tools: Tool definitions, or nil.
//
// Outputs:
//   - *ChatWithToolsResult: Content and/or tool calls with a stop reason.
//   - error: Non-nil on transport or API failure.
//
// Thread Safety: This method is safe for concurrent use.
func (g *GeminiClient) ChatWithTools(ctx context.Context, messages []ChatMessage,
	params GenerationParams, tools []ToolDef) (*ChatWithToolsResult, error) {

	slog.Debug("ChatWithTools via Gemini",
		slog.String("model", g.model),
		slog.Int("messages", len(messages)),
		slog.Int("tools", len(tools)),
	)

	req := geminiRequest{}

	if genConfig := buildGeminiGenConfig(params); genConfig != nil {
		req.GenerationConfig = genConfig
	}

	if len(tools) > 0 {
		var funcDecls []geminiFunctionDeclaration
		for _, td := range tools {
			funcDecls = append(funcDecls, geminiFunctionDeclaration{
				Name:        td.Function.Name,
				Description: td.Function.Description,
				Parameters:  td.Function.Parameters,
			})
		}
		req.Tools = []geminiToolDeclaration{{FunctionDeclarations: funcDecls}}
	}

	for _, msg := range messages {
		switch {
		case msg.Role == "system":
			req.SystemInstruction = &geminiContent{
				Parts: []geminiPart{{Text: msg.Content}},
			}

		case len(msg.ToolResults) > 0:
			// Tool results → one user content with functionResponse parts,
			// plus a trailing text part carrying the format instruction.
			var parts []geminiPart
			for _, tr := range msg.ToolResults {
				var respData map[string]interface{}
				if err := json.Unmarshal([]byte(tr.Content), &respData); err != nil {
					respData = map[string]interface{}{"result": tr.Content}
				}
				parts = append(parts, geminiPart{
					FunctionResponse: &geminiFunctionResp{
						Name:     tr.Name,
						Response: respData,
					},
				})
			}
			if msg.Content != "" {
				parts = append(parts, geminiPart{Text: msg.Content})
			}
			req.Contents = append(req.Contents, geminiContent{
				Role:  "user",
				Parts: parts,
			})

		case msg.Role == "assistant" && len(msg.ToolCalls) > 0:
			var parts []geminiPart
			if msg.Content != "" {
				parts = append(parts, geminiPart{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				var args map[string]interface{}
				if err := json.Unmarshal(tc.Arguments, &args); err != nil {
					args = map[string]interface{}{}
				}
				parts = append(parts, geminiPart{
					FunctionCall: &geminiFunctionCall{
						Name: tc.Name,
						Args: args,
					},
				})
			}
			req.Contents = append(req.Contents, geminiContent{
				Role:  "model",
				Parts: parts,
			})

		case msg.Role == "assistant":
			req.Contents = append(req.Contents, geminiContent{
				Role:  "model",
				Parts: []geminiPart{{Text: msg.Content}},
			})

		default:
			req.Contents = append(req.Contents, geminiContent{
				Role:  "user",
				Parts: []geminiPart{{Text: msg.Content}},
			})
		}
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("gemini: marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("gemini: creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini: HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gemini: reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini: API returned status %d: %s", resp.StatusCode, SafeLogString(string(bodyBytes)))
	}

	var apiResp geminiResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, fmt.Errorf("gemini: parsing response JSON: %w", err)
	}

	if apiResp.Error != nil {
		return nil, fmt.Errorf("gemini: API error [%d] %s: %s",
			apiResp.Error.Code, apiResp.Error.Status, SafeLogString(apiResp.Error.Message))
	}

	if len(apiResp.Candidates) == 0 {
		return nil, fmt.Errorf("gemini: returned no candidates")
	}

	result := &ChatWithToolsResult{}
	var textParts []string
	callIndex := 0

	for _, part := range apiResp.Candidates[0].Content.Parts {
		if part.Text != "" {
			textParts = append(textParts, part.Text)
		}
		if part.FunctionCall != nil {
			argsJSON, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				argsJSON = []byte(`{}`)
			}
			result.ToolCalls = append(result.ToolCalls, ToolCallResponse{
				ID:        fmt.Sprintf("gemini-call-%d", callIndex),
				Name:      part.FunctionCall.Name,
				Arguments: json.RawMessage(argsJSON),
			})
			callIndex++
		}
	}

	result.Content = strings.Join(textParts, "")

	if len(result.ToolCalls) > 0 {
		result.StopReason = "tool_use"
	} else {
		result.StopReason = "end"
	}

	return result, nil
}

// buildGeminiGenConfig creates a generation config from params, or nil when
// every field keeps the provider default.
func buildGeminiGenConfig(params GenerationParams) *geminiGenerationConfig {
	genConfig := &geminiGenerationConfig{}
	hasConfig := false

	if params.Temperature != nil {
		genConfig.Temperature = params.Temperature
		hasConfig = true
	}
	if params.TopP != nil {
		genConfig.TopP = params.TopP
		hasConfig = true
	}
	if params.TopK != nil {
		genConfig.TopK = params.TopK
		hasConfig = true
	}
	if params.MaxTokens != nil {
		genConfig.MaxOutputTokens = params.MaxTokens
		hasConfig = true
	}
	if len(params.Stop) > 0 {
		genConfig.StopSequences = params.Stop
		hasConfig = true
	}

	if hasConfig {
		return genConfig
	}
	return nil
}
