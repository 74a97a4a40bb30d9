// Copyright (C) 2026 Hunch Creative Ltd (dev@hunchcreative.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hunchcreative/dot/services/assistant/intent"
)

// queryRequest is the payload for POST /v1/assistant/query.
type queryRequest struct {
	Question     string        `json:"question"`
	SessionID    string        `json:"sessionId"`
	ClientRoster []rosterEntry `json:"clientRoster,omitempty"`
}

type rosterEntry struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// clearRequest is the payload for POST /v1/assistant/session/clear.
type clearRequest struct {
	SessionID string `json:"sessionId"`
}

type clearResponse struct {
	Success bool `json:"success"`
}

type toolsResponse struct {
	Tools []string `json:"tools"`
}

// queryReply is the decoded outcome of a query call. Exactly one of Intent
// and Fallback is set: the server answers 200 with either a full intent or
// a soft failure carrying a conversational error message.
type queryReply struct {
	Intent   *intent.Intent
	Fallback string
}

// assistantClient talks to a running Dot server.
type assistantClient struct {
	baseURL string
	scope   string
	http    *http.Client
}

func newAssistantClient(baseURL, scope string) *assistantClient {
	return &assistantClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		scope:   scope,
		http:    &http.Client{Timeout: 2 * time.Minute},
	}
}

// getServerBaseURL resolves the server address from the --server flag,
// the DOT_SERVER_URL environment variable, or the default local address.
func getServerBaseURL() string {
	if serverFlag != "" {
		return serverFlag
	}
	if env := os.Getenv("DOT_SERVER_URL"); env != "" {
		return env
	}
	return "http://localhost:8080"
}

func (c *assistantClient) postJSON(ctx context.Context, path string, payload any) ([]byte, int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.scope != "" {
		req.Header.Set("X-Dot-Client-Scope", c.scope)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("server unavailable at %s: %w", c.baseURL, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to close response body: %v\n", closeErr)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return respBody, resp.StatusCode, nil
}

// submitQuery sends a question and decodes the server's reply.
//
// The server answers 200 for both outcomes of a turn: a parsed intent
// (bare intent JSON) or a soft failure ({"parsed": null, "error": ...}).
// Anything else is a transport or server error.
func (c *assistantClient) submitQuery(ctx context.Context, question, sessionID string, roster []rosterEntry) (*queryReply, error) {
	body, status, err := c.postJSON(ctx, "/v1/assistant/query", queryRequest{
		Question:     question,
		SessionID:    sessionID,
		ClientRoster: roster,
	})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("server returned an error (status %d): %s", status, serverErrorMessage(body))
	}
	return decodeQueryReply(body)
}

func (c *assistantClient) clearSession(ctx context.Context, sessionID string) error {
	body, status, err := c.postJSON(ctx, "/v1/assistant/session/clear", clearRequest{SessionID: sessionID})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("server returned an error (status %d): %s", status, serverErrorMessage(body))
	}
	var cleared clearResponse
	if err := json.Unmarshal(body, &cleared); err != nil {
		return fmt.Errorf("failed to parse clear response: %w", err)
	}
	if !cleared.Success {
		return fmt.Errorf("server did not confirm the clear")
	}
	return nil
}

func (c *assistantClient) listTools(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/assistant/tools", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server unavailable at %s: %w", c.baseURL, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to close response body: %v\n", closeErr)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned an error (status %d): %s", resp.StatusCode, serverErrorMessage(body))
	}
	var tools toolsResponse
	if err := json.Unmarshal(body, &tools); err != nil {
		return nil, fmt.Errorf("failed to parse tools response: %w", err)
	}
	return tools.Tools, nil
}

// decodeQueryReply splits the two 200 shapes apart. A soft failure carries
// a non-empty "error" key; a parsed turn is the intent object itself.
func decodeQueryReply(body []byte) (*queryReply, error) {
	var probe struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse server response: %w", err)
	}
	if probe.Error != "" {
		return &queryReply{Fallback: probe.Error}, nil
	}

	var it intent.Intent
	if err := json.Unmarshal(body, &it); err != nil {
		return nil, fmt.Errorf("failed to parse intent response: %w", err)
	}
	return &queryReply{Intent: &it}, nil
}

// serverErrorMessage pulls the "error" field out of an error response body,
// falling back to the raw body when it is not the expected shape.
func serverErrorMessage(body []byte) string {
	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return errResp.Error
	}
	return strings.TrimSpace(string(body))
}

// parseRoster converts repeated --roster CODE=Name flags into entries.
func parseRoster(pairs []string) ([]rosterEntry, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	entries := make([]rosterEntry, 0, len(pairs))
	for _, pair := range pairs {
		code, name, found := strings.Cut(pair, "=")
		code = strings.TrimSpace(code)
		name = strings.TrimSpace(name)
		if !found || code == "" || name == "" {
			return nil, fmt.Errorf("invalid roster entry %q, expected CODE=Name", pair)
		}
		entries = append(entries, rosterEntry{Code: strings.ToUpper(code), Name: name})
	}
	return entries, nil
}

// showSpinner animates a progress indicator until done receives a value.
func showSpinner(msg string, done chan bool) {
	chars := []string{"◐", "◓", "◑", "◒"}
	i := 0

	fmt.Print("\033[?25l")
	defer fmt.Print("\033[?25h")

	for {
		select {
		case <-done:
			return
		default:
			fmt.Printf("\r%s %s... \033[K", chars[i%len(chars)], msg)
			i++
			time.Sleep(120 * time.Millisecond)
		}
	}
}
