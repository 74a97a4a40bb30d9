// Copyright (C) 2026 Hunch Creative Ltd (dev@hunchcreative.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hunchcreative/dot/services/assistant/intent"
)

// =============================================================================
// Response Validator
// =============================================================================

// ValidationResult is the outcome of parsing one engine response.
//
// Parsed is nil on failure, and Diagnostic then says why. Raw always
// carries the original engine text so callers can log or return it for
// debugging.
type ValidationResult struct {
	Parsed     *intent.Intent
	Raw        string
	Diagnostic string
}

// stripFences removes a Markdown code fence wrapper from engine output.
//
// Engines under instruction pressure still wrap JSON in ``` fences often
// enough that rejecting fenced output would fail a large share of
// otherwise valid responses.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// validateResponse parses engine text into a normalized Intent.
//
// Description:
//
//	Fence-tolerant and soft-failing: a response that does not parse
//	produces a ValidationResult with Parsed nil and a diagnostic, never an
//	error. The caller decides what a parse failure means for the session.
//	Successful parses are normalized so the intent contract holds even
//	when the engine skipped fields.
func validateResponse(raw string) ValidationResult {
	result := ValidationResult{Raw: raw}

	cleaned := stripFences(raw)
	if cleaned == "" {
		result.Diagnostic = "engine returned an empty response"
		return result
	}

	var it intent.Intent
	if err := json.Unmarshal([]byte(cleaned), &it); err != nil {
		result.Diagnostic = fmt.Sprintf("engine response is not valid intent JSON: %v", err)
		return result
	}

	it.Normalize()
	result.Parsed = &it
	return result
}

// summarizeIntent produces the compact line recorded as the assistant's
// turn in session history. History feeds back into later prompts, so this
// stays short: the action and the client, not the whole JSON.
func summarizeIntent(it *intent.Intent) string {
	if it == nil {
		return ""
	}
	if client := it.ResolvedClient(); client != "" {
		return fmt.Sprintf("%s for %s", it.CoreRequest, client)
	}
	return string(it.CoreRequest)
}
