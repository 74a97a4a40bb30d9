// Copyright (C) 2026 Hunch Creative Ltd (dev@hunchcreative.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assistant

import (
	"github.com/hunchcreative/dot/services/assistant/intent"
)

// =============================================================================
// Wire Types
// =============================================================================

// QueryRequest is the body of POST /v1/assistant/query.
type QueryRequest struct {
	// Question is the user's raw text.
	Question string `json:"question" binding:"required"`

	// SessionID groups questions into a conversation.
	SessionID string `json:"sessionId" binding:"required"`

	// ClientRoster is the client list visible to this caller. Optional; an
	// empty roster still works, the engine just cannot resolve client names
	// to codes.
	ClientRoster []RosterEntry `json:"clientRoster" binding:"omitempty,dive"`
}

// RosterEntry is one client in the caller's roster.
type RosterEntry struct {
	Code string `json:"code" binding:"required,clientcode"`
	Name string `json:"name" binding:"required"`
}

// QueryFailureResponse is returned with 200 when the engine answered but
// its output did not parse as intent JSON. The caller's contract is "you
// always get JSON back"; a null parsed field plus a diagnostic is the
// degraded form of that promise.
type QueryFailureResponse struct {
	Parsed *intent.Intent `json:"parsed"`
	Error  string         `json:"error"`
}

// ClearSessionRequest is the body of POST /v1/assistant/session/clear.
type ClearSessionRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
}

// ClearSessionResponse acknowledges a session clear. Clearing an unknown
// session still succeeds.
type ClearSessionResponse struct {
	Success bool `json:"success"`
}

// ToolsResponse lists the registered tool names.
type ToolsResponse struct {
	Tools []string `json:"tools"`
}

// HealthResponse is the liveness/readiness body.
type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions,omitempty"`
}

// ErrorResponse is the error envelope for all failure statuses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
