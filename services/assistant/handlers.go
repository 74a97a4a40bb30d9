// Copyright (C) 2026 Hunch Creative Ltd (dev@hunchcreative.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assistant

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hunchcreative/dot/services/assistant/orchestrator"
	"github.com/hunchcreative/dot/services/llm"
)

// ScopeHeader carries the client code an upstream auth gateway binds a
// session to. Absent for studio-wide sessions.
const ScopeHeader = "X-Dot-Client-Scope"

// Handlers serves the assistant HTTP endpoints.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers backed by the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// getOrCreateRequestID returns the inbound X-Request-ID or mints one.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

// HandleQuery handles POST /v1/assistant/query.
//
// Description:
//
//	Interprets one question within its session and returns the structured
//	intent. An engine response that does not parse is still a 200: the
//	body is then {"parsed": null, "error": diagnostic} so callers always
//	receive JSON.
//
// Request Body:
//
//	QueryRequest (question and sessionId required)
//
// Headers:
//
//	X-Dot-Client-Scope: Optional client code locking the session's data
//	access to one client.
//
// Response:
//
//	200 OK: intent.Intent, or QueryFailureResponse on a parse failure
//	400 Bad Request: Invalid body or scope header
//	502 Bad Gateway: Engine unreachable or failing
//
// Thread Safety: This method is safe for concurrent use. Queries for one
// session serialize inside the orchestrator.
func (h *Handlers) HandleQuery(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.svc.logger.With("request_id", requestID, "handler", "HandleQuery")

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request: " + err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}

	scope := c.GetHeader(ScopeHeader)
	if scope != "" && !clientCodePattern.MatchString(scope) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid client scope header",
			Code:  "INVALID_SCOPE",
		})
		return
	}

	roster := make([]orchestrator.ClientRosterEntry, 0, len(req.ClientRoster))
	for _, entry := range req.ClientRoster {
		roster = append(roster, orchestrator.ClientRosterEntry{Code: entry.Code, Name: entry.Name})
	}

	result, err := h.svc.orch.SubmitQuery(c.Request.Context(), orchestrator.QueryRequest{
		Question:    req.Question,
		SessionID:   req.SessionID,
		Roster:      roster,
		ClientScope: scope,
	})
	if err != nil {
		logger.Error("query failed", slog.String("session_id", req.SessionID), slog.Any("error", err))
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error: "engine request failed: " + llm.SafeLogString(err.Error()),
			Code:  "ENGINE_FAILURE",
		})
		return
	}

	if result.Intent == nil {
		logger.Warn("query did not parse",
			slog.String("session_id", req.SessionID),
			slog.String("diagnostic", result.Diagnostic),
		)
		c.JSON(http.StatusOK, QueryFailureResponse{Error: result.Diagnostic})
		return
	}

	logger.Info("query interpreted",
		slog.String("session_id", req.SessionID),
		slog.String("core_request", string(result.Intent.CoreRequest)),
		slog.Bool("scoped", scope != ""),
	)

	c.JSON(http.StatusOK, result.Intent)
}

// HandleClearSession handles POST /v1/assistant/session/clear.
//
// Description:
//
//	Drops the session's history and context. Clearing a session that does
//	not exist succeeds, so the operation is idempotent and safe to retry.
//
// Request Body:
//
//	ClearSessionRequest (sessionId required)
//
// Response:
//
//	200 OK: {"success": true}
//	400 Bad Request: Missing sessionId
func (h *Handlers) HandleClearSession(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.svc.logger.With("request_id", requestID, "handler", "HandleClearSession")

	var req ClearSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request: " + err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}

	h.svc.orch.ClearSession(req.SessionID)
	logger.Info("session cleared", slog.String("session_id", req.SessionID))

	c.JSON(http.StatusOK, ClearSessionResponse{Success: true})
}

// HandleListTools handles GET /v1/assistant/tools.
//
// Response:
//
//	200 OK: ToolsResponse
func (h *Handlers) HandleListTools(c *gin.Context) {
	c.JSON(http.StatusOK, ToolsResponse{Tools: h.svc.orch.ToolNames()})
}

// HandleHealth handles GET /v1/assistant/health.
//
// Response:
//
//	200 OK: {"status": "ok"}
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// HandleReady handles GET /v1/assistant/ready.
//
// Description:
//
//	Reports readiness. The service is ready as soon as it is constructed;
//	the session count is included for operational visibility.
//
// Response:
//
//	200 OK: {"status": "ready", "sessions": n}
func (h *Handlers) HandleReady(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:   "ready",
		Sessions: h.svc.SessionCount(),
	})
}
