// Copyright (C) 2026 Hunch Creative Ltd (dev@hunchcreative.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package engine defines the vendor-neutral port the assistant speaks to its
// language model through. The orchestrator composes requests in these terms
// only; swapping providers means writing one adapter, not touching the
// dispatch loop.
//
// Thread Safety:
//
//	All interfaces in this package must be implemented as safe for concurrent use.
package engine

import (
	"context"

	"github.com/hunchcreative/dot/services/llm"
)

// Stop reasons returned in Response.StopReason.
const (
	// StopEnd means the engine finished a normal text turn.
	StopEnd = "end"

	// StopToolUse means the engine requested tool calls and is waiting for
	// their results.
	StopToolUse = "tool_use"
)

// Request is one engine round.
type Request struct {
	// SystemInstructions is the full instruction template for this turn.
	// Empty means no system block.
	SystemInstructions string

	// Messages is the conversation so far, oldest first.
	Messages []llm.ChatMessage

	// Tools are the schemas offered this round. Nil or empty withholds
	// tools entirely, which forces a plain text turn.
	Tools []llm.ToolDef
}

// Response is the engine's reply to one Request.
type Response struct {
	// StopReason is StopEnd or StopToolUse.
	StopReason string

	// Text is the assistant's text output. May be empty when the engine
	// only emitted tool calls.
	Text string

	// ToolCalls are the requested tool invocations, in emission order.
	// Empty unless StopReason is StopToolUse.
	ToolCalls []llm.ToolCallResponse
}

// Engine generates one conversation round.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Engine interface {
	// Generate sends the request and returns the engine's reply.
	//
	// Inputs:
	//   - ctx: Context for cancellation and timeout.
	//   - req: The composed round.
	//
	// Outputs:
	//   - *Response: The engine's reply. Never nil on success.
	//   - error: Non-nil on transport or provider failure. Messages are
	//     sanitized; safe to log.
	Generate(ctx context.Context, req Request) (*Response, error)
}
