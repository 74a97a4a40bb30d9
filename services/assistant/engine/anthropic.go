// Copyright (C) 2026 Hunch Creative Ltd (dev@hunchcreative.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hunchcreative/dot/services/llm"
)

// AnthropicEngine adapts AnthropicClient to the Engine port.
//
// Description:
//
//	Delegates generation to the Anthropic Messages API via AnthropicClient.
//	System instructions travel as a leading system message; the client
//	extracts them into the wire-level system block.
//
// Thread Safety: AnthropicEngine is safe for concurrent use.
type AnthropicEngine struct {
	client *llm.AnthropicClient
	params llm.GenerationParams
}

// NewAnthropicEngine creates a new AnthropicEngine.
//
// Inputs:
//   - client: The AnthropicClient to wrap. Must not be nil.
//
// Outputs:
//   - *AnthropicEngine: The configured adapter.
func NewAnthropicEngine(client *llm.AnthropicClient) *AnthropicEngine {
	// Intent extraction wants near-deterministic output.
	temp := float32(0)
	return &AnthropicEngine{
		client: client,
		params: llm.GenerationParams{Temperature: &temp},
	}
}

// Generate implements Engine by delegating to AnthropicClient.ChatWithTools.
func (e *AnthropicEngine) Generate(ctx context.Context, req Request) (*Response, error) {
	if e.client == nil {
		return nil, fmt.Errorf("Anthropic client is nil")
	}

	ctx, span := otel.Tracer(engineTracerName).Start(ctx, "engine.AnthropicEngine.Generate",
		trace.WithAttributes(
			attribute.String("provider", "anthropic"),
			attribute.Int("message_count", len(req.Messages)),
			attribute.Int("tool_count", len(req.Tools)),
		),
	)
	defer span.End()

	messages := make([]llm.ChatMessage, 0, len(req.Messages)+1)
	if req.SystemInstructions != "" {
		messages = append(messages, llm.ChatMessage{
			Role:    "system",
			Content: req.SystemInstructions,
		})
	}
	messages = append(messages, req.Messages...)

	startTime := time.Now()
	result, err := e.client.ChatWithTools(ctx, messages, e.params, req.Tools)
	duration := time.Since(startTime)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordGenerateMetrics("anthropic", duration, err)
		return nil, err
	}

	span.SetAttributes(attribute.String("stop_reason", result.StopReason))
	recordGenerateMetrics("anthropic", duration, nil)

	return &Response{
		StopReason: result.StopReason,
		Text:       result.Content,
		ToolCalls:  result.ToolCalls,
	}, nil
}
