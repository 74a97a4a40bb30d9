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

// GeminiEngine adapts GeminiClient to the Engine port. Same contract as
// AnthropicEngine; only the wire client differs.
//
// Thread Safety: GeminiEngine is safe for concurrent use.
type GeminiEngine struct {
	client *llm.GeminiClient
	params llm.GenerationParams
}

// NewGeminiEngine creates a new GeminiEngine.
func NewGeminiEngine(client *llm.GeminiClient) *GeminiEngine {
	temp := float32(0)
	return &GeminiEngine{
		client: client,
		params: llm.GenerationParams{Temperature: &temp},
	}
}

// Generate implements Engine by delegating to GeminiClient.ChatWithTools.
func (e *GeminiEngine) Generate(ctx context.Context, req Request) (*Response, error) {
	if e.client == nil {
		return nil, fmt.Errorf("Gemini client is nil")
	}

	ctx, span := otel.Tracer(engineTracerName).Start(ctx, "engine.GeminiEngine.Generate",
		trace.WithAttributes(
			attribute.String("provider", "gemini"),
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
		recordGenerateMetrics("gemini", duration, err)
		return nil, err
	}

	span.SetAttributes(attribute.String("stop_reason", result.StopReason))
	recordGenerateMetrics("gemini", duration, nil)

	return &Response{
		StopReason: result.StopReason,
		Text:       result.Content,
		ToolCalls:  result.ToolCalls,
	}, nil
}
