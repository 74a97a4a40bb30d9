// Copyright (C) 2026 Hunch Creative Ltd (dev@hunchcreative.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import "encoding/json"

// ToolDef is the engine-neutral tool definition passed to ChatWithTools.
//
// Description:
//
//	Declares a named lookup the reasoning engine may request during a
//	conversation round. The client converts ToolDef into the provider's
//	wire format (Anthropic input_schema) when building the request.
//
// Thread Safety: ToolDef is immutable and safe for concurrent read access.
type ToolDef struct {
	// Type is the tool type. Always "function".
	Type string `json:"type"`

	// Function contains the function definition.
	Function ToolFunction `json:"function"`
}

// ToolFunction contains the function name, description, and parameter schema.
type ToolFunction struct {
	// Name is the tool name the engine will call.
	Name string `json:"name"`

	// Description explains what the tool does.
	Description string `json:"description"`

	// Parameters defines the JSON Schema for tool inputs.
	Parameters ToolParameters `json:"parameters"`
}

// ToolParameters defines the JSON Schema for tool inputs.
type ToolParameters struct {
	// Type is the JSON Schema type. Always "object".
	Type string `json:"type"`

	// Properties maps input names to their definitions.
	Properties map[string]ToolParamDef `json:"properties,omitempty"`

	// Required lists input names that must be provided.
	Required []string `json:"required,omitempty"`
}

// ToolParamDef defines a single input in JSON Schema format.
type ToolParamDef struct {
	// Type is the JSON Schema type (string, integer, boolean, number).
	Type string `json:"type"`

	// Description explains what the input is for.
	Description string `json:"description,omitempty"`

	// Enum restricts values to a set of options.
	Enum []any `json:"enum,omitempty"`
}

// ChatMessage is a conversation message that can carry tool metadata.
//
// Description:
//
//	Regular turns use Role + Content. Assistant turns that requested tools
//	carry ToolCalls so the transcript can be replayed verbatim on the next
//	round. User turns that feed results back carry ToolResults, which the
//	client renders as tool_result content blocks ahead of any Content text
//	(the Content text becomes a trailing instruction block).
//
// Thread Safety: ChatMessage is safe for concurrent read access.
type ChatMessage struct {
	// Role is the message role: "system", "user", or "assistant".
	Role string `json:"role"`

	// Content is the text content of the message.
	Content string `json:"content,omitempty"`

	// ToolCalls contains tool invocations (assistant messages only).
	ToolCalls []ToolCallResponse `json:"tool_calls,omitempty"`

	// ToolResults contains executed tool outputs (user messages only).
	ToolResults []ToolResult `json:"tool_results,omitempty"`
}

// ToolResult pairs an executed tool call with its serialized output.
type ToolResult struct {
	// ToolUseID is the id of the tool call this result answers.
	ToolUseID string `json:"tool_use_id"`

	// Name is the tool that produced the result. Anthropic and OpenAI key
	// results by id alone; Gemini's functionResponse parts need the name.
	Name string `json:"name,omitempty"`

	// Content is the tool output serialized as a JSON string.
	Content string `json:"content"`
}

// ToolCallResponse is a single tool invocation requested by the engine.
//
// Description:
//
//	Parsed from tool_use content blocks in the engine response. The ID is
//	assigned by the provider and must be echoed back in the matching
//	ToolResult on the next round.
//
// Thread Safety: ToolCallResponse is safe for concurrent read access.
type ToolCallResponse struct {
	// ID is the unique identifier for this tool call.
	ID string `json:"id"`

	// Name is the tool name to execute.
	Name string `json:"name"`

	// Arguments is the raw JSON input for the tool.
	Arguments json.RawMessage `json:"arguments"`
}

// ArgumentsString returns the arguments as a JSON string.
//
// Description:
//
//	If arguments is already a JSON string value (starts with quote),
//	it returns the unquoted string. If arguments is an object or other
//	JSON value, it returns the raw JSON as-is. Returns "{}" for nil/empty.
//
// Thread Safety: This method is safe for concurrent use.
func (t *ToolCallResponse) ArgumentsString() string {
	if len(t.Arguments) == 0 {
		return "{}"
	}

	if t.Arguments[0] == '"' {
		var s string
		if err := json.Unmarshal(t.Arguments, &s); err == nil {
			return s
		}
	}

	return string(t.Arguments)
}

// ChatWithToolsResult is the engine response for one conversation round.
//
// Thread Safety: ChatWithToolsResult is safe for concurrent read access.
type ChatWithToolsResult struct {
	// Content is the text response (may be empty if only tool calls).
	Content string

	// ToolCalls contains tool calls requested by the engine.
	ToolCalls []ToolCallResponse

	// StopReason indicates why generation stopped.
	// Values: "end" (normal completion) or "tool_use" (tool calls present).
	StopReason string
}

// GenerationParams carries optional sampling parameters for a request.
// Nil fields keep the provider defaults.
type GenerationParams struct {
	Temperature *float32
	TopP        *float32
	TopK        *int
	MaxTokens   *int
	Stop        []string
}
