// Copyright (C) 2026 Hunch Creative Ltd (dev@hunchcreative.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"fmt"
	"os"
	"strings"

	"github.com/hunchcreative/dot/services/llm"
)

// Supported engine providers.
const (
	// ProviderAnthropic routes generation to the Anthropic Messages API.
	ProviderAnthropic = "anthropic"

	// ProviderOpenAI routes generation to the OpenAI Chat Completions API.
	ProviderOpenAI = "openai"

	// ProviderGemini routes generation to the Gemini generateContent API.
	ProviderGemini = "gemini"
)

// ValidProviders lists the providers NewFromEnv accepts.
var ValidProviders = []string{ProviderAnthropic, ProviderOpenAI, ProviderGemini}

// NewFromEnv creates the Engine selected by the DOT_ENGINE environment
// variable.
//
// Description:
//
//	Empty or unset DOT_ENGINE defaults to Anthropic. The switch exists so
//	adding a provider is one case plus one adapter file; the orchestrator
//	never changes.
//
// Outputs:
//   - Engine: The configured engine.
//   - error: Non-nil if the provider is unsupported or its client cannot
//     be constructed (usually a missing API key).
func NewFromEnv() (Engine, error) {
	provider := strings.ToLower(strings.TrimSpace(os.Getenv("DOT_ENGINE")))
	if provider == "" {
		provider = ProviderAnthropic
	}

	switch provider {
	case ProviderAnthropic:
		client, err := llm.NewAnthropicClient()
		if err != nil {
			return nil, fmt.Errorf("creating Anthropic client: %w", err)
		}
		return NewAnthropicEngine(client), nil

	case ProviderOpenAI:
		client, err := llm.NewOpenAIClient()
		if err != nil {
			return nil, fmt.Errorf("creating OpenAI client: %w", err)
		}
		return NewOpenAIEngine(client), nil

	case ProviderGemini:
		client, err := llm.NewGeminiClient()
		if err != nil {
			return nil, fmt.Errorf("creating Gemini client: %w", err)
		}
		return NewGeminiEngine(client), nil

	default:
		return nil, fmt.Errorf("unsupported engine provider: %q (valid: %v)", provider, ValidProviders)
	}
}
