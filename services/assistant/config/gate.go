// Copyright (C) 2026 Hunch Creative Ltd (dev@hunchcreative.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config holds the assistant's tool gating rules: which tool schemas
// are offered to the engine for a given question. Defaults are embedded;
// deployments can point DOT_GATE_RULES at an override file and hot-reload it.
package config

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"
)

var gateTracer = otel.Tracer("dot.assistant.config")

// MaxYAMLFileSize bounds loaded rule files. Gating rules are a few KB; a
// larger file is a misconfiguration, not a bigger rule set.
const MaxYAMLFileSize = 1 << 20 // 1 MiB

// =============================================================================
// Embedded Default Gate Rules
// =============================================================================

//go:embed gate_rules.yaml
var defaultGateRulesYAML []byte

// =============================================================================
// Gate Configuration Types
// =============================================================================

// GateMode controls when tool schemas are attached to the first engine round.
type GateMode string

const (
	// GateAlways attaches every tool schema to every question.
	GateAlways GateMode = "always"
	// GateKeyword attaches only the tool subsets whose keyword groups match
	// the question. The default.
	GateKeyword GateMode = "keyword"
	// GateNever attaches no tools; the engine classifies without data access.
	GateNever GateMode = "never"
)

// GateRule maps a keyword group to the tool subset it unlocks.
type GateRule struct {
	// Tools are the tool names this rule enables.
	Tools []string `yaml:"tools"`

	// Keywords trigger the rule when any appears in the question
	// (case-insensitive substring match). Multi-word entries match as
	// phrases.
	Keywords []string `yaml:"keywords"`
}

// GateConfig is the full gating rule set.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type GateConfig struct {
	Mode  GateMode   `yaml:"mode"`
	Rules []GateRule `yaml:"rules"`
}

// EnabledTools returns the tool names to offer for the given question,
// deduplicated in rule order.
//
// Description:
//
//	Mode always returns every known tool; never returns none. Keyword mode
//	lowercases the question once and enables each rule whose keyword list
//	has a substring hit. A question matching no rule gets no tools, which
//	is the cheap path for pure classification questions.
func (c *GateConfig) EnabledTools(question string) []string {
	switch c.Mode {
	case GateNever:
		return nil
	case GateAlways:
		return c.AllTools()
	}

	lowered := strings.ToLower(question)
	var enabled []string
	seen := make(map[string]struct{})

	for _, rule := range c.Rules {
		if !rule.matches(lowered) {
			continue
		}
		for _, tool := range rule.Tools {
			if _, ok := seen[tool]; ok {
				continue
			}
			seen[tool] = struct{}{}
			enabled = append(enabled, tool)
		}
	}
	return enabled
}

// AllTools returns every tool named by any rule, deduplicated in rule order.
func (c *GateConfig) AllTools() []string {
	var all []string
	seen := make(map[string]struct{})
	for _, rule := range c.Rules {
		for _, tool := range rule.Tools {
			if _, ok := seen[tool]; ok {
				continue
			}
			seen[tool] = struct{}{}
			all = append(all, tool)
		}
	}
	return all
}

// matches reports whether any keyword appears in the lowercased question.
func (r *GateRule) matches(loweredQuestion string) bool {
	for _, kw := range r.Keywords {
		if strings.Contains(loweredQuestion, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// =============================================================================
// Singleton Gate Config
// =============================================================================

var (
	gateConfigMu      sync.RWMutex
	gateConfigOnce    sync.Once
	cachedGateConfig  *GateConfig
	gateConfigLoadErr error
)

// GetGateConfig returns the cached gating configuration.
//
// Description:
//
//	Loads the embedded default rules on first call and caches for
//	subsequent calls. Deployments with an override file use the Watcher
//	(watch.go), which swaps the cached config on change.
//
// Inputs:
//   - ctx: Context for tracing. Must not be nil.
//
// Outputs:
//   - *GateConfig: The loaded configuration. Never nil on success.
//   - error: Non-nil if loading or validation failed.
//
// Thread Safety: Safe for concurrent use.
func GetGateConfig(ctx context.Context) (*GateConfig, error) {
	if ctx == nil {
		return nil, fmt.Errorf("GetGateConfig: ctx must not be nil")
	}

	gateConfigMu.RLock()
	if cachedGateConfig != nil || gateConfigLoadErr != nil {
		cfg, err := cachedGateConfig, gateConfigLoadErr
		gateConfigMu.RUnlock()
		return cfg, err
	}
	gateConfigMu.RUnlock()

	gateConfigMu.Lock()
	defer gateConfigMu.Unlock()

	if cachedGateConfig != nil || gateConfigLoadErr != nil {
		return cachedGateConfig, gateConfigLoadErr
	}

	gateConfigOnce.Do(func() {
		cachedGateConfig, gateConfigLoadErr = LoadGateConfig(ctx, defaultGateRulesYAML)
	})

	return cachedGateConfig, gateConfigLoadErr
}

// ResetGateConfig resets the cached config for testing.
//
// Thread Safety: Safe for concurrent use.
func ResetGateConfig() {
	gateConfigMu.Lock()
	defer gateConfigMu.Unlock()
	cachedGateConfig = nil
	gateConfigLoadErr = nil
	gateConfigOnce = sync.Once{}
}

// setGateConfig swaps the cached config. Used by the override watcher.
func setGateConfig(cfg *GateConfig) {
	gateConfigMu.Lock()
	defer gateConfigMu.Unlock()
	cachedGateConfig = cfg
	gateConfigLoadErr = nil
}

// LoadGateConfig loads and validates a GateConfig from YAML bytes.
//
// Description:
//
//	Parses the YAML, applies the default mode, and validates the rules
//	(valid mode, non-empty tools, keywords present wherever keyword mode
//	could consult them).
//
// Inputs:
//   - ctx: Context for tracing.
//   - data: Raw YAML bytes to parse.
//
// Outputs:
//   - *GateConfig: The validated configuration.
//   - error: Non-nil if parsing or validation fails.
func LoadGateConfig(ctx context.Context, data []byte) (*GateConfig, error) {
	_, span := gateTracer.Start(ctx, "config.LoadGateConfig")
	defer span.End()

	if len(data) == 0 {
		return nil, fmt.Errorf("LoadGateConfig: empty YAML data")
	}
	if len(data) > MaxYAMLFileSize {
		return nil, fmt.Errorf("LoadGateConfig: YAML data exceeds maximum size (%d > %d)", len(data), MaxYAMLFileSize)
	}

	var cfg GateConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("LoadGateConfig: parsing YAML: %w", err)
	}

	if cfg.Mode == "" {
		cfg.Mode = GateKeyword
	}

	if err := validateGateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("LoadGateConfig: validation: %w", err)
	}

	span.SetAttributes(
		attribute.String("mode", string(cfg.Mode)),
		attribute.Int("rules", len(cfg.Rules)),
		attribute.Int("tools", len(cfg.AllTools())),
	)

	slog.Info("gate config loaded",
		slog.String("mode", string(cfg.Mode)),
		slog.Int("rules", len(cfg.Rules)),
		slog.Int("tools", len(cfg.AllTools())),
	)

	return &cfg, nil
}

// validateGateConfig checks the rule set for consistency.
func validateGateConfig(cfg *GateConfig) error {
	switch cfg.Mode {
	case GateAlways, GateKeyword, GateNever:
	default:
		return fmt.Errorf("mode must be always, keyword, or never, got %q", cfg.Mode)
	}

	if len(cfg.Rules) == 0 {
		return fmt.Errorf("rules must not be empty")
	}

	for i, rule := range cfg.Rules {
		if len(rule.Tools) == 0 {
			return fmt.Errorf("rule[%d]: tools must not be empty", i)
		}
		for j, tool := range rule.Tools {
			if tool == "" {
				return fmt.Errorf("rule[%d].tools[%d]: tool name must not be empty", i, j)
			}
		}
		if len(rule.Keywords) == 0 {
			return fmt.Errorf("rule[%d]: keywords must not be empty", i)
		}
	}

	return nil
}
