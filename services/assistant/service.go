// Copyright (C) 2026 Hunch Creative Ltd (dev@hunchcreative.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package assistant is the HTTP surface for Dot, the project assistant.
// It wires the session store, tool registry, and orchestrator together and
// exposes them on /v1/assistant.
package assistant

import (
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/hunchcreative/dot/services/assistant/engine"
	"github.com/hunchcreative/dot/services/assistant/orchestrator"
	"github.com/hunchcreative/dot/services/assistant/session"
	"github.com/hunchcreative/dot/services/assistant/tools"
	"github.com/hunchcreative/dot/services/records"
)

// =============================================================================
// Service
// =============================================================================

// ServiceConfig configures the assistant service.
type ServiceConfig struct {
	// SessionTTL is the idle lifetime of a conversation. Zero uses the
	// session store default.
	SessionTTL time.Duration

	// Logger is the structured logger for the service and its handlers.
	// Nil falls back to slog.Default().
	Logger *slog.Logger
}

// DefaultServiceConfig returns the default service configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		SessionTTL: session.DefaultTTL,
		Logger:     slog.Default(),
	}
}

// Service owns the assistant's long-lived state.
//
// Thread Safety: Service is safe for concurrent use once constructed.
type Service struct {
	orch     *orchestrator.Orchestrator
	sessions *session.Store
	logger   *slog.Logger
}

// NewService creates the assistant service.
//
// Inputs:
//   - cfg: Service configuration.
//   - eng: Reasoning engine. Must not be nil.
//   - store: Record store backing the tools. Must not be nil.
//
// Outputs:
//   - *Service: Wired service.
//   - error: Non-nil if any component fails to construct.
func NewService(cfg ServiceConfig, eng engine.Engine, store records.Store) (*Service, error) {
	if eng == nil {
		return nil, fmt.Errorf("assistant: engine is nil")
	}
	if store == nil {
		return nil, fmt.Errorf("assistant: record store is nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registerBindingRules()

	sessions := session.NewStore(cfg.SessionTTL, logger)
	registry := tools.NewRecordsRegistry(store, logger)

	orch, err := orchestrator.NewOrchestrator(sessions, eng, registry, logger)
	if err != nil {
		return nil, fmt.Errorf("assistant: %w", err)
	}

	return &Service{
		orch:     orch,
		sessions: sessions,
		logger:   logger,
	}, nil
}

// SessionCount reports the number of live sessions, for readiness output.
func (s *Service) SessionCount() int {
	return s.sessions.Count()
}

// =============================================================================
// Binding Rules
// =============================================================================

// clientCodePattern matches record-store client codes: short uppercase
// mnemonics like SKY, TOW, or ONB.
var clientCodePattern = regexp.MustCompile(`^[A-Z]{2,5}$`)

var bindingRulesOnce sync.Once

// registerBindingRules installs the clientcode rule on gin's shared binding
// validator. The binding engine is process-global, so this runs once no
// matter how many services are constructed.
func registerBindingRules() {
	bindingRulesOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		// RegisterValidation only errors on an empty tag name.
		_ = v.RegisterValidation("clientcode", func(fl validator.FieldLevel) bool {
			return clientCodePattern.MatchString(fl.Field().String())
		})
	})
}
