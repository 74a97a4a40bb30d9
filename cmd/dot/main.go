// Copyright (C) 2026 Hunch Creative Ltd (dev@hunchcreative.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command dot starts the Dot assistant API server.
//
// Dot is the conversational front door to Hunch's project records:
//   - Natural-language questions parsed into structured intents
//   - Session memory so follow-ups like "what about them?" resolve
//   - Live record lookups (people, budgets, job numbers) via engine tools
//
// Usage:
//
//	go run ./cmd/dot
//	go run ./cmd/dot -port 9090
//
// Required environment:
//
//	ANTHROPIC_API_KEY=sk-...            # reasoning engine credentials
//	RECORDS_API_URL=https://records...  # record store API root
//	RECORDS_API_KEY=...                 # record store bearer token
//
// Optional environment:
//
//	DOT_ENGINE=anthropic       # engine provider (default anthropic)
//	DOT_CACHE_DIR=...          # records cache directory (default ~/.dot/cache/records)
//	DOT_GATE_RULES=...         # tool gate rules YAML, hot-reloaded on change
//	DOT_SESSION_TTL_MIN=30     # idle session lifetime in minutes
//	DOT_TRACE_EXPORTER=stdout  # span exporter: otlp, stdout, off
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/assistant/health
//
//	# Ask a question
//	curl -X POST http://localhost:8080/v1/assistant/query \
//	  -H "Content-Type: application/json" \
//	  -d '{"question": "What is due for Sky this week?", "sessionId": "demo", "clientRoster": [{"code": "SKY", "name": "Sky TV"}]}'
//
//	# Clear a conversation
//	curl -X POST http://localhost:8080/v1/assistant/session/clear \
//	  -H "Content-Type: application/json" \
//	  -d '{"sessionId": "demo"}'
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/hunchcreative/dot/services/assistant"
	"github.com/hunchcreative/dot/services/assistant/config"
	"github.com/hunchcreative/dot/services/assistant/engine"
	"github.com/hunchcreative/dot/services/records"
	badgerstore "github.com/hunchcreative/dot/services/storage/badger"
	"github.com/hunchcreative/dot/services/telemetry"
)

func main() {
	port := flag.Int("port", 8080, "Port to listen on")
	debug := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()

	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// W3C TraceContext propagation so spans correlate with the upstream
	// gateway's traces.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	ctx := context.Background()
	shutdownTracing, err := telemetry.SetupTracing(ctx, "dot-assistant", slog.Default())
	if err != nil {
		slog.Warn("Trace exporter setup failed, continuing without exporting",
			slog.String("error", err.Error()))
		shutdownTracing = func(context.Context) error { return nil }
	}

	eng, err := engine.NewFromEnv()
	if err != nil {
		slog.Error("Reasoning engine unavailable", slog.String("error", err.Error()))
		os.Exit(1)
	}

	httpStore, err := records.NewHTTPStore()
	if err != nil {
		slog.Error("Record store unavailable", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Records cache BadgerDB. Graceful degradation: if the directory is
	// unavailable, reads go straight to the record store.
	var cacheDB *badgerstore.DB
	cacheDir := os.Getenv("DOT_CACHE_DIR")
	if cacheDir == "" {
		home, homeErr := os.UserHomeDir()
		if homeErr == nil {
			cacheDir = filepath.Join(home, ".dot", "cache", "records")
		}
	}
	if cacheDir != "" {
		cacheCfg := badgerstore.DefaultConfig()
		cacheCfg.Path = cacheDir
		db, openErr := badgerstore.OpenDB(cacheCfg)
		if openErr != nil {
			slog.Warn("Records cache unavailable, reads go straight to the store",
				slog.String("path", cacheDir),
				slog.String("error", openErr.Error()))
		} else {
			cacheDB = db
			slog.Info("Records cache opened", slog.String("path", cacheDir))
		}
	}
	store := records.NewCachedStore(httpStore, cacheDB, 0, slog.Default())

	// Optional gate rules file with hot reload. Without it the embedded
	// defaults apply.
	if rulesPath := os.Getenv("DOT_GATE_RULES"); rulesPath != "" {
		if watchErr := config.WatchGateRules(ctx, rulesPath, slog.Default()); watchErr != nil {
			slog.Warn("Gate rules file unavailable, using embedded defaults",
				slog.String("path", rulesPath),
				slog.String("error", watchErr.Error()))
		} else {
			slog.Info("Gate rules loaded", slog.String("path", rulesPath))
		}
	}

	svcCfg := assistant.DefaultServiceConfig()
	if v := os.Getenv("DOT_SESSION_TTL_MIN"); v != "" {
		parsed, parseErr := strconv.Atoi(v)
		if parseErr != nil || parsed <= 0 {
			slog.Warn("Invalid DOT_SESSION_TTL_MIN, using default",
				slog.String("value", v),
				slog.Duration("default", svcCfg.SessionTTL))
		} else {
			svcCfg.SessionTTL = time.Duration(parsed) * time.Minute
		}
	}

	svc, err := assistant.NewService(svcCfg, eng, store)
	if err != nil {
		slog.Error("Failed to construct assistant service", slog.String("error", err.Error()))
		os.Exit(1)
	}
	handlers := assistant.NewHandlers(svc)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("dot-assistant"))
	if *debug {
		router.Use(gin.Logger())
	}

	v1 := router.Group("/v1")
	assistant.RegisterRoutes(v1, handlers)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	printBanner(*port)

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		slog.Info("Shutting down Dot assistant server")
		if cacheDB != nil {
			if closeErr := cacheDB.Close(); closeErr != nil {
				slog.Warn("Failed to close records cache", slog.String("error", closeErr.Error()))
			}
		}
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if flushErr := shutdownTracing(flushCtx); flushErr != nil {
			slog.Warn("Failed to flush spans", slog.String("error", flushErr.Error()))
		}
		os.Exit(0)
	}()

	addr := fmt.Sprintf(":%d", *port)
	slog.Info("Starting Dot assistant server", slog.String("address", addr))
	if err := router.Run(addr); err != nil {
		slog.Error("Failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func printBanner(port int) {
	banner := `
╔════════════════════════════════════════════════════════════════╗
║                        DOT · HUNCH ASSISTANT                   ║
╠════════════════════════════════════════════════════════════════╣
║                                                                ║
║  Conversational intent parsing for Hunch's project records.    ║
║                                                                ║
║  Quick Start:                                                  ║
║  ┌──────────────────────────────────────────────────────────┐  ║
║  │ # Health check                                           │  ║
║  │ curl http://localhost:%d/v1/assistant/health          │  ║
║  │                                                          │  ║
║  │ # Ask a question                                         │  ║
║  │ curl -X POST http://localhost:%d/v1/assistant/query \ │  ║
║  │   -H "Content-Type: application/json" \                  │  ║
║  │   -d '{"question": "What is due this week?",             │  ║
║  │        "sessionId": "demo"}'                             │  ║
║  └──────────────────────────────────────────────────────────┘  ║
║                                                                ║
║  Endpoints: /query, /session/clear, /tools, /health, /ready    ║
║  Metrics:   /metrics                                           ║
║                                                                ║
║  Press Ctrl+C to stop                                          ║
╚════════════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, port, port)
}
