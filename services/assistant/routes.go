// Copyright (C) 2026 Hunch Creative Ltd (dev@hunchcreative.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assistant

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all assistant routes with the router.
//
// Description:
//
//	Registers the /v1/assistant/* endpoints with the given Gin router
//	group. The group should already have any required middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST /v1/assistant/query - Interpret a question into a structured intent
//	POST /v1/assistant/session/clear - Drop a session's history and context
//	GET  /v1/assistant/tools - List the registered tools
//	GET  /v1/assistant/health - Health check
//	GET  /v1/assistant/ready - Readiness check
//
// Example:
//
//	service, _ := assistant.NewService(assistant.DefaultServiceConfig(), eng, store)
//	handlers := assistant.NewHandlers(service)
//
//	v1 := router.Group("/v1")
//	assistant.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	assistant := rg.Group("/assistant")
	{
		assistant.POST("/query", handlers.HandleQuery)
		assistant.POST("/session/clear", handlers.HandleClearSession)

		assistant.GET("/tools", handlers.HandleListTools)

		assistant.GET("/health", handlers.HandleHealth)
		assistant.GET("/ready", handlers.HandleReady)
	}
}
