// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Praveenkumar76/SkyGen-backend/services/skygen/handlers"
)

// SetupRoutes registers all SkyGen HTTP routes on the router.
//
// # Description
//
// Route map:
//
//	GET  /health           - liveness probe
//	GET  /metrics          - Prometheus metrics
//	POST /v1/chat          - non-streaming chat completion
//	POST /v1/chat/stream   - direct chat with SSE token streaming
//	POST /v1/agent/stream  - one agent turn with SSE event streaming
//
// # Inputs
//
//   - router: Gin engine with middleware already applied. Must not be nil.
//   - chatHandler: Handler for the direct chat endpoints. Must not be nil.
//   - agentHandler: Handler for the agent endpoint. Must not be nil.
func SetupRoutes(router *gin.Engine, chatHandler handlers.ChatHandler, agentHandler handlers.AgentHandler) {
	router.GET("/health", handlers.HandleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/chat", chatHandler.HandleChat)
		v1.POST("/chat/stream", chatHandler.HandleChatStream)
		v1.POST("/agent/stream", agentHandler.HandleAgentStream)
	}
}
