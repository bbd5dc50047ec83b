// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Praveenkumar76/SkyGen-backend/services/agent"
	"github.com/Praveenkumar76/SkyGen-backend/services/skygen/datatypes"
	"github.com/Praveenkumar76/SkyGen-backend/services/skygen/observability"
)

// =============================================================================
// Interface Definition
// =============================================================================

// AgentHandler defines the contract for the agent streaming endpoint.
//
// # Description
//
// AgentHandler owns the HTTP surface of the agent turn: request parsing,
// validation, SSE setup, and metrics. The turn itself (classification, tool
// dispatch, confirmation streaming) is delegated to the agent orchestrator,
// which writes its typed events straight to the SSE writer.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use by multiple goroutines.
type AgentHandler interface {
	// HandleAgentStream processes an agent chat request with SSE streaming.
	//
	// # Description
	//
	// Handles POST /v1/agent/stream. Once streaming starts, every outcome
	// including failure is reported on the stream; HTTP status codes only
	// cover pre-stream validation.
	//
	// # Outputs
	//
	// SSE stream with data-only frames, one of two shapes per turn:
	//
	// Direct answer:
	//   - {"type":"token","content":"..."} per token, then {"done":true}
	//
	// Tool turn:
	//   - {"type":"thought","content":"..."}
	//   - {"type":"tool_call","tool_name":"...","tool_input":{...}}
	//   - {"type":"tool_output","content":"Observation: ..."} or
	//     {"type":"agent_action","action":"sign_out"}
	//   - {"type":"final","content":"..."} per confirmation token
	//   - {"done":true}
	//
	// HTTP Status (before streaming starts):
	//   - 400 Bad Request: Invalid request body or validation failure
	//   - 500 Internal Server Error: SSE setup failure
	HandleAgentStream(c *gin.Context)
}

// =============================================================================
// Struct Definition
// =============================================================================

// agentHandler implements AgentHandler for production use.
//
// # Thread Safety
//
// Thread-safe. All fields are read-only after construction.
type agentHandler struct {
	orchestrator *agent.Orchestrator
	tracer       trace.Tracer
}

// NewAgentHandler creates an AgentHandler.
//
// # Limitations
//
//   - Panics on nil orchestrator
func NewAgentHandler(orchestrator *agent.Orchestrator) AgentHandler {
	if orchestrator == nil {
		panic("NewAgentHandler: orchestrator must not be nil")
	}
	return &agentHandler{
		orchestrator: orchestrator,
		tracer:       otel.Tracer("skygen.handlers.agent"),
	}
}

// =============================================================================
// Handler Methods
// =============================================================================

// HandleAgentStream processes an agent chat request with SSE streaming.
//
// # Description
//
// The flow is:
//  1. Parse and validate request body (including the trusted user_id)
//  2. Set SSE headers and create writer
//  3. Start heartbeat goroutine
//  4. Run the agent turn; the orchestrator writes all frames
//  5. Record the outcome in metrics
//
// # Security References
//
//   - SEC-003: Message size limits enforced via validation
//   - SEC-005: Internal errors not exposed to client
func (h *agentHandler) HandleAgentStream(c *gin.Context) {
	startTime := time.Now()
	endpoint := observability.EndpointAgentStream

	ctx, span := h.tracer.Start(c.Request.Context(), "HandleAgentStream")
	defer span.End()

	// Track active stream (for metrics)
	if m := observability.DefaultMetrics; m != nil {
		m.StreamStarted(endpoint)
		defer m.StreamEnded(endpoint)
	}

	success := false
	defer func() {
		if m := observability.DefaultMetrics; m != nil {
			duration := time.Since(startTime).Seconds()
			m.RecordRequest(endpoint, success)
			m.RecordStreamDuration(endpoint, duration, success)
		}
	}()

	// Step 1: Parse and validate request body
	var req datatypes.AgentChatRequest
	if err := c.BindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request body")
		slog.Error("Failed to parse agent request", "error", err)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeValidation)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		slog.Error("Agent request validation failed", "error", err, "requestId", req.RequestID)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeValidation)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: validation failed"})
		return
	}
	req.EnsureDefaults()
	span.SetAttributes(
		attribute.String("request.id", req.RequestID),
		attribute.String("user.id", req.UserID),
		attribute.Int("request.message_count", len(req.Messages)),
	)

	// Step 2: Set SSE headers and create writer
	SetSSEHeaders(c.Writer)
	sseWriter, err := NewSSEWriter(c.Writer)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "SSE setup failed")
		slog.Error("Failed to create SSE writer", "error", err, "requestId", req.RequestID)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeInternal)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Streaming not supported"})
		return
	}

	// Step 3: Start heartbeat goroutine to prevent connection timeouts
	heartbeatDone := make(chan struct{})
	go runHeartbeat(ctx, sseWriter, endpoint, heartbeatDone)

	// Step 4: Run the agent turn. The orchestrator guarantees the stream
	// ends with exactly one done frame, whatever happens.
	turnErr := h.orchestrator.RunTurn(ctx, req.UserID, req.Messages, sseWriter)

	// Stop heartbeat
	close(heartbeatDone)

	// Step 5: Record the outcome
	if turnErr != nil {
		span.RecordError(turnErr)
		span.SetStatus(codes.Error, "agent turn failed")
		slog.Error("Agent turn failed",
			"error", turnErr,
			"requestId", req.RequestID,
			"userId", req.UserID,
		)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, agentErrorCode(turnErr))
			if errors.Is(turnErr, agent.ErrClientGone) {
				m.RecordClientDisconnect(endpoint)
			}
		}
		return
	}

	success = true
	span.SetStatus(codes.Ok, "agent turn completed")
}

// agentErrorCode maps orchestrator sentinels onto metric error codes.
func agentErrorCode(err error) observability.ErrorCode {
	switch {
	case errors.Is(err, agent.ErrClientGone):
		return observability.ErrorCodeClientDisconnect
	case errors.Is(err, agent.ErrUnknownTool):
		return observability.ErrorCodeUnknownTool
	case errors.Is(err, agent.ErrBadToolCall):
		return observability.ErrorCodeToolError
	case errors.Is(err, agent.ErrClassifyFailed), errors.Is(err, agent.ErrStreamFailed):
		return observability.ErrorCodeLLMError
	default:
		return observability.ErrorCodeInternal
	}
}
