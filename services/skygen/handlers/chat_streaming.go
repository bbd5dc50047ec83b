// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers contains the HTTP handlers for the skygen service: the
// direct chat endpoints in this file, the agent stream in
// agent_streaming.go, and the SSE writer they share in sse_writer.go.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Praveenkumar76/SkyGen-backend/services/llm"
	"github.com/Praveenkumar76/SkyGen-backend/services/skygen/datatypes"
	"github.com/Praveenkumar76/SkyGen-backend/services/skygen/observability"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// heartbeatInterval is the interval for sending keepalive pings.
	// Set to 15s to stay well under typical LB timeouts (60s for ALB/Nginx).
	heartbeatInterval = 15 * time.Second
)

// StreamCallback is called for each token or event during streaming.
type StreamCallback = llm.StreamCallback

// =============================================================================
// Interface Definition
// =============================================================================

// ChatHandler defines the contract for the direct (non-agent) chat
// endpoints.
//
// # Description
//
// ChatHandler abstracts direct chat handling, enabling different
// implementations and facilitating testing via mocks. Requests are
// forwarded to the model backend verbatim; there is no classification and
// no tool execution on these endpoints.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use by multiple goroutines.
// HTTP handlers are called concurrently by the Gin framework.
//
// # Assumptions
//
//   - All dependencies are properly initialized before handler use
//   - LLM client implements ChatStream method
type ChatHandler interface {
	// HandleChat processes a non-streaming chat request.
	//
	// # Description
	//
	// Handles POST /v1/chat. Returns the complete model answer as
	// {"text": "..."} once generation finishes.
	//
	// # Outputs
	//
	// HTTP Status:
	//   - 200 OK: {"request_id": "...", "text": "...", "processing_time_ms": ...}
	//   - 400 Bad Request: Invalid request body or validation failure
	//   - 502 Bad Gateway: Model backend failure
	HandleChat(c *gin.Context)

	// HandleChatStream processes a streaming chat request with SSE.
	//
	// # Description
	//
	// Handles POST /v1/chat/stream. Streams tokens as they are generated by
	// the model via Server-Sent Events.
	//
	// # Outputs
	//
	// SSE stream with data-only frames:
	//   - {"type":"token","content":"..."} per generated token
	//   - {"type":"error","content":"..."} on failure
	//   - {"done":true} terminal frame
	//
	// HTTP Status (before streaming starts):
	//   - 400 Bad Request: Invalid request body or validation failure
	//   - 500 Internal Server Error: SSE setup failure
	HandleChatStream(c *gin.Context)
}

// =============================================================================
// Struct Definition
// =============================================================================

// chatHandler implements ChatHandler for production use.
//
// # Fields
//
//   - llmClient: Model backend client with streaming support
//   - modelTimeout: Bound on each model call
//   - tracer: OpenTelemetry tracer for distributed tracing
//
// # Thread Safety
//
// Thread-safe. All fields are read-only after construction.
type chatHandler struct {
	llmClient    llm.LLMClient
	modelTimeout time.Duration
	tracer       trace.Tracer
}

// =============================================================================
// Constructor
// =============================================================================

// NewChatHandler creates a ChatHandler with the provided dependencies.
//
// # Inputs
//
//   - llmClient: Model backend client. Must not be nil.
//   - modelTimeout: Bound on each model call. Zero means 60s.
//
// # Examples
//
//	handler := handlers.NewChatHandler(llmClient, 60*time.Second)
//	router.POST("/v1/chat/stream", handler.HandleChatStream)
//
// # Limitations
//
//   - Panics on nil llmClient
func NewChatHandler(llmClient llm.LLMClient, modelTimeout time.Duration) ChatHandler {
	if llmClient == nil {
		panic("NewChatHandler: llmClient must not be nil")
	}
	if modelTimeout <= 0 {
		modelTimeout = 60 * time.Second
	}
	return &chatHandler{
		llmClient:    llmClient,
		modelTimeout: modelTimeout,
		tracer:       otel.Tracer("skygen.handlers.chat"),
	}
}

// =============================================================================
// Handler Methods
// =============================================================================

// HandleChat processes a non-streaming chat request.
//
// # Description
//
// The flow is:
//  1. Parse and validate request body
//  2. Forward messages to the model backend
//  3. Return {"text": ...}
//
// # Security References
//
//   - SEC-003: Message size limits enforced via validation
//   - SEC-005: Internal errors not exposed to client
func (h *chatHandler) HandleChat(c *gin.Context) {
	startTime := time.Now()
	endpoint := observability.EndpointChat

	ctx, span := h.tracer.Start(c.Request.Context(), "HandleChat")
	defer span.End()

	success := false
	defer func() {
		if m := observability.DefaultMetrics; m != nil {
			m.RecordRequest(endpoint, success)
		}
	}()

	// Step 1: Parse and validate request body
	req, ok := h.bindChatRequest(c, span, endpoint)
	if !ok {
		return
	}

	// Step 2: Forward to the model backend
	callCtx, cancel := context.WithTimeout(ctx, h.modelTimeout)
	defer cancel()
	text, err := h.llmClient.Chat(callCtx, req.Messages, requestParams(req))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "model call failed")
		slog.Error("Chat generation failed", "error", err, "requestId", req.RequestID)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeLLMError)
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "generation failed"})
		return
	}

	success = true
	span.SetStatus(codes.Ok, "chat completed")
	c.JSON(http.StatusOK, datatypes.ChatResponse{
		RequestID:        req.RequestID,
		Text:             text,
		ProcessingTimeMs: time.Since(startTime).Milliseconds(),
	})
}

// HandleChatStream processes a streaming chat request with SSE.
//
// # Description
//
// The flow is:
//  1. Parse and validate request body
//  2. Set SSE headers and create writer
//  3. Start heartbeat goroutine
//  4. Stream tokens from the model backend
//  5. Emit the done frame
//
// # Examples
//
// Request:
//
//	POST /v1/chat/stream
//	Accept: text/event-stream
//	{"messages": [{"role": "user", "content": "Hello"}]}
//
// Response (SSE stream):
//
//	data: {"type":"token","content":"Hello"}
//
//	data: {"type":"token","content":" there"}
//
//	data: {"done":true}
//
// # Limitations
//
//   - Errors during streaming are sent as frames, not HTTP errors
//
// # Security References
//
//   - SEC-003: Message size limits enforced via validation
//   - SEC-005: Internal errors not exposed to client
func (h *chatHandler) HandleChatStream(c *gin.Context) {
	startTime := time.Now()
	endpoint := observability.EndpointChatStream

	ctx, span := h.tracer.Start(c.Request.Context(), "HandleChatStream")
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
	req, ok := h.bindChatRequest(c, span, endpoint)
	if !ok {
		return
	}

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

	// Step 4: Stream tokens from the model backend
	var tokenCount int32
	firstTokenTime := time.Time{}
	streamErr := streamTokens(ctx, h.llmClient, h.modelTimeout, req.Messages,
		requestParams(req), sseWriter.WriteToken, &tokenCount, &firstTokenTime)

	// Stop heartbeat
	close(heartbeatDone)

	if streamErr != nil {
		span.RecordError(streamErr)
		span.SetStatus(codes.Error, "model streaming failed")
		span.SetAttributes(attribute.Int("stream.token_count", int(tokenCount)))
		slog.Error("Model streaming failed",
			"error", streamErr,
			"requestId", req.RequestID,
			"tokenCount", tokenCount,
		)
		recordStreamError(endpoint, ctx, streamErr)
		if ctx.Err() == nil {
			_ = sseWriter.WriteError("The model stream failed.")
			_ = sseWriter.WriteDone()
		}
		return
	}

	// Record time to first token
	if !firstTokenTime.IsZero() {
		ttft := firstTokenTime.Sub(startTime).Seconds()
		span.SetAttributes(attribute.Float64("stream.time_to_first_token_seconds", ttft))
		if m := observability.DefaultMetrics; m != nil {
			m.RecordTimeToFirstToken(endpoint, ttft)
		}
	}
	span.SetAttributes(attribute.Int("stream.token_count", int(tokenCount)))

	// Step 5: Emit the done frame
	if err := sseWriter.WriteDone(); err != nil {
		span.RecordError(err)
		slog.Error("Failed to write done frame", "error", err, "requestId", req.RequestID)
		return
	}

	success = true
	span.SetStatus(codes.Ok, "stream completed successfully")
}

// =============================================================================
// Helpers
// =============================================================================

// bindChatRequest parses and validates the request body, emitting the 400
// response itself on failure.
func (h *chatHandler) bindChatRequest(c *gin.Context, span trace.Span,
	endpoint observability.Endpoint) (datatypes.ChatRequest, bool) {

	var req datatypes.ChatRequest
	if err := c.BindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request body")
		slog.Error("Failed to parse chat request", "error", err)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeValidation)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return req, false
	}
	if err := req.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		slog.Error("Chat request validation failed", "error", err, "requestId", req.RequestID)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeValidation)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: validation failed"})
		return req, false
	}
	req.EnsureDefaults()
	span.SetAttributes(
		attribute.String("request.id", req.RequestID),
		attribute.Int("request.message_count", len(req.Messages)),
	)
	return req, true
}

// requestParams maps the optional request knobs onto generation params.
func requestParams(req datatypes.ChatRequest) llm.GenerationParams {
	return llm.GenerationParams{
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}
}

// streamTokens runs one streaming model call, relaying each token through
// emit and tracking first-token latency.
//
// # Thread Safety
//
//   - tokenCount is updated atomically; firstTokenTime is only touched from
//     the callback goroutine
func streamTokens(ctx context.Context, client llm.LLMClient, timeout time.Duration,
	messages []datatypes.Message, params llm.GenerationParams,
	emit func(string) error, tokenCount *int32, firstTokenTime *time.Time) error {

	streamCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return client.ChatStream(streamCtx, messages, params, func(ev llm.StreamEvent) error {
		// Client disconnect cancels the request context.
		if ctx.Err() != nil {
			return context.Canceled
		}
		if ev.Type != llm.StreamEventToken {
			return nil
		}
		if atomic.AddInt32(tokenCount, 1) == 1 {
			*firstTokenTime = time.Now()
		}
		return emit(ev.Token)
	})
}

// recordStreamError categorizes a streaming failure for metrics.
func recordStreamError(endpoint observability.Endpoint, ctx context.Context, streamErr error) {
	m := observability.DefaultMetrics
	if m == nil {
		return
	}
	switch {
	case errors.Is(streamErr, context.Canceled) || ctx.Err() != nil:
		m.RecordError(endpoint, observability.ErrorCodeClientDisconnect)
		m.RecordClientDisconnect(endpoint)
	case errors.Is(streamErr, context.DeadlineExceeded):
		m.RecordError(endpoint, observability.ErrorCodeTimeout)
	default:
		m.RecordError(endpoint, observability.ErrorCodeLLMError)
	}
}

// runHeartbeat sends keepalive pings until done is closed or ctx ends.
//
// # Examples
//
//	heartbeatDone := make(chan struct{})
//	go runHeartbeat(ctx, sseWriter, endpoint, heartbeatDone)
//	// ... stream ...
//	close(heartbeatDone)
func runHeartbeat(ctx context.Context, writer SSEWriter,
	endpoint observability.Endpoint, done <-chan struct{}) {

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := writer.WriteKeepAlive(); err != nil {
				slog.Debug("Keepalive write failed, stopping heartbeat", "error", err)
				return
			}
			if m := observability.DefaultMetrics; m != nil {
				m.RecordKeepAlive(endpoint)
			}
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}
