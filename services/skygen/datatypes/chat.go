// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the SkyGen service.
//
// This file contains request types for the chat and agent endpoints.
// For the SSE event wire types, see events.go.
package datatypes

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// =============================================================================
// Constants for Security Compliance
// =============================================================================

const (
	// MaxMessageContentBytes is the maximum size of a single message content.
	// Per SEC-003: Unbounded message input mitigation.
	MaxMessageContentBytes = 32 * 1024 // 32KB

	// MaxMessagesPerRequest is the maximum number of messages in a request.
	// Per SEC-004: Unbounded message history mitigation.
	MaxMessagesPerRequest = 100

	// MaxUserIDBytes is the maximum length of a caller identity string.
	MaxUserIDBytes = 128
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// chatValidate is the validator instance for chat datatypes.
// Initialized in init() with custom validators.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()

	// Register custom validator for message content size (SEC-003)
	_ = chatValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes validates that a string field does not exceed MaxMessageContentBytes.
//
// # Description
//
// Custom validator to enforce SEC-003 message size limits. Checks byte length
// (not rune count) to prevent memory exhaustion attacks with large payloads.
//
// # Inputs
//
//   - fl: Validator field level containing the string to validate
//
// # Outputs
//
//   - bool: true if content <= 32KB, false otherwise
func validateMaxBytes(fl validator.FieldLevel) bool {
	content := fl.Field().String()
	return len(content) <= MaxMessageContentBytes
}

// =============================================================================
// Message Types
// =============================================================================

// Message is a single conversation turn in the caller-supplied history.
//
// # Description
//
// Messages are immutable once received and their ordering is preserved
// verbatim when forwarded to the model backend. Only "user" and "assistant"
// roles are accepted from clients; the system instruction is composed
// server-side and never accepted over the wire.
//
// # Fields
//
//   - Role: "user" or "assistant"
//   - Content: Message text, limited to 32KB (SEC-003)
type Message struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required,maxbytes"`
}

// =============================================================================
// Chat Request Types
// =============================================================================

// ChatRequest represents a direct streaming chat request body.
//
// # Description
//
// ChatRequest carries the conversation history for the direct (non-agent)
// streaming endpoint POST /v1/chat/stream. The optional generation knobs
// mirror what the local llama server accepts; the hosted backend ignores
// the ones it does not support.
//
// # Fields
//
//   - RequestID: Optional. UUID v4 identifier for tracing; generated
//     server-side by EnsureDefaults when absent.
//   - Timestamp: Optional. Unix timestamp in milliseconds (UTC); generated
//     server-side by EnsureDefaults when absent.
//   - Messages: Required. Conversation history with 1-100 messages.
//     Content is limited to 32KB per message (SEC-003 compliance).
//   - MaxTokens: Optional. Upper bound on generated tokens.
//   - Temperature: Optional. Sampling temperature.
//   - TopP: Optional. Nucleus sampling parameter.
//
// # Validation
//
// Uses go-playground/validator:
//   - RequestID: must be valid UUID v4 when present
//   - Messages: required, 1-100 elements, each element validated
//   - Messages[].Content: max 32768 bytes (32KB) per SEC-003
//
// # Limitations
//
//   - Maximum 100 messages per request (history truncation may be needed)
//
// # Assumptions
//
//   - Messages are in chronological order
type ChatRequest struct {
	RequestID   string    `json:"request_id" validate:"omitempty,uuid4"`
	Timestamp   int64     `json:"timestamp" validate:"gte=0"`
	Messages    []Message `json:"messages" validate:"required,min=1,max=100,dive"`
	MaxTokens   *int      `json:"max_tokens,omitempty" validate:"omitempty,gt=0,lte=8192"`
	Temperature *float32  `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	TopP        *float32  `json:"top_p,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// Validate validates the ChatRequest fields.
//
// # Description
//
// Performs validation using go-playground/validator tags and custom
// validators. This method should be called after binding the JSON request.
//
// # Outputs
//
//   - error: Non-nil if validation failed, with details about which field
func (r *ChatRequest) Validate() error {
	return chatValidate.Struct(r)
}

// EnsureDefaults populates default values for optional fields.
//
// # Description
//
// Generates RequestID and Timestamp if not provided by the client.
// This ensures all requests have proper identifiers for tracing.
func (r *ChatRequest) EnsureDefaults() {
	if r.RequestID == "" {
		r.RequestID = generateUUID()
	}
	if r.Timestamp == 0 {
		r.Timestamp = time.Now().UnixMilli()
	}
}

// =============================================================================
// Agent Request Types
// =============================================================================

// AgentChatRequest represents an agent-mode chat request body.
//
// # Description
//
// AgentChatRequest is the payload for POST /v1/agent/stream. In addition to
// the conversation history it carries the authenticated caller identity.
//
// # Trust Boundary
//
// UserID is trust-boundary data: it MUST originate from the caller's
// session/integration, never from model output. The dispatcher overwrites
// any model-supplied identity field with this value before a tool runs.
//
// # Fields
//
//   - RequestID: Optional. UUID v4 identifier for tracing.
//   - Timestamp: Optional. Unix timestamp in milliseconds (UTC).
//   - Messages: Required. Conversation history with 1-100 messages.
//   - UserID: Required. Opaque authenticated caller identifier.
type AgentChatRequest struct {
	RequestID string    `json:"request_id" validate:"omitempty,uuid4"`
	Timestamp int64     `json:"timestamp" validate:"gte=0"`
	Messages  []Message `json:"messages" validate:"required,min=1,max=100,dive"`
	UserID    string    `json:"user_id" validate:"required,min=1,max=128"`
}

// Validate validates the AgentChatRequest fields.
func (r *AgentChatRequest) Validate() error {
	return chatValidate.Struct(r)
}

// EnsureDefaults populates default values for optional fields.
func (r *AgentChatRequest) EnsureDefaults() {
	if r.RequestID == "" {
		r.RequestID = generateUUID()
	}
	if r.Timestamp == 0 {
		r.Timestamp = time.Now().UnixMilli()
	}
}

// =============================================================================
// Chat Response Types
// =============================================================================

// ChatResponse represents the response from the non-streaming chat endpoint.
//
// # Description
//
// Contains the model's generated response for POST /v1/chat. Mirrors the
// {"text": ...} shape the local llama server returns.
type ChatResponse struct {
	RequestID        string `json:"request_id,omitempty"`
	Text             string `json:"text"`
	ProcessingTimeMs int64  `json:"processing_time_ms,omitempty"`
}

// generateUUID returns a new UUID v4 string.
func generateUUID() string {
	return uuid.New().String()
}
