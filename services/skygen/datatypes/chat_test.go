// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// ChatRequest Validation Tests
// =============================================================================

func validRequest() ChatRequest {
	return ChatRequest{
		RequestID: uuid.New().String(),
		Messages: []Message{
			{Role: "user", Content: "Hello"},
		},
	}
}

// TestChatRequest_Validate_Valid verifies a well-formed request passes.
func TestChatRequest_Validate_Valid(t *testing.T) {
	req := validRequest()

	assert.NoError(t, req.Validate())
}

// TestChatRequest_Validate_Rejections covers the rejection cases.
func TestChatRequest_Validate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ChatRequest)
	}{
		{"empty messages", func(r *ChatRequest) { r.Messages = nil }},
		{"bad request id", func(r *ChatRequest) { r.RequestID = "not-a-uuid" }},
		{"system role rejected", func(r *ChatRequest) { r.Messages[0].Role = "system" }},
		{"unknown role", func(r *ChatRequest) { r.Messages[0].Role = "robot" }},
		{"empty content", func(r *ChatRequest) { r.Messages[0].Content = "" }},
		{"oversized content", func(r *ChatRequest) {
			r.Messages[0].Content = strings.Repeat("a", MaxMessageContentBytes+1)
		}},
		{"too many messages", func(r *ChatRequest) {
			msgs := make([]Message, MaxMessagesPerRequest+1)
			for i := range msgs {
				msgs[i] = Message{Role: "user", Content: "x"}
			}
			r.Messages = msgs
		}},
		{"negative max_tokens", func(r *ChatRequest) { v := -1; r.MaxTokens = &v }},
		{"max_tokens over cap", func(r *ChatRequest) { v := 8193; r.MaxTokens = &v }},
		{"temperature over cap", func(r *ChatRequest) { v := float32(2.5); r.Temperature = &v }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)

			assert.Error(t, req.Validate())
		})
	}
}

// TestChatRequest_ContentAtLimit verifies exactly 32KB of content passes.
func TestChatRequest_ContentAtLimit(t *testing.T) {
	req := validRequest()
	req.Messages[0].Content = strings.Repeat("a", MaxMessageContentBytes)

	assert.NoError(t, req.Validate())
}

// TestChatRequest_EnsureDefaults verifies identifier generation.
func TestChatRequest_EnsureDefaults(t *testing.T) {
	req := ChatRequest{
		Messages: []Message{{Role: "user", Content: "Hello"}},
	}

	req.EnsureDefaults()

	_, err := uuid.Parse(req.RequestID)
	assert.NoError(t, err, "generated request id must be a UUID")
	assert.NotZero(t, req.Timestamp)
}

// TestChatRequest_EnsureDefaults_KeepsProvided verifies caller values win.
func TestChatRequest_EnsureDefaults_KeepsProvided(t *testing.T) {
	id := uuid.New().String()
	req := ChatRequest{RequestID: id, Timestamp: 42}

	req.EnsureDefaults()

	assert.Equal(t, id, req.RequestID)
	assert.Equal(t, int64(42), req.Timestamp)
}

// =============================================================================
// AgentChatRequest Validation Tests
// =============================================================================

// TestAgentChatRequest_Validate verifies the identity field is mandatory
// and bounded.
func TestAgentChatRequest_Validate(t *testing.T) {
	base := AgentChatRequest{
		Messages: []Message{{Role: "user", Content: "Hello"}},
		UserID:   "user-1",
	}
	assert.NoError(t, base.Validate())

	missing := base
	missing.UserID = ""
	assert.Error(t, missing.Validate(), "user_id is required")

	long := base
	long.UserID = strings.Repeat("x", MaxUserIDBytes+1)
	assert.Error(t, long.Validate(), "user_id is bounded")
}

// =============================================================================
// Stream Event Wire Shape Tests
// =============================================================================

// TestStreamEvent_WireShapes pins the frame shapes the client depends on.
func TestStreamEvent_WireShapes(t *testing.T) {
	tests := []struct {
		name  string
		event StreamEvent
		want  string
	}{
		{"token", NewTokenEvent("Hi"), `{"type":"token","content":"Hi"}`},
		{"final", NewFinalEvent("Done."), `{"type":"final","content":"Done."}`},
		{"thought", NewThoughtEvent("Plan."), `{"type":"thought","content":"Plan."}`},
		{"agent action", NewAgentActionEvent(ActionSignOut), `{"type":"agent_action","action":"sign_out"}`},
		{"error", NewErrorEvent("Failed."), `{"type":"error","content":"Failed."}`},
		{"done carries nothing else", NewDoneEvent(), `{"done":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.event)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

// TestStreamEvent_ToolCallShape verifies the tool_call frame carries the
// sanitized input map.
func TestStreamEvent_ToolCallShape(t *testing.T) {
	ev := NewToolCallEvent("get_user_profile", map[string]any{"user_id": "u-1"})

	got, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"tool_call","tool_name":"get_user_profile","tool_input":{"user_id":"u-1"}}`, string(got))
}
