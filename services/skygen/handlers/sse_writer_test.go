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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Praveenkumar76/SkyGen-backend/services/skygen/datatypes"
)

// nonFlushingWriter wraps a ResponseWriter to hide http.Flusher.
type nonFlushingWriter struct {
	http.ResponseWriter
}

// TestNewSSEWriter_RequiresFlusher verifies construction fails when the
// writer cannot flush.
func TestNewSSEWriter_RequiresFlusher(t *testing.T) {
	_, err := NewSSEWriter(nonFlushingWriter{httptest.NewRecorder()})

	assert.Error(t, err)
}

// TestSSEWriter_DataOnlyFraming verifies every frame is a single data line
// terminated by a blank line, with no event name line.
func TestSSEWriter_DataOnlyFraming(t *testing.T) {
	rec := httptest.NewRecorder()
	writer, err := NewSSEWriter(rec)
	require.NoError(t, err)

	require.NoError(t, writer.WriteToken("Hello"))
	require.NoError(t, writer.WriteDone())

	body := rec.Body.String()
	assert.Equal(t, "data: {\"type\":\"token\",\"content\":\"Hello\"}\n\ndata: {\"done\":true}\n\n", body)
	assert.NotContains(t, body, "event:", "frames carry no event name")
}

// TestSSEWriter_EventMethods verifies each typed write produces its frame.
func TestSSEWriter_EventMethods(t *testing.T) {
	rec := httptest.NewRecorder()
	writer, err := NewSSEWriter(rec)
	require.NoError(t, err)

	require.NoError(t, writer.WriteThought("Plan."))
	require.NoError(t, writer.WriteToolCall("get_user_profile", map[string]any{"user_id": "u-1"}))
	require.NoError(t, writer.WriteToolOutput("Observation: ok."))
	require.NoError(t, writer.WriteFinal("Done."))
	require.NoError(t, writer.WriteAgentAction(datatypes.ActionSignOut))
	require.NoError(t, writer.WriteError("Failed."))
	require.NoError(t, writer.WriteDone())

	frames := parseSSEFrames(t, rec.Body.String())
	require.Len(t, frames, 7)
	assert.Equal(t, datatypes.EventTypeThought, frames[0].Type)
	assert.Equal(t, datatypes.EventTypeToolCall, frames[1].Type)
	assert.Equal(t, "u-1", frames[1].ToolInput["user_id"])
	assert.Equal(t, datatypes.EventTypeToolOutput, frames[2].Type)
	assert.Equal(t, datatypes.EventTypeFinal, frames[3].Type)
	assert.Equal(t, datatypes.ActionSignOut, frames[4].Action)
	assert.Equal(t, datatypes.EventTypeError, frames[5].Type)
	assert.True(t, frames[6].Done)
}

// TestSSEWriter_KeepAliveIsComment verifies pings are SSE comments that a
// JSON frame parser ignores.
func TestSSEWriter_KeepAliveIsComment(t *testing.T) {
	rec := httptest.NewRecorder()
	writer, err := NewSSEWriter(rec)
	require.NoError(t, err)

	require.NoError(t, writer.WriteKeepAlive())
	require.NoError(t, writer.WriteToken("x"))

	assert.Contains(t, rec.Body.String(), ": ping\n\n")

	frames := parseSSEFrames(t, rec.Body.String())
	require.Len(t, frames, 1, "the ping must not parse as a frame")
	assert.Equal(t, datatypes.EventTypeToken, frames[0].Type)
}

// TestSetSSEHeaders verifies the canonical streaming headers.
func TestSetSSEHeaders(t *testing.T) {
	rec := httptest.NewRecorder()

	SetSSEHeaders(rec)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
}
