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
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/Praveenkumar76/SkyGen-backend/services/skygen/datatypes"
)

// =============================================================================
// Interface Definition
// =============================================================================

// SSEWriter defines the contract for writing Server-Sent Events to HTTP
// responses.
//
// # Description
//
// SSEWriter abstracts SSE serialization and writing, enabling testability
// and separation from HTTP response mechanics. The wire format is data-only
// frames: every event is one JSON object on a single "data:" line followed
// by a blank line. There is no "event:" field; clients dispatch on the
// "type" key inside the JSON, and on "done" for the terminal frame.
//
// The typed Write* methods cover the full event vocabulary of the agent
// stream, which is what lets the agent orchestrator use an SSEWriter as its
// event sink.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. The token stream and the
// keepalive ticker write from different goroutines.
//
// # Limitations
//
//   - Must be used with an http.Flusher-compatible ResponseWriter
//
// # Assumptions
//
//   - Caller has set SSE headers via SetSSEHeaders before the first write
type SSEWriter interface {
	// WriteEvent serializes and writes a single frame, flushing immediately.
	WriteEvent(event datatypes.StreamEvent) error

	// WriteThought writes the agent's plan before a tool call.
	WriteThought(content string) error

	// WriteToolCall announces a tool invocation with its sanitized input.
	WriteToolCall(toolName string, toolInput map[string]any) error

	// WriteToolOutput writes a tool observation.
	WriteToolOutput(content string) error

	// WriteToken writes one incremental token of a direct answer.
	WriteToken(content string) error

	// WriteFinal writes one incremental token of a confirmation answer.
	WriteFinal(content string) error

	// WriteAgentAction instructs the client to perform a local action.
	WriteAgentAction(action string) error

	// WriteError writes a terminal error notice.
	//
	// # Limitations
	//
	//   - Caller must sanitize error messages (no internal details)
	//
	// # Security References
	//
	//   - SEC-005: Internal errors not exposed to client
	WriteError(content string) error

	// WriteDone writes the terminal {"done":true} frame.
	//
	// # Limitations
	//
	//   - Should only be called once per stream
	WriteDone() error

	// WriteKeepAlive sends an SSE comment line to prevent connection
	// timeouts.
	//
	// # Description
	//
	// Sends ": ping\n\n" to keep the TCP connection active during long
	// model or tool calls. Comments are ignored by SSE clients but reset
	// load balancer timeout counters (AWS ALB, Nginx default 60s). They
	// are not JSON frames, so the event vocabulary is untouched.
	WriteKeepAlive() error
}

// =============================================================================
// Struct Definition
// =============================================================================

// sseWriter implements SSEWriter for HTTP SSE responses.
//
// # Fields
//
//   - writer: Underlying http.ResponseWriter
//   - flusher: http.Flusher interface for immediate send
//   - mu: Mutex for thread-safe writes
//
// # Thread Safety
//
// Thread-safe via mutex.
//
// # Limitations
//
//   - Cannot be reused across requests
type sseWriter struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

// =============================================================================
// Constructor
// =============================================================================

// NewSSEWriter creates a new SSEWriter for the given ResponseWriter.
//
// # Inputs
//
//   - w: HTTP ResponseWriter. Must implement http.Flusher.
//
// # Outputs
//
//   - SSEWriter: Ready to write frames.
//   - error: Non-nil if the ResponseWriter doesn't support flushing.
//
// # Examples
//
//	SetSSEHeaders(w)
//	writer, err := NewSSEWriter(w)
//	if err != nil {
//	    http.Error(w, "Streaming not supported", http.StatusInternalServerError)
//	    return
//	}
//	writer.WriteToken("Hello")
//	writer.WriteDone()
func NewSSEWriter(w http.ResponseWriter) (SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter does not support http.Flusher")
	}

	return &sseWriter{
		writer:  w,
		flusher: flusher,
	}, nil
}

// =============================================================================
// Methods
// =============================================================================

// WriteEvent serializes the event and writes it as one data-only SSE frame.
func (w *sseWriter) WriteEvent(event datatypes.StreamEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if _, err := fmt.Fprintf(w.writer, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	w.flusher.Flush()
	return nil
}

func (w *sseWriter) WriteThought(content string) error {
	return w.WriteEvent(datatypes.NewThoughtEvent(content))
}

func (w *sseWriter) WriteToolCall(toolName string, toolInput map[string]any) error {
	return w.WriteEvent(datatypes.NewToolCallEvent(toolName, toolInput))
}

func (w *sseWriter) WriteToolOutput(content string) error {
	return w.WriteEvent(datatypes.NewToolOutputEvent(content))
}

func (w *sseWriter) WriteToken(content string) error {
	return w.WriteEvent(datatypes.NewTokenEvent(content))
}

func (w *sseWriter) WriteFinal(content string) error {
	return w.WriteEvent(datatypes.NewFinalEvent(content))
}

func (w *sseWriter) WriteAgentAction(action string) error {
	return w.WriteEvent(datatypes.NewAgentActionEvent(action))
}

func (w *sseWriter) WriteError(content string) error {
	return w.WriteEvent(datatypes.NewErrorEvent(content))
}

func (w *sseWriter) WriteDone() error {
	return w.WriteEvent(datatypes.NewDoneEvent())
}

// WriteKeepAlive sends a comment line to keep the connection alive.
func (w *sseWriter) WriteKeepAlive() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// SSE comment format: colon followed by text, then double newline
	if _, err := fmt.Fprintf(w.writer, ": ping\n\n"); err != nil {
		return fmt.Errorf("write keepalive: %w", err)
	}

	w.flusher.Flush()
	return nil
}

// =============================================================================
// Helper Functions
// =============================================================================

// SetSSEHeaders configures HTTP response headers for SSE streaming.
//
// # Description
//
// Sets the required headers for Server-Sent Events:
//   - Content-Type: text/event-stream
//   - Cache-Control: no-cache
//   - Connection: keep-alive
//   - X-Accel-Buffering: no (disables nginx buffering)
//
// Must be called before writing any response body.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// =============================================================================
// Compile-time Interface Check
// =============================================================================

var _ SSEWriter = (*sseWriter)(nil)
