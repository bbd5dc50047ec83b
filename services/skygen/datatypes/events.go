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

// =============================================================================
// SSE Event Vocabulary
// =============================================================================

// Event type values carried in the "type" field of a StreamEvent.
//
// The client renders each kind differently, so the vocabulary is part of the
// wire contract: new kinds may be added, but existing ones never change shape.
const (
	// EventTypeThought is the agent's one-sentence plan before a tool call.
	EventTypeThought = "thought"

	// EventTypeToolCall announces which tool is about to run and with what
	// arguments (post identity-override, so the client sees the real input).
	EventTypeToolCall = "tool_call"

	// EventTypeToolOutput carries the observation string a tool produced.
	EventTypeToolOutput = "tool_output"

	// EventTypeToken is an incremental model token in a direct answer.
	EventTypeToken = "token"

	// EventTypeFinal is an incremental token of the post-tool confirmation
	// answer. Same payload shape as token; the distinct kind lets the client
	// render confirmation text separately from direct-answer text.
	EventTypeFinal = "final"

	// EventTypeAgentAction instructs the client to perform a local action,
	// currently only "sign_out".
	EventTypeAgentAction = "agent_action"

	// EventTypeError is a terminal human-readable failure notice.
	EventTypeError = "error"
)

// ActionSignOut is the only defined agent_action value.
const ActionSignOut = "sign_out"

// StreamEvent is a single SSE frame payload.
//
// # Description
//
// Every frame on the stream is one JSON object on a single "data:" line.
// StreamEvent is the union of all frame shapes: exactly one "kind" of frame
// is populated at a time. The terminal frame is {"done": true} with every
// other field zero, which is why all fields carry omitempty.
//
// # Examples
//
//	{"type":"token","content":"Hello"}
//	{"type":"tool_call","tool_name":"get_user_profile","tool_input":{"user_id":"u-1"}}
//	{"type":"agent_action","action":"sign_out"}
//	{"done":true}
//
// # Thread Safety
//
//   - StreamEvent values are immutable after construction
type StreamEvent struct {
	Type      string         `json:"type,omitempty"`
	Content   string         `json:"content,omitempty"`
	ToolName  string         `json:"tool_name,omitempty"`
	ToolInput map[string]any `json:"tool_input,omitempty"`
	Action    string         `json:"action,omitempty"`
	Done      bool           `json:"done,omitempty"`
}

// NewThoughtEvent creates a thought frame.
func NewThoughtEvent(content string) StreamEvent {
	return StreamEvent{Type: EventTypeThought, Content: content}
}

// NewToolCallEvent creates a tool_call frame.
func NewToolCallEvent(toolName string, toolInput map[string]any) StreamEvent {
	return StreamEvent{Type: EventTypeToolCall, ToolName: toolName, ToolInput: toolInput}
}

// NewToolOutputEvent creates a tool_output frame.
func NewToolOutputEvent(content string) StreamEvent {
	return StreamEvent{Type: EventTypeToolOutput, Content: content}
}

// NewTokenEvent creates a token frame.
func NewTokenEvent(content string) StreamEvent {
	return StreamEvent{Type: EventTypeToken, Content: content}
}

// NewFinalEvent creates a final (confirmation token) frame.
func NewFinalEvent(content string) StreamEvent {
	return StreamEvent{Type: EventTypeFinal, Content: content}
}

// NewAgentActionEvent creates an agent_action frame.
func NewAgentActionEvent(action string) StreamEvent {
	return StreamEvent{Type: EventTypeAgentAction, Action: action}
}

// NewErrorEvent creates an error frame.
func NewErrorEvent(content string) StreamEvent {
	return StreamEvent{Type: EventTypeError, Content: content}
}

// NewDoneEvent creates the terminal frame.
func NewDoneEvent() StreamEvent {
	return StreamEvent{Done: true}
}
