// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestClassify_ToolCall verifies that a bare JSON object with both required
// keys is classified as a tool call.
func TestClassify_ToolCall(t *testing.T) {
	raw := `{"thought": "Fetching the profile.", "tool_name": "get_user_profile", "tool_input": {"user_id": "abc"}}`

	cls := Classify(raw)

	require.True(t, cls.IsToolCall)
	assert.Equal(t, "Fetching the profile.", cls.Thought)
	assert.Equal(t, ToolGetUserProfile, cls.ToolName)
	assert.Equal(t, map[string]any{"user_id": "abc"}, cls.ToolInput)
}

// TestClassify_ToolCallWithWhitespace verifies that surrounding whitespace
// does not demote a tool call.
func TestClassify_ToolCallWithWhitespace(t *testing.T) {
	raw := "\n  {\"tool_name\": \"sign_out_user\", \"tool_input\": {}}  \n"

	cls := Classify(raw)

	require.True(t, cls.IsToolCall)
	assert.Equal(t, ToolSignOutUser, cls.ToolName)
	assert.Empty(t, cls.Thought, "thought is optional")
}

// TestClassify_DirectAnswers verifies that everything short of a bare,
// complete tool-call object is treated as a direct conversational answer.
func TestClassify_DirectAnswers(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"plain text", "The capital of France is Paris."},
		{"empty response", ""},
		{"whitespace only", "   \n  "},
		{"malformed json", `{"tool_name": "get_user_profile", "tool_input":`},
		{"missing tool_input", `{"tool_name": "get_user_profile"}`},
		{"missing tool_name", `{"tool_input": {}}`},
		{"tool_name not a string", `{"tool_name": 42, "tool_input": {}}`},
		{"tool_input not an object", `{"tool_name": "get_user_profile", "tool_input": "abc"}`},
		{"trailing prose after object", `{"tool_name": "get_user_profile", "tool_input": {}} Let me run that.`},
		{"markdown fenced json", "```json\n{\"tool_name\": \"get_user_profile\", \"tool_input\": {}}\n```"},
		{"json array", `[{"tool_name": "get_user_profile", "tool_input": {}}]`},
		{"unrelated json object", `{"answer": "Paris"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cls := Classify(tt.raw)

			assert.False(t, cls.IsToolCall)
			assert.Empty(t, cls.ToolName)
			assert.Nil(t, cls.ToolInput)
		})
	}
}

// TestClassify_MalformedThoughtKept verifies that a non-string thought does
// not demote an otherwise valid tool call.
func TestClassify_MalformedThoughtKept(t *testing.T) {
	raw := `{"thought": 7, "tool_name": "get_user_profile", "tool_input": {}}`

	cls := Classify(raw)

	require.True(t, cls.IsToolCall)
	assert.Empty(t, cls.Thought)
	assert.Equal(t, ToolGetUserProfile, cls.ToolName)
}

// TestClassify_UnknownToolStillClassified verifies that classification does
// not validate the tool name; that is the dispatcher's job.
func TestClassify_UnknownToolStillClassified(t *testing.T) {
	raw := `{"tool_name": "launch_rockets", "tool_input": {}}`

	cls := Classify(raw)

	assert.True(t, cls.IsToolCall)
	assert.Equal(t, "launch_rockets", cls.ToolName)
}
