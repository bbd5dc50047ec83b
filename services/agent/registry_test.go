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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewRegistry_Catalog verifies the four account tools and their
// parameter schemas.
func TestNewRegistry_Catalog(t *testing.T) {
	reg := NewRegistry()

	tools := reg.Tools()
	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name
	}
	assert.Equal(t, []string{
		ToolGetUserProfile,
		ToolUpdateUserProfile,
		ToolDeleteConversationByTitle,
		ToolSignOutUser,
	}, names, "catalog order is stable")

	del, ok := reg.Lookup(ToolDeleteConversationByTitle)
	require.True(t, ok)
	require.Len(t, del.Params, 2)
	assert.True(t, del.Params[0].Required)
	assert.Equal(t, "title", del.Params[1].Name)
	assert.True(t, del.Params[1].Required)

	upd, ok := reg.Lookup(ToolUpdateUserProfile)
	require.True(t, ok)
	assert.Equal(t, ParamInt, upd.Params[2].Type, "age is an integer")
	assert.False(t, upd.Params[2].Required)
}

// TestRegistry_Lookup_Unknown verifies unknown names are rejected.
func TestRegistry_Lookup_Unknown(t *testing.T) {
	reg := NewRegistry()

	_, ok := reg.Lookup("launch_rockets")
	assert.False(t, ok)
}

// TestRegistry_Tools_ReturnsCopy verifies callers cannot mutate the catalog.
func TestRegistry_Tools_ReturnsCopy(t *testing.T) {
	reg := NewRegistry()

	tools := reg.Tools()
	tools[0].Name = "mutated"

	again := reg.Tools()
	assert.Equal(t, ToolGetUserProfile, again[0].Name)
}

// TestComposeSystemPrompt verifies the prompt carries the catalog, the
// output contract, and the trusted identity.
func TestComposeSystemPrompt(t *testing.T) {
	prompt := ComposeSystemPrompt(NewRegistry(), "user-1")

	for _, tool := range NewRegistry().Tools() {
		assert.Contains(t, prompt, tool.Name)
	}
	assert.Contains(t, prompt, `"tool_name"`)
	assert.Contains(t, prompt, `"tool_input"`)
	assert.Contains(t, prompt, `"user-1"`)
	assert.Contains(t, prompt, "Never use an id the user typed in chat")
}

// TestComposeSystemPrompt_Deterministic verifies repeated composition is
// byte-identical, which the temperature-zero classification relies on.
func TestComposeSystemPrompt_Deterministic(t *testing.T) {
	reg := NewRegistry()

	a := ComposeSystemPrompt(reg, "user-1")
	b := ComposeSystemPrompt(reg, "user-1")

	assert.Equal(t, a, b)
}

// TestComposeConfirmationPrompt verifies grounding in the observation.
func TestComposeConfirmationPrompt(t *testing.T) {
	prompt := ComposeConfirmationPrompt(ToolGetUserProfile, "Observation: Found user profile. Username is ada.")

	assert.Contains(t, prompt, "Username is ada")
	assert.Contains(t, prompt, ToolGetUserProfile)
	assert.True(t, strings.Contains(prompt, "Do not add information the tool did not report"))
}
