// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package agent implements the account agent turn: tool registry, prompt
// composition, response classification, tool dispatch, and the streaming
// turn orchestrator.
package agent

// =============================================================================
// Tool Registry
// =============================================================================

// ParamType is the wire type of a tool parameter.
type ParamType string

const (
	ParamString ParamType = "string"
	ParamInt    ParamType = "integer"
)

// ToolParam describes one parameter of a tool.
type ToolParam struct {
	Name        string
	Type        ParamType
	Required    bool
	Description string
}

// ToolDescriptor describes one callable tool: its stable name, the
// human-readable description the prompt composer embeds, and its
// parameter schema.
type ToolDescriptor struct {
	Name        string
	Description string
	Params      []ToolParam
}

// Tool names. These are wire-stable: they appear in model output and in
// tool_call events, so renaming one is a breaking change.
const (
	ToolGetUserProfile            = "get_user_profile"
	ToolUpdateUserProfile         = "update_user_profile"
	ToolDeleteConversationByTitle = "delete_conversation_by_title"
	ToolSignOutUser               = "sign_out_user"
)

// Registry is the fixed catalog of tools available to the agent.
//
// # Description
//
// The catalog is assembled once at startup and never mutated afterwards,
// which is what makes it safe to share across request goroutines without
// locking. Tools() preserves registration order so the composed prompt is
// deterministic.
//
// # Thread Safety
//
//   - Read-only after NewRegistry returns; safe for concurrent use
type Registry struct {
	tools  []ToolDescriptor
	byName map[string]ToolDescriptor
}

// NewRegistry builds the registry with the four account tools.
func NewRegistry() *Registry {
	tools := []ToolDescriptor{
		{
			Name: ToolGetUserProfile,
			Description: "Fetches the profile information for a given user ID from the database. " +
				"Use this to find a user's name, email, or other details.",
			Params: []ToolParam{
				{Name: "user_id", Type: ParamString, Required: true, Description: "The ID of the user whose profile to fetch."},
			},
		},
		{
			Name: ToolUpdateUserProfile,
			Description: "Updates a user's profile information. " +
				"Can update full_name, age, address, or about section.",
			Params: []ToolParam{
				{Name: "user_id", Type: ParamString, Required: true, Description: "The ID of the user to update."},
				{Name: "full_name", Type: ParamString, Required: false, Description: "The user's new full name."},
				{Name: "age", Type: ParamInt, Required: false, Description: "The user's new age."},
				{Name: "address", Type: ParamString, Required: false, Description: "The user's new address."},
				{Name: "about", Type: ParamString, Required: false, Description: "The user's new about section."},
			},
		},
		{
			Name:        ToolDeleteConversationByTitle,
			Description: "Deletes a user's entire chat conversation based on its exact title.",
			Params: []ToolParam{
				{Name: "user_id", Type: ParamString, Required: true, Description: "The ID of the user who owns the conversation."},
				{Name: "title", Type: ParamString, Required: true, Description: "The exact title of the conversation to delete."},
			},
		},
		{
			Name: ToolSignOutUser,
			Description: "Signs out a user. " +
				"This action informs the frontend to log the user out.",
			Params: []ToolParam{
				{Name: "user_id", Type: ParamString, Required: true, Description: "The ID of the user to sign out."},
			},
		},
	}

	byName := make(map[string]ToolDescriptor, len(tools))
	for _, t := range tools {
		byName[t.Name] = t
	}
	return &Registry{tools: tools, byName: byName}
}

// Lookup returns the descriptor for name, or false when no such tool exists.
func (r *Registry) Lookup(name string) (ToolDescriptor, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Tools returns the descriptors in registration order.
func (r *Registry) Tools() []ToolDescriptor {
	out := make([]ToolDescriptor, len(r.tools))
	copy(out, r.tools)
	return out
}
