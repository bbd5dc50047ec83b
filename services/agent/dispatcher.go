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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Praveenkumar76/SkyGen-backend/services/accountstore"
)

// =============================================================================
// Tool Results
// =============================================================================

// ToolResult is the closed set of tool execution outcomes. Exactly one
// concrete type is produced per dispatch; callers must switch over all four.
type ToolResult interface {
	toolResult()
}

// SignOut instructs the client to end the session. Produced only by
// sign_out_user. No account state is touched.
type SignOut struct{}

// Observation is a human-readable tool outcome, streamed to the client and
// used as grounding for the confirmation answer.
type Observation struct {
	Text string
}

// NotFound means the requested tool name is not in the registry. Nothing
// was executed.
type NotFound struct {
	ToolName string
}

// DispatchError means parameter extraction failed before the tool ran.
// Reason is safe to show to the client. Nothing was executed.
type DispatchError struct {
	ToolName string
	Reason   string
}

func (SignOut) toolResult()       {}
func (Observation) toolResult()   {}
func (NotFound) toolResult()      {}
func (DispatchError) toolResult() {}

// =============================================================================
// Identity Override
// =============================================================================

// SanitizedInput returns a copy of input with user_id forced to the trusted
// caller identity.
//
// The override is unconditional: whatever the model put in user_id, or
// whether it put anything at all, is discarded. This is the trust boundary
// between model output and account data.
func SanitizedInput(trustedUserID string, input map[string]any) map[string]any {
	out := make(map[string]any, len(input)+1)
	for k, v := range input {
		out[k] = v
	}
	out["user_id"] = trustedUserID
	return out
}

// =============================================================================
// Dispatcher
// =============================================================================

// Dispatcher executes one tool call against the account store.
//
// # Description
//
// Dispatch is an exhaustive switch over the registered tool names; there is
// no reflection and no dynamic lookup of handlers. Parameter extraction is
// typed and happens before any store call, so a DispatchError guarantees no
// side effect occurred. Each store call runs under its own bounded timeout.
//
// # Thread Safety
//
//   - Safe for concurrent use; all state is the shared store client
type Dispatcher struct {
	store   accountstore.Store
	timeout time.Duration
}

// NewDispatcher creates a Dispatcher.
//
// Panics if store is nil. timeout bounds each tool's store call; zero or
// negative falls back to 10s.
func NewDispatcher(store accountstore.Store, timeout time.Duration) *Dispatcher {
	if store == nil {
		panic("NewDispatcher: store must not be nil")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{store: store, timeout: timeout}
}

// Dispatch runs toolName with toolInput on behalf of trustedUserID.
//
// # Inputs
//
//   - ctx: Request context; a per-call timeout is layered on top
//   - trustedUserID: Caller identity from the request, overrides any
//     user_id in toolInput
//   - toolName: Tool name exactly as the model produced it
//   - toolInput: Model-produced arguments
//
// # Outputs
//
//   - ToolResult: Exactly one of SignOut, Observation, NotFound, DispatchError
func (d *Dispatcher) Dispatch(ctx context.Context, trustedUserID string,
	toolName string, toolInput map[string]any) ToolResult {

	input := SanitizedInput(trustedUserID, toolInput)

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	slog.Info("Dispatching tool", "tool", toolName, "userId", trustedUserID)

	switch toolName {
	case ToolGetUserProfile:
		return d.getUserProfile(ctx, trustedUserID)
	case ToolUpdateUserProfile:
		return d.updateUserProfile(ctx, trustedUserID, input)
	case ToolDeleteConversationByTitle:
		return d.deleteConversationByTitle(ctx, trustedUserID, input)
	case ToolSignOutUser:
		// Sentinel only; the client performs the actual sign-out.
		return SignOut{}
	default:
		slog.Warn("Model requested an unknown tool", "tool", toolName)
		return NotFound{ToolName: toolName}
	}
}

func (d *Dispatcher) getUserProfile(ctx context.Context, userID string) ToolResult {
	profile, err := d.store.GetProfile(ctx, userID)
	if errors.Is(err, accountstore.ErrNotFound) {
		return Observation{Text: fmt.Sprintf("Observation: No profile found for user_id %s.", userID)}
	}
	if err != nil {
		slog.Error("Profile fetch failed", "userId", userID, "error", err)
		return Observation{Text: "Observation: An error occurred while fetching the profile."}
	}
	return Observation{Text: fmt.Sprintf("Observation: Found user profile. Username is %s.", profile.Username)}
}

func (d *Dispatcher) updateUserProfile(ctx context.Context, userID string, input map[string]any) ToolResult {
	update := accountstore.ProfileUpdate{}
	var err error
	if update.FullName, err = optionalString(input, "full_name"); err != nil {
		return DispatchError{ToolName: ToolUpdateUserProfile, Reason: err.Error()}
	}
	if update.Age, err = optionalInt(input, "age"); err != nil {
		return DispatchError{ToolName: ToolUpdateUserProfile, Reason: err.Error()}
	}
	if update.Address, err = optionalString(input, "address"); err != nil {
		return DispatchError{ToolName: ToolUpdateUserProfile, Reason: err.Error()}
	}
	if update.About, err = optionalString(input, "about"); err != nil {
		return DispatchError{ToolName: ToolUpdateUserProfile, Reason: err.Error()}
	}
	if update.IsEmpty() {
		return Observation{Text: "Observation: No fields were provided to update."}
	}

	count, err := d.store.UpdateProfile(ctx, userID, update)
	if err != nil {
		slog.Error("Profile update failed", "userId", userID, "error", err)
		return Observation{Text: "Observation: An error occurred during update."}
	}
	if count == 0 {
		return Observation{Text: "Observation: Profile update command sent. Assuming success."}
	}
	fieldsJSON, _ := json.Marshal(update.Fields())
	return Observation{Text: fmt.Sprintf("Observation: Profile updated successfully with the following data: %s", fieldsJSON)}
}

func (d *Dispatcher) deleteConversationByTitle(ctx context.Context, userID string, input map[string]any) ToolResult {
	title, err := requiredString(input, "title")
	if err != nil {
		return DispatchError{ToolName: ToolDeleteConversationByTitle, Reason: err.Error()}
	}

	count, err := d.store.DeleteConversationsByTitle(ctx, userID, title)
	if err != nil {
		slog.Error("Conversation delete failed", "userId", userID, "error", err)
		return Observation{Text: "Observation: An error occurred while deleting the conversation."}
	}
	if count == 0 {
		return Observation{Text: fmt.Sprintf("Observation: No conversation with the exact title '%s' was found for this user.", title)}
	}
	return Observation{Text: fmt.Sprintf("Observation: Successfully deleted %d conversation(s) titled '%s'.", count, title)}
}

// =============================================================================
// Typed Parameter Extraction
// =============================================================================

func requiredString(input map[string]any, key string) (string, error) {
	raw, ok := input[key]
	if !ok {
		return "", fmt.Errorf("missing required parameter '%s'", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("parameter '%s' must be a string", key)
	}
	if s == "" {
		return "", fmt.Errorf("parameter '%s' must not be empty", key)
	}
	return s, nil
}

func optionalString(input map[string]any, key string) (*string, error) {
	raw, ok := input[key]
	if !ok || raw == nil {
		return nil, nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("parameter '%s' must be a string", key)
	}
	if s == "" {
		return nil, nil
	}
	return &s, nil
}

func optionalInt(input map[string]any, key string) (*int, error) {
	raw, ok := input[key]
	if !ok || raw == nil {
		return nil, nil
	}
	// JSON numbers arrive as float64.
	f, ok := raw.(float64)
	if !ok || f != math.Trunc(f) {
		return nil, fmt.Errorf("parameter '%s' must be an integer", key)
	}
	v := int(f)
	return &v, nil
}
