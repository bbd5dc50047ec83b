// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package accountstore is the client for the Supabase-backed account data.
//
// It speaks PostgREST directly: every table is a REST resource and filters
// are query parameters ("id=eq.<uuid>"). Only the two tables the agent
// tools need are exposed, profiles and conversations.
package accountstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrNotFound is returned when a row filter matches nothing.
var ErrNotFound = errors.New("accountstore: not found")

// Profile is the subset of the profiles table the agent reads.
type Profile struct {
	Username string `json:"username"`
}

// ProfileUpdate carries the optional profile fields a caller may change.
// Nil fields are left untouched.
type ProfileUpdate struct {
	FullName *string `json:"full_name,omitempty"`
	Age      *int    `json:"age,omitempty"`
	Address  *string `json:"address,omitempty"`
	About    *string `json:"about,omitempty"`
}

// IsEmpty reports whether no field is set.
func (u ProfileUpdate) IsEmpty() bool {
	return u.FullName == nil && u.Age == nil && u.Address == nil && u.About == nil
}

// Fields returns the set fields as a column/value map for logging and
// confirmation messages.
func (u ProfileUpdate) Fields() map[string]any {
	fields := make(map[string]any)
	if u.FullName != nil {
		fields["full_name"] = *u.FullName
	}
	if u.Age != nil {
		fields["age"] = *u.Age
	}
	if u.Address != nil {
		fields["address"] = *u.Address
	}
	if u.About != nil {
		fields["about"] = *u.About
	}
	return fields
}

// Store is the account data surface the agent tools depend on.
//
// # Thread Safety
//
//   - Implementations must be safe for concurrent use
type Store interface {
	// GetProfile fetches the profile row for userID.
	// Returns ErrNotFound when no row matches.
	GetProfile(ctx context.Context, userID string) (*Profile, error)

	// UpdateProfile applies the set fields to the profile row for userID
	// and returns the number of rows changed.
	UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (int, error)

	// DeleteConversationsByTitle deletes every conversation owned by userID
	// whose title matches exactly, returning the number deleted.
	DeleteConversationsByTitle(ctx context.Context, userID string, title string) (int, error)
}

// Client is the PostgREST-backed Store implementation.
type Client struct {
	client *resty.Client
}

var _ Store = (*Client)(nil)

// NewClient creates a Store talking to the given Supabase project.
//
// # Inputs
//
//   - baseURL: Project URL, e.g. "https://xyz.supabase.co"
//   - apiKey: Service role or anon key, sent as both apikey and bearer token
func NewClient(baseURL, apiKey string) *Client {
	client := resty.New()
	client.SetBaseURL(strings.TrimSuffix(baseURL, "/") + "/rest/v1")
	client.SetTimeout(10 * time.Second)
	client.SetHeader("apikey", apiKey)
	client.SetHeader("Authorization", "Bearer "+apiKey)
	client.SetHeader("Content-Type", "application/json")
	return &Client{client: client}
}

// NewClientFromEnv creates a Client from SUPABASE_URL and SUPABASE_KEY.
func NewClientFromEnv() (*Client, error) {
	baseURL := os.Getenv("SUPABASE_URL")
	apiKey := os.Getenv("SUPABASE_KEY")
	if baseURL == "" {
		return nil, fmt.Errorf("SUPABASE_URL environment variable not set")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("SUPABASE_KEY environment variable not set")
	}
	slog.Info("Initializing account store client", "base_url", baseURL)
	return NewClient(baseURL, apiKey), nil
}

// GetProfile implements Store.
func (c *Client) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"id":     "eq." + userID,
			"select": "username",
		}).
		Get("/profiles")
	if err != nil {
		return nil, fmt.Errorf("profile lookup failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("profile lookup failed with status %d: %s", resp.StatusCode(), resp.String())
	}

	var rows []Profile
	if err := json.Unmarshal(resp.Body(), &rows); err != nil {
		return nil, fmt.Errorf("failed to parse profile response: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// UpdateProfile implements Store.
func (c *Client) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (int, error) {
	if update.IsEmpty() {
		return 0, nil
	}
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("id", "eq."+userID).
		// return=representation makes PostgREST echo the changed rows so
		// the affected count is observable.
		SetHeader("Prefer", "return=representation").
		SetBody(update).
		Patch("/profiles")
	if err != nil {
		return 0, fmt.Errorf("profile update failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("profile update failed with status %d: %s", resp.StatusCode(), resp.String())
	}
	return countRows(resp.Body())
}

// DeleteConversationsByTitle implements Store.
func (c *Client) DeleteConversationsByTitle(ctx context.Context, userID string, title string) (int, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"user_id": "eq." + userID,
			"title":   "eq." + title,
		}).
		SetHeader("Prefer", "return=representation").
		Delete("/conversations")
	if err != nil {
		return 0, fmt.Errorf("conversation delete failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("conversation delete failed with status %d: %s", resp.StatusCode(), resp.String())
	}
	return countRows(resp.Body())
}

// countRows counts elements of a PostgREST representation response.
func countRows(body []byte) (int, error) {
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return 0, fmt.Errorf("failed to parse representation response: %w", err)
	}
	return len(rows), nil
}
