// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Praveenkumar76/SkyGen-backend/services/agent"
	"github.com/Praveenkumar76/SkyGen-backend/services/llm"
	"github.com/Praveenkumar76/SkyGen-backend/services/skygen/datatypes"
	"github.com/Praveenkumar76/SkyGen-backend/services/skygen/handlers"

	"github.com/Praveenkumar76/SkyGen-backend/services/accountstore"
)

// ============================================================================
// Test Setup
// ============================================================================

func init() {
	// Set Gin to test mode to reduce noise in test output
	gin.SetMode(gin.TestMode)
}

// mockLLMClient is a minimal mock for llm.LLMClient
type mockLLMClient struct{}

func (m *mockLLMClient) Generate(_ context.Context, _ string, _ llm.GenerationParams) (string, error) {
	return "mock response", nil
}

func (m *mockLLMClient) Chat(_ context.Context, _ []datatypes.Message, _ llm.GenerationParams) (string, error) {
	return "mock chat response", nil
}

func (m *mockLLMClient) ChatStream(_ context.Context, _ []datatypes.Message, _ llm.GenerationParams, callback llm.StreamCallback) error {
	if err := callback(llm.StreamEvent{Type: llm.StreamEventToken, Token: "mock stream"}); err != nil {
		return err
	}
	return callback(llm.StreamEvent{Type: llm.StreamEventDone})
}

// mockStore is a minimal accountstore.Store.
type mockStore struct{}

func (m *mockStore) GetProfile(_ context.Context, _ string) (*accountstore.Profile, error) {
	return &accountstore.Profile{Username: "mock"}, nil
}

func (m *mockStore) UpdateProfile(_ context.Context, _ string, _ accountstore.ProfileUpdate) (int, error) {
	return 1, nil
}

func (m *mockStore) DeleteConversationsByTitle(_ context.Context, _, _ string) (int, error) {
	return 0, nil
}

// newTestRouter returns a router with all routes registered against mocks.
func newTestRouter() *gin.Engine {
	mockLLM := &mockLLMClient{}
	chatHandler := handlers.NewChatHandler(mockLLM, time.Second)

	orchestrator := agent.NewOrchestrator(mockLLM,
		agent.NewDispatcher(&mockStore{}, time.Second),
		agent.NewRegistry(), agent.Config{ModelTimeout: time.Second})
	agentHandler := handlers.NewAgentHandler(orchestrator)

	router := gin.New()
	SetupRoutes(router, chatHandler, agentHandler)
	return router
}

// ============================================================================
// SetupRoutes Tests
// ============================================================================

func TestSetupRoutes_CoreRoutesRegistered(t *testing.T) {
	router := newTestRouter()

	coreRoutes := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/metrics"},
		{"POST", "/v1/chat"},
		{"POST", "/v1/chat/stream"},
		{"POST", "/v1/agent/stream"},
	}

	routes := router.Routes()
	for _, expected := range coreRoutes {
		found := false
		for _, r := range routes {
			if r.Method == expected.method && r.Path == expected.path {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected route %s %s not found", expected.method, expected.path)
		}
	}
}

// ============================================================================
// Route Handler Tests
// ============================================================================

func TestSetupRoutes_HealthEndpoint(t *testing.T) {
	router := newTestRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Health endpoint returned %d, want %d", w.Code, http.StatusOK)
	}

	want := `{"status":"AI Backend is running"}`
	if w.Body.String() != want {
		t.Errorf("Health body = %q, want %q", w.Body.String(), want)
	}
}

func TestSetupRoutes_MetricsEndpoint(t *testing.T) {
	router := newTestRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/metrics", nil)
	router.ServeHTTP(w, req)

	// Prometheus metrics endpoint should return 200
	if w.Code != http.StatusOK {
		t.Errorf("Metrics endpoint returned %d, want %d", w.Code, http.StatusOK)
	}

	// Should return prometheus format
	contentType := w.Header().Get("Content-Type")
	if contentType == "" {
		t.Error("Metrics endpoint should return Content-Type header")
	}
}

// ============================================================================
// API Version Group Tests
// ============================================================================

func TestSetupRoutes_V1GroupExists(t *testing.T) {
	router := newTestRouter()

	routes := router.Routes()
	v1Routes := 0
	for _, r := range routes {
		if len(r.Path) > 3 && r.Path[:3] == "/v1" {
			v1Routes++
		}
	}

	if v1Routes != 3 {
		t.Errorf("Expected 3 /v1 routes, got %d", v1Routes)
	}
}
