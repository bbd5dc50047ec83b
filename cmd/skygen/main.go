// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command skygen starts the SkyGen backend HTTP server.
//
// This is the main entry point for the containerized backend service.
// It reads configuration from environment variables and starts the server.
//
// # Environment Variables
//
//   - SKYGEN_PORT: HTTP server port (default: 8000)
//   - LLM_BACKEND_TYPE: LLM provider - groq, local (default: groq)
//   - GROQ_API_KEY: Groq API key (required for the groq backend)
//   - GROQ_MODEL: Groq model id (default: llama-3.3-70b-versatile)
//   - LOCAL_LLM_BASE_URL: Base URL of the local llama server (local backend)
//   - SUPABASE_URL / SUPABASE_KEY: Account store credentials
//   - MODEL_CALL_TIMEOUT: Per-model-call timeout in seconds (default: 60)
//   - TOOL_CALL_TIMEOUT: Per-tool-dispatch timeout in seconds (default: 10)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: skygen-otel-collector:4317)
//   - CORS_ALLOWED_ORIGINS: Comma-separated origin allowlist (default: all)
//
// # Usage
//
//	# Build
//	go build -o skygen ./cmd/skygen
//
//	# Run
//	./skygen
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/Praveenkumar76/SkyGen-backend/services/skygen"
)

func main() {
	// Load .env if present (ignored in containers where env is injected)
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded configuration from .env file")
	}

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Build configuration from environment variables
	cfg := skygen.Config{
		Port:         getEnvInt("SKYGEN_PORT", 8000),
		LLMBackend:   getEnvString("LLM_BACKEND_TYPE", "groq"),
		OTelEndpoint: getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "skygen-otel-collector:4317"),
		ModelTimeout: time.Duration(getEnvInt("MODEL_CALL_TIMEOUT", 60)) * time.Second,
		ToolTimeout:  time.Duration(getEnvInt("TOOL_CALL_TIMEOUT", 10)) * time.Second,
	}

	slog.Info("Starting SkyGen backend",
		"port", cfg.Port,
		"llm_backend", cfg.LLMBackend,
	)

	svc, err := skygen.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
