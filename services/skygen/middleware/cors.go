// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the SkyGen service.
//
// This package currently contains the CORS middleware used by the public
// API surface. The service is consumed by browser frontends hosted on
// other origins, so every route (including the SSE endpoints) passes
// through CORS handling before reaching its handler.
package middleware

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
)

// =============================================================================
// CORS Middleware
// =============================================================================

// CORSMiddleware creates a Gin middleware that handles cross-origin requests.
//
// # Description
//
// Reflects the request Origin when it is allowed and answers preflight
// OPTIONS requests with 204. The allowed origin list comes from the
// CORS_ALLOWED_ORIGINS environment variable (comma-separated); when unset,
// all origins are allowed, which matches the development default of the
// frontend this service was built for.
//
// # Inputs
//
// None. Configuration is read from the environment once at construction.
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware function ready for use with Gin
//
// # Limitations
//
//   - Credentials are only enabled when an explicit origin list is set;
//     browsers reject "Access-Control-Allow-Origin: *" with credentials.
//
// # Thread Safety
//
// Thread-safe. The returned middleware can be used concurrently.
func CORSMiddleware() gin.HandlerFunc {
	allowed := parseAllowedOrigins(os.Getenv("CORS_ALLOWED_ORIGINS"))

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		if allowed == nil {
			// No explicit list configured: echo any origin.
			if origin != "" {
				c.Header("Access-Control-Allow-Origin", origin)
			} else {
				c.Header("Access-Control-Allow-Origin", "*")
			}
		} else if origin != "" && allowed[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Vary", "Origin")
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept, Cache-Control")

		// Preflight requests end here.
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// parseAllowedOrigins splits a comma-separated origin list.
//
// Returns nil when the list is empty, which callers treat as "allow all".
func parseAllowedOrigins(raw string) map[string]bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	allowed := make(map[string]bool)
	for _, origin := range strings.Split(raw, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			allowed[origin] = true
		}
	}
	if len(allowed) == 0 {
		return nil
	}
	return allowed
}
