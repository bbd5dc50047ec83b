package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HandleHealth reports service liveness.
//
// # Description
//
// Handles GET /health. Returns 200 with a static status body; no downstream
// dependencies are checked, so this is a liveness probe rather than a
// readiness probe.
func HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "AI Backend is running"})
}
