package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-sync/internal/session"
	"chat-sync/internal/telemetry"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router gin.IRouter, notifier session.Notifier, enabled bool) {
	if !enabled {
		return
	}

	router.POST("/debug/notify-test", func(c *gin.Context) {
		if notifier == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "notifier not configured"})
			return
		}
		notifier.Emit(c.Request.Context(), userIDFromContext(c), telemetry.NotificationPayload{Kind: "test"})
		c.JSON(http.StatusOK, gin.H{"status": "ok", "request_id": requestIDFromContext(c)})
	})
}
