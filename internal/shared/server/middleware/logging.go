package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"snaudit-backend/internal/shared/telemetry"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()
		reqID := RequestIDFromContext(c)

		fields := map[string]any{
			"request_id":  reqID,
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      status,
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}
		for _, key := range []string{"runId", "sessionId", "taskId"} {
			if raw, ok := c.Get(key); ok {
				if s, ok := raw.(string); ok && s != "" {
					fields[toSnake(key)] = s
				}
			}
		}

		telemetry.Info("request.complete", fields)
	}
}

func toSnake(key string) string {
	switch key {
	case "runId":
		return "run_id"
	case "sessionId":
		return "session_id"
	case "taskId":
		return "task_id"
	default:
		return key
	}
}
