package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/secondbrain-backend/internal/platform/ctxutil"
	"github.com/yungbote/secondbrain-backend/internal/platform/logger"
)

// RequestLogger writes one line per request. Level follows the status class;
// health probes drop to debug.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		return func(c *gin.Context) { c.Next() }
	}
	log = log.With("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()
		ctx := c.Request.Context()

		kv := []interface{}{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"bytes", c.Writer.Size(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		kv = append(kv, ctxutil.LogFields(ctx)...)
		if uid := ctxutil.UserID(ctx); uid != uuid.Nil {
			kv = append(kv, "user_id", uid.String())
		}
		if err := c.Errors.Last(); err != nil {
			kv = append(kv, "error", err.Error())
		}

		switch {
		case status >= 500:
			log.Error("request failed", kv...)
		case status >= 400:
			log.Warn("request rejected", kv...)
		case route == "/health":
			log.Debug("request served", kv...)
		default:
			log.Info("request served", kv...)
		}
	}
}
