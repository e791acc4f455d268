package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/looplj/approvalhub/internal/metrics"
)

// WithMetrics records request count and latency per route and status.
func WithMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			// Unmatched routes would explode label cardinality.
			path = "unmatched"
		}

		metrics.RecordRequest(c.Request.Context(), c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
