package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kustii/board/metrics"
)

// RequestMetrics observes request latency per matched route.
func RequestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// Use the route template so ids do not explode label cardinality
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		if route == "/metrics" || route == "/health" {
			return
		}
		metrics.RequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
