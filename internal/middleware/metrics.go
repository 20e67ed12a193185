package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/intake-gateway/intake-gateway/internal/telemetry"
)

// MetricsMiddleware records http_requests_total{method, path, status} and
// http_request_duration_seconds{method, path} for every request.
//
// The path label is the matched route template (/files/:id, not /files/<uuid>), so the
// canonical and alias intake routes are counted separately. Unmatched requests use
// "<no-route>" to keep label cardinality bounded.
//
// Register after gin.Recovery() and RequestIDMiddleware so the final status is captured.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "<no-route>"
		}

		method := c.Request.Method
		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
