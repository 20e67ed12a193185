// Package middleware provides Gin HTTP middleware for the intake gateway: request ids,
// request logging, metrics, security headers, CORS, rate limiting and the shared API
// key guard.
//
// Middleware ordering is set in internal/api/router.go:
//
//	Recovery → RequestID → Metrics → Logger → CORS → Security → [RateLimit → APIKey] → Handler
//
// The bracketed pair applies to mutating routes only, so liveness probes stay open and
// an over-limit caller is turned away before any key comparison.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/intake-gateway/intake-gateway/internal/auth"
	"github.com/intake-gateway/intake-gateway/internal/config"
)

// DefaultAPIKeyHeader is used when auth.header is empty
const DefaultAPIKeyHeader = "X-API-Key"

// forbiddenBody is shared by the task and upload routes, which historically used
// different failure shapes.
var forbiddenBody = gin.H{
	"ok":     false,
	"status": "error",
	"error":  "forbidden",
	"reason": "forbidden",
}

// APIKeyMiddleware rejects requests whose key header does not match the configured
// secret. With no secret configured every request passes, unless RequireAPIKey is set,
// in which case every request is rejected.
func APIKeyMiddleware(cfg *config.AuthConfig) gin.HandlerFunc {
	header := cfg.Header
	if header == "" {
		header = DefaultAPIKeyHeader
	}

	if !cfg.KeyConfigured() {
		if cfg.RequireAPIKey {
			slog.Warn("auth.require_api_key is set but no key is configured; all intake requests will be rejected")
		} else {
			slog.Warn("no API key configured; intake routes are open to any caller")
		}
	}

	return func(c *gin.Context) {
		if !cfg.KeyConfigured() {
			if cfg.RequireAPIKey {
				reject(c, "no key configured")
				return
			}
			c.Next()
			return
		}

		provided := c.GetHeader(header)
		if provided == "" {
			reject(c, "missing key")
			return
		}

		var ok bool
		if cfg.APIKeyHash != "" {
			ok = auth.ValidateAPIKey(provided, cfg.APIKeyHash)
		} else {
			ok = auth.MatchAPIKey(provided, cfg.APIKey)
		}
		if !ok {
			reject(c, "key mismatch")
			return
		}

		c.Set("auth_method", "api_key")
		c.Next()
	}
}

func reject(c *gin.Context, why string) {
	slog.Warn("rejected request",
		"reason", why,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"ip", c.ClientIP(),
		"request_id", c.GetString(RequestIDKey))
	c.AbortWithStatusJSON(http.StatusForbidden, forbiddenBody)
}
