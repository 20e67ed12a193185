// Package api wires together all HTTP routes for the intake gateway.
//
// Route grouping:
//   - System routes (/, /health, /ready, /version) are unauthenticated and never
//     rate limited so that probes keep working under load.
//   - Intake routes (/api/task, /api/upload and their bare aliases /task, /upload)
//     run behind the optional rate limiter and the shared API key guard.
//   - /files/:id is registered only when the local blob backend is active with
//     serve_directly, so links it hands out resolve against this process.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/intake-gateway/intake-gateway/internal/audit"
	"github.com/intake-gateway/intake-gateway/internal/config"
	"github.com/intake-gateway/intake-gateway/internal/intake"
	"github.com/intake-gateway/intake-gateway/internal/middleware"
	"github.com/intake-gateway/intake-gateway/internal/storage"
)

// Version is reported by GET /version and the version subcommand.
var Version = "0.1.0"

// probeTimeout bounds each readiness check.
const probeTimeout = 5 * time.Second

// BackgroundServices holds resources that must be released during graceful
// shutdown. The caller (cmd/server) is responsible for calling Shutdown() after
// the HTTP server has drained.
type BackgroundServices struct {
	stopLimiter func()
}

// Shutdown stops all background goroutines.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.stopLimiter != nil {
		bg.stopLimiter()
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router around an already constructed
// blob store and tabular store.
func NewRouter(cfg *config.Config, store storage.Storage, log audit.Appender) (*gin.Engine, *BackgroundServices, error) {
	svc, err := intake.NewService(cfg, store, log)
	if err != nil {
		return nil, nil, err
	}

	bg := &BackgroundServices{}
	var limiter middleware.Limiter
	if cfg.Security.RateLimiting.Enabled {
		limiter, bg.stopLimiter, err = middleware.NewLimiter(&cfg.Security.RateLimiting)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create rate limiter: %w", err)
		}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig(cfg.Security.TLS.Enabled)))

	// System
	router.GET("/", rootHandler)
	router.GET("/health", healthCheckHandler)
	router.GET("/ready", readinessHandler(store, log))
	router.GET("/version", versionHandler)

	// Intake
	h := newIntakeHandler(svc, cfg.Intake.MaxUploadSizeMB)
	guards := []gin.HandlerFunc{}
	if limiter != nil {
		guards = append(guards, middleware.RateLimitMiddleware(limiter))
	}
	guards = append(guards, middleware.APIKeyMiddleware(&cfg.Auth))

	for _, prefix := range []string{"/api", ""} {
		group := router.Group(prefix, guards...)
		group.POST("/task", h.submitTask)
		group.POST("/upload", h.submitFile)
	}

	if files, ok := directFiles(store); ok {
		router.GET("/files/:id", serveFileHandler(files))
		slog.Info("serving stored files directly", "path", "/files/:id")
	}

	return router, bg, nil
}

// fileServer is implemented by blob backends that keep objects on local disk.
type fileServer interface {
	ServeDirectly() bool
	Path(id string) (string, error)
}

// directFiles returns the backend behind store when it can serve its own files.
func directFiles(store storage.Storage) (fileServer, bool) {
	for {
		if fs, ok := store.(fileServer); ok {
			return fs, fs.ServeDirectly()
		}
		u, ok := store.(interface{ Unwrap() storage.Storage })
		if !ok {
			return nil, false
		}
		store = u.Unwrap()
	}
}

// rootHandler is the plain text liveness response kept for existing monitors
func rootHandler(c *gin.Context) {
	c.String(http.StatusOK, "Intake gateway is running!")
}

// healthCheckHandler returns the liveness status of the service. It never calls
// upstream stores.
func healthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// readinessHandler returns the readiness status of the service.
// Unlike the liveness probe (/health), this checks that the blob store and the
// tabular store are reachable with the configured credentials.
func readinessHandler(store storage.Storage, log audit.Appender) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
		defer cancel()

		checks := gin.H{}
		ready := true

		if err := store.Probe(ctx); err != nil {
			slog.Warn("blob store not ready", "error", err)
			checks["storage"] = "unhealthy"
			ready = false
		} else {
			checks["storage"] = "healthy"
		}

		if p, ok := log.(audit.Pinger); ok {
			if err := p.Ping(ctx); err != nil {
				slog.Warn("tabular store not ready", "error", err)
				checks["audit"] = "unhealthy"
				ready = false
			} else {
				checks["audit"] = "healthy"
			}
		} else {
			checks["audit"] = "unchecked"
		}

		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":  ready,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// versionHandler returns the gateway version
func versionHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": Version})
}

// serveFileHandler streams a locally stored object.
func serveFileHandler(files fileServer) gin.HandlerFunc {
	return func(c *gin.Context) {
		path, err := files.Path(c.Param("id"))
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "not_found", "reason": "file not found"})
				return
			}
			slog.Error("failed to resolve stored file", "id", c.Param("id"), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": intake.CodeInternal, "reason": "internal error"})
			return
		}
		c.File(path)
	}
}

// LoggerMiddleware logs one structured record per request. The record format
// (JSON or text) follows the handler installed by telemetry.SetupLogger.
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		level := slog.LevelInfo
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}

		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", c.GetString(middleware.RequestIDKey)),
		}
		if query != "" {
			attrs = append(attrs, slog.String("query", query))
		}
		if cfg.Logging.Level == "debug" {
			attrs = append(attrs, slog.String("user_agent", c.Request.UserAgent()))
		}

		slog.LogAttrs(c.Request.Context(), level, "http request", attrs...)
	}
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	keyHeader := cfg.Auth.Header
	if keyHeader == "" {
		keyHeader = middleware.DefaultAPIKeyHeader
	}
	allowHeaders := "Origin, Content-Type, Accept, X-Request-ID, " + keyHeader

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		wildcard := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" {
				allowed, wildcard = true, true
				break
			}
			if allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if wildcard || origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", allowHeaders)
			c.Header("Access-Control-Expose-Headers", "X-Request-ID, Retry-After")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
