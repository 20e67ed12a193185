// Package main is the entry point for the intake gateway binary.
// It dispatches its subcommands (serve, migrate, hash-key, version) via a simple
// switch on os.Args so the binary's full CLI surface is readable in one place.
//
// Prometheus metrics and pprof are served on dedicated side ports, never on the
// public listener:
//
//	GET :9090/metrics        telemetry.metrics.prometheus_port
//	GET :6060/debug/pprof/   telemetry.profiling.port (only when enabled)
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	_ "net/http/pprof" // #nosec G108 -- served only on the profiling side port, never through the Gin router
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/intake-gateway/intake-gateway/internal/api"
	"github.com/intake-gateway/intake-gateway/internal/config"
	"github.com/intake-gateway/intake-gateway/internal/db"
	"github.com/intake-gateway/intake-gateway/internal/safego"
	"github.com/intake-gateway/intake-gateway/internal/storage"
	"github.com/intake-gateway/intake-gateway/internal/telemetry"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	// hash-key and version never need configuration
	switch command {
	case "version":
		fmt.Printf("Intake Gateway v%s\n", api.Version)
		return nil
	case "hash-key":
		return hashKey(os.Args[2:], os.Stdin, os.Stdout)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialise structured logger as early as possible so all subsequent log output
	// uses the configured format and level.
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level, cfg.Logging.Output)

	switch command {
	case "serve":
		return serve(cfg)
	case "migrate":
		if len(os.Args) < 3 {
			return fmt.Errorf("usage: %s migrate <up|down>", os.Args[0])
		}
		return runMigrations(cfg, os.Args[2])
	default:
		return fmt.Errorf("unknown command: %s\nAvailable commands: serve, migrate, hash-key, version", command)
	}
}

func serve(cfg *config.Config) error {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	store, auditLog, err := api.NewBackends(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := auditLog.Close(); err != nil {
			slog.Error("failed to close audit backend", "error", err)
		}
		if err := storage.Close(store); err != nil {
			slog.Error("failed to close storage backend", "error", err)
		}
	}()

	router, bgServices, err := api.NewRouter(cfg, store, auditLog)
	if err != nil {
		return fmt.Errorf("failed to create router: %w", err)
	}
	// Stops rate limiter goroutines once in-flight requests have drained
	defer bgServices.Shutdown()

	if cfg.Telemetry.Metrics.Enabled {
		startSideServer("metrics", fmt.Sprintf(":%d", cfg.Telemetry.Metrics.PrometheusPort), metricsMux(), 10*time.Second)
	}
	if cfg.Telemetry.Profiling.Enabled {
		// net/http/pprof registers its handlers on http.DefaultServeMux at init time.
		startSideServer("pprof", fmt.Sprintf(":%d", cfg.Telemetry.Profiling.Port), http.DefaultServeMux, 30*time.Second)
	}

	server := &http.Server{
		Addr:              cfg.Server.GetAddress(),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	safego.Go("http server", func() {
		slog.Info("starting server",
			"addr", cfg.Server.GetAddress(),
			"base_url", cfg.Server.BaseURL,
			"storage_backend", cfg.Storage.DefaultBackend,
			"audit_backend", cfg.Audit.Backend,
			"auth", cfg.Auth.KeyConfigured(),
			"tls", cfg.Security.TLS.Enabled)

		var err error
		if cfg.Security.TLS.Enabled {
			err = server.ListenAndServeTLS(cfg.Security.TLS.CertFile, cfg.Security.TLS.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("failed to start server: %w", err)
	case sig := <-quit:
		slog.Info("shutting down server", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// startSideServer runs an internal-only listener in the background.
func startSideServer(name, addr string, handler http.Handler, timeout time.Duration) {
	safego.Go(name+" server", func() {
		slog.Info("starting side server", "name", name, "addr", addr)
		srv := &http.Server{ //nolint:gosec // #nosec G112 -- internal-only port
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		}
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("side server error", "name", name, "error", err)
		}
	})
}

func runMigrations(cfg *config.Config, direction string) error {
	if cfg.Audit.Backend != "postgres" {
		return fmt.Errorf("migrate requires audit.backend=postgres (configured: %s)", cfg.Audit.Backend)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	database, err := db.Connect(ctx, &cfg.Audit.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	slog.Info("running migrations", "direction", direction)
	if err := db.RunMigrations(database.DB, direction); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := db.GetMigrationVersion(database.DB)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	slog.Info("migration completed", "version", version, "dirty", dirty)
	return nil
}
