package api

import (
	"fmt"
	"log/slog"

	"github.com/intake-gateway/intake-gateway/internal/audit"
	"github.com/intake-gateway/intake-gateway/internal/config"
	"github.com/intake-gateway/intake-gateway/internal/storage"

	// Import blob store backends to register them
	_ "github.com/intake-gateway/intake-gateway/internal/storage/azure"
	_ "github.com/intake-gateway/intake-gateway/internal/storage/drive"
	_ "github.com/intake-gateway/intake-gateway/internal/storage/gcs"
	_ "github.com/intake-gateway/intake-gateway/internal/storage/local"
	_ "github.com/intake-gateway/intake-gateway/internal/storage/s3"

	// Import tabular store backends to register them
	_ "github.com/intake-gateway/intake-gateway/internal/audit/postgres"
	_ "github.com/intake-gateway/intake-gateway/internal/audit/sheets"
)

// NewBackends builds the blob store and tabular store selected in cfg. The caller
// owns the returned Appender and must Close it after the HTTP server has drained.
func NewBackends(cfg *config.Config) (storage.Storage, audit.Appender, error) {
	store, err := storage.NewStorage(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	slog.Info("initialized storage backend", "backend", cfg.Storage.DefaultBackend)

	log, err := audit.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize audit backend: %w", err)
	}
	slog.Info("initialized audit backend", "backend", cfg.Audit.Backend, "mirrors", len(cfg.Audit.Mirrors))

	return store, log, nil
}
