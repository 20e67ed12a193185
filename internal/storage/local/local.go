// Package local implements the local filesystem blob store backend. It is intended for
// development and single-node deployments only: each upload is written to
// <base_path>/<uuid>/<filename> and served back by the gateway at GET /files/:id when
// serve_directly is enabled.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/intake-gateway/intake-gateway/internal/config"
	"github.com/intake-gateway/intake-gateway/internal/storage"
	"github.com/intake-gateway/intake-gateway/pkg/checksum"
)

func init() {
	// Register local storage backend
	storage.Register("local", func(cfg *config.Config) (storage.Storage, error) {
		return New(&cfg.Storage.Local, cfg.Server.BaseURL)
	})
}

// LocalStorage implements the Storage interface for local filesystem storage
type LocalStorage struct {
	basePath      string
	serveDirectly bool
	baseURL       string
}

// New creates a new local filesystem storage backend
func New(cfg *config.LocalStorageConfig, serverBaseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(cfg.BasePath, 0750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{
		basePath:      cfg.BasePath,
		serveDirectly: cfg.ServeDirectly,
		baseURL:       strings.TrimRight(serverBaseURL, "/"),
	}, nil
}

// ServeDirectly reports whether the gateway should expose stored files over HTTP
func (s *LocalStorage) ServeDirectly() bool {
	return s.serveDirectly
}

// Store writes the object to <base>/<uuid>/<filename>
func (s *LocalStorage) Store(ctx context.Context, obj *storage.Object) (*storage.Reference, error) {
	id := uuid.NewString()
	dir := filepath.Join(s.basePath, id)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	name := safeName(obj.Name, id)
	fullPath := filepath.Join(dir, name)

	file, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(obj.Body)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		// Clean up partial file
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	return &storage.Reference{
		ID:       id,
		Name:     name,
		Link:     s.link(id),
		MimeType: obj.ContentType,
		Size:     int64(len(data)),
		Checksum: checksum.SHA256Bytes(data),
	}, nil
}

// GetMetadata stats the stored file for id
func (s *LocalStorage) GetMetadata(ctx context.Context, id string) (*storage.Reference, error) {
	fullPath, err := s.Path(id)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	f, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()
	sum, err := checksum.CalculateSHA256(f)
	if err != nil {
		return nil, err
	}

	return &storage.Reference{
		ID:       id,
		Name:     info.Name(),
		Link:     s.link(id),
		MimeType: mime.TypeByExtension(filepath.Ext(info.Name())),
		Size:     info.Size(),
		Checksum: sum,
	}, nil
}

// Probe checks that the base directory exists
func (s *LocalStorage) Probe(ctx context.Context) error {
	info, err := os.Stat(s.basePath)
	if err != nil {
		return fmt.Errorf("failed to stat storage directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage path %s is not a directory", s.basePath)
	}
	return nil
}

// Path resolves id to the stored file's absolute path. Unknown or malformed ids
// return storage.ErrNotFound.
func (s *LocalStorage) Path(id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("local object %q: %w", id, storage.ErrNotFound)
	}

	entries, err := os.ReadDir(filepath.Join(s.basePath, id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("local object %q: %w", id, storage.ErrNotFound)
		}
		return "", fmt.Errorf("failed to read object directory: %w", err)
	}
	for _, e := range entries {
		if e.Type().IsRegular() {
			return filepath.Join(s.basePath, id, e.Name()), nil
		}
	}
	return "", fmt.Errorf("local object %q: %w", id, storage.ErrNotFound)
}

func (s *LocalStorage) link(id string) string {
	return fmt.Sprintf("%s/files/%s", s.baseURL, id)
}

// safeName strips any directory components from a caller-supplied filename.
func safeName(name, fallback string) string {
	base := filepath.Base(filepath.Clean("/" + filepath.FromSlash(name)))
	if base == "/" || base == "." || base == string(filepath.Separator) {
		return fallback
	}
	return base
}
