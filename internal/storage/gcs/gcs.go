// Package gcs implements the Google Cloud Storage blob store backend. Objects are keyed
// by a generated UUID under the configured prefix; the caller's filename travels in the
// object metadata and the returned link is the authenticated-browser URL of the object.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"

	appconfig "github.com/intake-gateway/intake-gateway/internal/config"
	"github.com/intake-gateway/intake-gateway/internal/gcpauth"
	appstorage "github.com/intake-gateway/intake-gateway/internal/storage"
	"github.com/intake-gateway/intake-gateway/pkg/checksum"
)

const browserBase = "https://storage.cloud.google.com"

func init() {
	// Register GCS storage backend
	appstorage.Register("gcs", func(cfg *appconfig.Config) (appstorage.Storage, error) {
		return New(context.Background(), &cfg.Google, &cfg.Storage.GCS)
	})
}

// GCSStorage implements the Storage interface for Google Cloud Storage
type GCSStorage struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a new Google Cloud Storage backend using the shared Google credentials
func New(ctx context.Context, gcfg *appconfig.GoogleConfig, cfg *appconfig.GCSStorageConfig) (*GCSStorage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket name is required")
	}

	opts, err := gcpauth.ClientOptions(ctx, gcfg, cfg.Endpoint, gcpauth.StorageScope)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSStorage{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// Close closes the GCS client
func (s *GCSStorage) Close() error {
	return s.client.Close()
}

// Store writes the object under <prefix><uuid>
func (s *GCSStorage) Store(ctx context.Context, obj *appstorage.Object) (*appstorage.Reference, error) {
	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	sum := checksum.SHA256Bytes(data)

	id := uuid.NewString()
	key := s.prefix + id

	writer := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	writer.ContentType = obj.ContentType
	writer.Metadata = map[string]string{
		"filename": obj.Name,
		"sha256":   sum,
	}

	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return nil, classify("failed to write to GCS", err)
	}
	if err := writer.Close(); err != nil {
		return nil, classify("failed to close GCS writer", err)
	}

	return &appstorage.Reference{
		ID:       id,
		Name:     obj.Name,
		Link:     s.link(key),
		MimeType: obj.ContentType,
		Size:     int64(len(data)),
		Checksum: sum,
	}, nil
}

// GetMetadata retrieves object attributes without downloading the object
func (s *GCSStorage) GetMetadata(ctx context.Context, id string) (*appstorage.Reference, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("gcs object %q: %w", id, appstorage.ErrNotFound)
	}
	key := s.prefix + id

	attrs, err := s.client.Bucket(s.bucket).Object(key).Attrs(ctx)
	if err != nil {
		return nil, classify("failed to get object metadata", err)
	}

	name := attrs.Metadata["filename"]
	if name == "" {
		name = id
	}
	return &appstorage.Reference{
		ID:       id,
		Name:     name,
		Link:     s.link(key),
		MimeType: attrs.ContentType,
		Size:     attrs.Size,
		Checksum: attrs.Metadata["sha256"],
	}, nil
}

// Probe checks that the bucket exists and is readable
func (s *GCSStorage) Probe(ctx context.Context) error {
	if _, err := s.client.Bucket(s.bucket).Attrs(ctx); err != nil {
		return classify("failed to reach GCS bucket", err)
	}
	return nil
}

func (s *GCSStorage) link(key string) string {
	return fmt.Sprintf("%s/%s/%s", browserBase, s.bucket, key)
}

// classify wraps a GCS error with the matching storage sentinel.
func classify(msg string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("%s: %w: %w", msg, appstorage.ErrNotFound, err)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%s: %w: %w", msg, appstorage.ErrAccessDenied, err)
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w: %w", msg, appstorage.ErrNotFound, err)
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}
