// Package drive implements the Google Drive v3 blob store backend, the gateway's default.
// Uploads land in a single configured folder (shared drives supported) and the link
// returned to callers is the webViewLink Drive reports for the new file.
package drive

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	driveapi "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	appconfig "github.com/intake-gateway/intake-gateway/internal/config"
	"github.com/intake-gateway/intake-gateway/internal/gcpauth"
	appstorage "github.com/intake-gateway/intake-gateway/internal/storage"
)

const fileFields = "id, name, mimeType, webViewLink, size"

func init() {
	appstorage.Register("drive", func(cfg *appconfig.Config) (appstorage.Storage, error) {
		return New(context.Background(), &cfg.Google, &cfg.Storage.Drive)
	})
}

// DriveStorage implements the Storage interface for Google Drive
type DriveStorage struct {
	svc      *driveapi.Service
	folderID string
}

// New creates a Drive backend authenticated as the configured service account
func New(ctx context.Context, gcfg *appconfig.GoogleConfig, cfg *appconfig.DriveStorageConfig) (*DriveStorage, error) {
	if cfg.FolderID == "" {
		return nil, fmt.Errorf("drive folder id is required")
	}

	opts, err := gcpauth.ClientOptions(ctx, gcfg, cfg.Endpoint, gcpauth.DriveScope)
	if err != nil {
		return nil, err
	}

	svc, err := driveapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive client: %w", err)
	}

	return &DriveStorage{svc: svc, folderID: cfg.FolderID}, nil
}

// Store uploads the object into the configured folder
func (s *DriveStorage) Store(ctx context.Context, obj *appstorage.Object) (*appstorage.Reference, error) {
	meta := &driveapi.File{
		Name:     obj.Name,
		MimeType: obj.ContentType,
		Parents:  []string{s.folderID},
	}

	f, err := s.svc.Files.Create(meta).
		Media(obj.Body, googleapi.ContentType(obj.ContentType)).
		Fields(fileFields).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify("failed to upload to Drive", err)
	}
	if f.WebViewLink == "" {
		return nil, fmt.Errorf("drive returned no webViewLink for file %s", f.Id)
	}

	return toReference(f), nil
}

// GetMetadata looks up a file by id
func (s *DriveStorage) GetMetadata(ctx context.Context, id string) (*appstorage.Reference, error) {
	f, err := s.svc.Files.Get(id).
		Fields(fileFields).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify("failed to get Drive file metadata", err)
	}
	return toReference(f), nil
}

// Probe checks that the upload folder is visible to the service account
func (s *DriveStorage) Probe(ctx context.Context) error {
	_, err := s.svc.Files.Get(s.folderID).
		Fields("id").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return classify("failed to reach Drive folder", err)
	}
	return nil
}

func toReference(f *driveapi.File) *appstorage.Reference {
	return &appstorage.Reference{
		ID:       f.Id,
		Name:     f.Name,
		Link:     f.WebViewLink,
		MimeType: f.MimeType,
		Size:     f.Size,
	}
}

// classify wraps a Drive API error with the matching storage sentinel.
func classify(msg string, err error) error {
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
