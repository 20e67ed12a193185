// Package azure implements the Azure Blob Storage blob store backend. Objects are uploaded
// as block blobs keyed by a generated UUID; the caller's filename and the SHA256 checksum
// are kept in blob metadata. Links point at the blob URL, or at the CDN when one fronts
// the container.
package azure

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/google/uuid"

	"github.com/intake-gateway/intake-gateway/internal/config"
	"github.com/intake-gateway/intake-gateway/internal/storage"
	"github.com/intake-gateway/intake-gateway/pkg/checksum"
)

func init() {
	// Register Azure storage backend
	storage.Register("azure", func(cfg *config.Config) (storage.Storage, error) {
		return New(&cfg.Storage.Azure)
	})
}

// AzureStorage implements the Storage interface for Azure Blob Storage
type AzureStorage struct {
	client        *azblob.Client
	containerName string
	prefix        string
	cdnURL        string
}

// New creates a new Azure Blob Storage backend
func New(cfg *config.AzureStorageConfig) (*AzureStorage, error) {
	if cfg.AccountName == "" {
		return nil, fmt.Errorf("azure storage account name is required")
	}
	if cfg.AccountKey == "" {
		return nil, fmt.Errorf("azure storage account key is required")
	}
	if cfg.ContainerName == "" {
		return nil, fmt.Errorf("azure storage container name is required")
	}

	credential, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName)

	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure Blob client: %w", err)
	}

	return &AzureStorage{
		client:        client,
		containerName: cfg.ContainerName,
		prefix:        cfg.Prefix,
		cdnURL:        strings.TrimRight(cfg.CDNURL, "/"),
	}, nil
}

// Store uploads the object as a block blob under <prefix><uuid>
func (s *AzureStorage) Store(ctx context.Context, obj *storage.Object) (*storage.Reference, error) {
	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	sum := checksum.SHA256Bytes(data)

	id := uuid.NewString()
	key := s.prefix + id

	blobClient := s.client.ServiceClient().NewContainerClient(s.containerName).NewBlockBlobClient(key)
	_, err = blobClient.Upload(ctx, streaming.NopCloser(bytes.NewReader(data)), &blockblob.UploadOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &obj.ContentType},
		Metadata: map[string]*string{
			"filename": &obj.Name,
			"sha256":   &sum,
		},
	})
	if err != nil {
		return nil, classify("failed to upload to Azure Blob", err)
	}

	return &storage.Reference{
		ID:       id,
		Name:     obj.Name,
		Link:     s.link(key),
		MimeType: obj.ContentType,
		Size:     int64(len(data)),
		Checksum: sum,
	}, nil
}

// GetMetadata retrieves blob properties without downloading the blob
func (s *AzureStorage) GetMetadata(ctx context.Context, id string) (*storage.Reference, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("azure blob %q: %w", id, storage.ErrNotFound)
	}
	key := s.prefix + id

	blobClient := s.client.ServiceClient().NewContainerClient(s.containerName).NewBlobClient(key)
	props, err := blobClient.GetProperties(ctx, nil)
	if err != nil {
		return nil, classify("failed to get blob properties", err)
	}

	ref := &storage.Reference{
		ID:       id,
		Name:     metaValue(props.Metadata, "filename"),
		Link:     s.link(key),
		Checksum: metaValue(props.Metadata, "sha256"),
	}
	if ref.Name == "" {
		ref.Name = id
	}
	if props.ContentType != nil {
		ref.MimeType = *props.ContentType
	}
	if props.ContentLength != nil {
		ref.Size = *props.ContentLength
	}
	return ref, nil
}

// Probe checks that the container is reachable
func (s *AzureStorage) Probe(ctx context.Context) error {
	_, err := s.client.ServiceClient().NewContainerClient(s.containerName).GetProperties(ctx, nil)
	if err != nil {
		return classify("failed to reach Azure container", err)
	}
	return nil
}

func (s *AzureStorage) link(key string) string {
	if s.cdnURL != "" {
		return fmt.Sprintf("%s/%s", s.cdnURL, key)
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.client.URL(), "/"), s.containerName, key)
}

// metaValue looks a metadata key up case-insensitively; the service canonicalises header names.
func metaValue(m map[string]*string, key string) string {
	for k, v := range m {
		if strings.EqualFold(k, key) && v != nil {
			return *v
		}
	}
	return ""
}

// classify wraps an Azure error with the matching storage sentinel.
func classify(msg string, err error) error {
	switch {
	case bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound, bloberror.ResourceNotFound):
		return fmt.Errorf("%s: %w: %w", msg, storage.ErrNotFound, err)
	case bloberror.HasCode(err,
		bloberror.AuthorizationFailure,
		bloberror.AuthenticationFailed,
		bloberror.AuthorizationPermissionMismatch,
		bloberror.InsufficientAccountPermissions):
		return fmt.Errorf("%s: %w: %w", msg, storage.ErrAccessDenied, err)
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w: %w", msg, storage.ErrNotFound, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%s: %w: %w", msg, storage.ErrAccessDenied, err)
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}
