// Package storage defines the blob store interface and common types shared by all
// storage backends of the intake gateway.
//
// New backends are added by implementing the Storage interface and registering
// with the factory via an init() function in the backend's own package:
//
//	func init() {
//	    storage.Register("mybackend", func(cfg *config.Config) (storage.Storage, error) {
//	        return NewMyBackend(cfg)
//	    })
//	}
//
// The api package imports each backend with a blank import to trigger init().
package storage

import (
	"context"
	"errors"
	"io"
)

// Sentinel errors wrapped by backends when the upstream answer can be classified.
var (
	// ErrAccessDenied means the service identity may not read or write the object or folder
	ErrAccessDenied = errors.New("storage: access denied")

	// ErrNotFound means the referenced object does not exist (or is not visible to the service identity)
	ErrNotFound = errors.New("storage: object not found")
)

// Storage defines the interface for all blob store backends
type Storage interface {
	// Store writes the object into the configured destination and returns the
	// durable reference the backend assigned to it
	Store(ctx context.Context, obj *Object) (*Reference, error)

	// GetMetadata looks up an existing object by its backend identifier
	GetMetadata(ctx context.Context, id string) (*Reference, error)

	// Probe checks that the destination is reachable with the configured credentials
	Probe(ctx context.Context) error
}

// Close releases the resources held by s when its backend keeps any (an io.Closer).
func Close(s Storage) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Object is a payload to store
type Object struct {
	// Name is the caller-facing filename
	Name string

	// ContentType is the MIME type reported by the caller
	ContentType string

	// Size is the payload length in bytes, or -1 when unknown
	Size int64

	// Body yields the payload bytes
	Body io.Reader
}

// Reference is the blob store's answer for a stored or looked-up object
type Reference struct {
	// ID is the backend identifier of the object
	ID string

	// Name is the stored filename
	Name string

	// Link is a viewable URL for the object, as reported by the backend
	Link string

	// MimeType is the content type recorded by the backend
	MimeType string

	// Size is the object size in bytes (0 when the backend does not report it)
	Size int64

	// Checksum is the SHA256 hash of the contents, when known
	Checksum string
}
