// factory.go implements the storage backend registry and factory, mapping backend type
// strings (drive, gcs, s3, azure, local) to constructor functions and dispatching NewStorage calls.
package storage

import (
	"fmt"
	"sort"
	"strings"

	"github.com/intake-gateway/intake-gateway/internal/config"
)

// Factory function type for creating storage backends
type FactoryFunc func(*config.Config) (Storage, error)

var factories = make(map[string]FactoryFunc)

// Register registers a storage backend factory
func Register(name string, factory FactoryFunc) {
	factories[name] = factory
}

// NewStorage creates a new storage backend based on configuration. The returned
// backend records per-call metrics under the backend name.
func NewStorage(cfg *config.Config) (Storage, error) {
	name := cfg.Storage.DefaultBackend
	factory, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("unsupported storage backend: %s (registered: %s)", name, strings.Join(registered(), ", "))
	}

	s, err := factory(cfg)
	if err != nil {
		return nil, err
	}
	return Instrument(name, s), nil
}

func registered() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
