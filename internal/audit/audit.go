// Package audit writes one row per processed intake request to a tabular store.
//
// The primary store is selected by audit.backend and is written synchronously: a
// failed append is surfaced to the caller. Additional sinks listed under audit.mirrors
// receive a copy of every accepted row in the background; their failures are logged
// and counted but never change the response.
//
// Backends register themselves through Register from an init() function. The file and
// webhook sinks live in this package; sheets and postgres live in subpackages and are
// blank-imported by the api package.
package audit

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/intake-gateway/intake-gateway/internal/config"
	"github.com/intake-gateway/intake-gateway/internal/telemetry"
)

// Appender defines the interface for all tabular store backends
type Appender interface {
	// Append writes exactly one row
	Append(ctx context.Context, row *Row) error
	// Close releases any resources held by the backend
	Close() error
}

// Pinger is implemented by backends that can report readiness
type Pinger interface {
	Ping(ctx context.Context) error
}

// FactoryFunc creates a tabular store backend
type FactoryFunc func(*config.Config) (Appender, error)

var factories = make(map[string]FactoryFunc)

// Register registers a tabular store backend factory
func Register(name string, factory FactoryFunc) {
	factories[name] = factory
}

// New creates the primary backend selected by audit.backend, instrumented and
// wrapped with any enabled mirrors.
func New(cfg *config.Config) (Appender, error) {
	name := cfg.Audit.Backend
	factory, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("unsupported audit backend: %s (registered: %s)", name, strings.Join(registered(), ", "))
	}

	primary, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s audit backend: %w", name, err)
	}

	mirrors, err := newMirrors(cfg.Audit.Mirrors)
	if err != nil {
		_ = primary.Close()
		return nil, err
	}

	app := Instrument(name, primary)
	if len(mirrors) == 0 {
		return app, nil
	}
	return NewMirrored(app, mirrors), nil
}

func registered() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type instrumented struct {
	backend string
	next    Appender
}

// Instrument wraps a so every append is counted in audit_appends_total and timed in
// upstream_call_duration_seconds.
func Instrument(backend string, a Appender) Appender {
	return &instrumented{backend: backend, next: a}
}

func (i *instrumented) Append(ctx context.Context, row *Row) error {
	defer telemetry.ObserveUpstream("audit", "append", time.Now())
	err := i.next.Append(ctx, row)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	telemetry.AuditAppendsTotal.WithLabelValues(i.backend, outcome).Inc()
	return err
}

func (i *instrumented) Close() error {
	return i.next.Close()
}

// Ping forwards to the wrapped backend when it supports readiness checks.
func (i *instrumented) Ping(ctx context.Context) error {
	if p, ok := i.next.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
