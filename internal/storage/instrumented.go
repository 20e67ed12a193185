package storage

import (
	"context"
	"errors"
	"time"

	"github.com/intake-gateway/intake-gateway/internal/telemetry"
)

type instrumented struct {
	backend string
	next    Storage
}

// Instrument wraps s so every call is counted in storage_operations_total and timed
// in upstream_call_duration_seconds.
func Instrument(backend string, s Storage) Storage {
	if s == nil {
		return nil
	}
	return &instrumented{backend: backend, next: s}
}

func (i *instrumented) Store(ctx context.Context, obj *Object) (*Reference, error) {
	defer telemetry.ObserveUpstream("storage", "store", time.Now())
	ref, err := i.next.Store(ctx, obj)
	i.record("store", err)
	return ref, err
}

func (i *instrumented) GetMetadata(ctx context.Context, id string) (*Reference, error) {
	defer telemetry.ObserveUpstream("storage", "metadata", time.Now())
	ref, err := i.next.GetMetadata(ctx, id)
	i.record("metadata", err)
	return ref, err
}

func (i *instrumented) Probe(ctx context.Context) error {
	err := i.next.Probe(ctx)
	i.record("probe", err)
	return err
}

// Close forwards to the wrapped backend.
func (i *instrumented) Close() error {
	return Close(i.next)
}

// Unwrap returns the wrapped backend.
func (i *instrumented) Unwrap() Storage {
	return i.next
}

func (i *instrumented) record(op string, err error) {
	telemetry.StorageOperationsTotal.WithLabelValues(i.backend, op, Outcome(err)).Inc()
}

// Outcome classifies err into a metric label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrAccessDenied):
		return "denied"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
