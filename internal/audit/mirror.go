package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/intake-gateway/intake-gateway/internal/config"
	"github.com/intake-gateway/intake-gateway/internal/safego"
	"github.com/intake-gateway/intake-gateway/internal/telemetry"
)

// mirrorTimeout bounds a single background delivery to a mirror sink.
const mirrorTimeout = 30 * time.Second

// Mirror is a secondary sink and the label it reports errors under
type Mirror struct {
	Kind string
	Sink Appender
}

// Mirrored writes to a primary appender and copies accepted rows to mirrors asynchronously
type Mirrored struct {
	primary Appender
	mirrors []Mirror
	wg      sync.WaitGroup
}

// NewMirrored wraps primary with background mirrors
func NewMirrored(primary Appender, mirrors []Mirror) *Mirrored {
	return &Mirrored{primary: primary, mirrors: mirrors}
}

// newMirrors builds the enabled mirror sinks from configuration
func newMirrors(cfgs []config.AuditMirrorConfig) ([]Mirror, error) {
	var mirrors []Mirror
	for i, cfg := range cfgs {
		if !cfg.Enabled {
			continue
		}

		var (
			sink Appender
			err  error
		)
		switch cfg.Type {
		case "webhook":
			if cfg.Webhook == nil {
				err = fmt.Errorf("webhook config is required for webhook mirror")
				break
			}
			sink, err = NewWebhookSink(cfg.Webhook)
		case "file":
			if cfg.File == nil {
				err = fmt.Errorf("file config is required for file mirror")
				break
			}
			sink, err = NewFileSink(cfg.File)
		default:
			err = fmt.Errorf("unknown mirror type: %s", cfg.Type)
		}
		if err != nil {
			for _, m := range mirrors {
				_ = m.Sink.Close()
			}
			return nil, fmt.Errorf("audit mirror %d: %w", i, err)
		}

		mirrors = append(mirrors, Mirror{Kind: cfg.Type, Sink: sink})
	}
	return mirrors, nil
}

// Append writes row to the primary store. Mirrors only see rows the primary accepted.
func (m *Mirrored) Append(ctx context.Context, row *Row) error {
	if err := m.primary.Append(ctx, row); err != nil {
		return err
	}

	copied := *row
	for _, mirror := range m.mirrors {
		m.wg.Add(1)
		safego.Go("audit mirror "+mirror.Kind, func() {
			defer m.wg.Done()
			mctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
			defer cancel()
			if err := mirror.Sink.Append(mctx, &copied); err != nil {
				telemetry.AuditMirrorErrorsTotal.WithLabelValues(mirror.Kind).Inc()
				slog.Warn("audit mirror append failed",
					"sink", mirror.Kind,
					"task_id", copied.TaskID,
					"request_id", copied.RequestID,
					"error", err)
			}
		})
	}
	return nil
}

// Ping forwards to the primary store
func (m *Mirrored) Ping(ctx context.Context) error {
	if p, ok := m.primary.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close waits for in-flight mirror deliveries, then closes every sink
func (m *Mirrored) Close() error {
	m.wg.Wait()

	var errs []error
	if err := m.primary.Close(); err != nil {
		errs = append(errs, err)
	}
	for _, mirror := range m.mirrors {
		if err := mirror.Sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s mirror: %w", mirror.Kind, err))
		}
	}
	return errors.Join(errs...)
}
