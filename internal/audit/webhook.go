package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/intake-gateway/intake-gateway/internal/config"
)

func init() {
	Register("webhook", func(cfg *config.Config) (Appender, error) {
		return NewWebhookSink(&cfg.Audit.Webhook)
	})
}

// WebhookSink POSTs every row as a JSON object to an HTTP endpoint
type WebhookSink struct {
	cfg    *config.WebhookAuditConfig
	client *http.Client
}

// NewWebhookSink creates a webhook sink
func NewWebhookSink(cfg *config.WebhookAuditConfig) (*WebhookSink, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook url is required")
	}

	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &WebhookSink{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Append sends a row to the webhook
func (ws *WebhookSink) Append(ctx context.Context, row *Row) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal audit row: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ws.cfg.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if row.RequestID != "" {
		req.Header.Set("X-Request-ID", row.RequestID)
	}
	for k, v := range ws.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := ws.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// Close is a no-op; the HTTP client holds no per-sink resources
func (ws *WebhookSink) Close() error {
	return nil
}
