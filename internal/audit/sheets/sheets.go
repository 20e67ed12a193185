// Package sheets implements the Google Sheets tabular store, the gateway's default
// audit backend. Each row is appended below the last row of the configured range.
package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/sheets/v4"

	"github.com/intake-gateway/intake-gateway/internal/audit"
	"github.com/intake-gateway/intake-gateway/internal/config"
	"github.com/intake-gateway/intake-gateway/internal/gcpauth"
)

func init() {
	audit.Register("sheets", func(cfg *config.Config) (audit.Appender, error) {
		return New(context.Background(), &cfg.Google, &cfg.Audit.Sheets)
	})
}

// Appender writes rows with spreadsheets.values.append
type Appender struct {
	svc              *sheets.Service
	spreadsheetID    string
	rng              string
	valueInputOption string
}

// New creates a Sheets appender authenticated as the configured service account
func New(ctx context.Context, gcfg *config.GoogleConfig, cfg *config.SheetsAuditConfig) (*Appender, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	if cfg.Range == "" {
		return nil, fmt.Errorf("sheet range is required")
	}

	opts, err := gcpauth.ClientOptions(ctx, gcfg, cfg.Endpoint, gcpauth.SpreadsheetsScope)
	if err != nil {
		return nil, err
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Sheets client: %w", err)
	}

	vio := cfg.ValueInputOption
	if vio == "" {
		vio = "USER_ENTERED"
	}

	return &Appender{
		svc:              svc,
		spreadsheetID:    cfg.SpreadsheetID,
		rng:              cfg.Range,
		valueInputOption: vio,
	}, nil
}

// Append writes one row of seven columns
func (a *Appender) Append(ctx context.Context, row *audit.Row) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{row.Values()}}

	_, err := a.svc.Spreadsheets.Values.Append(a.spreadsheetID, a.rng, vr).
		ValueInputOption(a.valueInputOption).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append row to sheet %s: %w", a.spreadsheetID, err)
	}
	return nil
}

// Ping fetches the spreadsheet's id to confirm access
func (a *Appender) Ping(ctx context.Context) error {
	if _, err := a.svc.Spreadsheets.Get(a.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to access sheet %s: %w", a.spreadsheetID, err)
	}
	return nil
}

// Close is a no-op; the Sheets client has no resources to release
func (a *Appender) Close() error {
	return nil
}
