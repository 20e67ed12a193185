// Package postgres implements a PostgreSQL tabular store writing to the audit_rows table.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/intake-gateway/intake-gateway/internal/audit"
	"github.com/intake-gateway/intake-gateway/internal/config"
	"github.com/intake-gateway/intake-gateway/internal/db"
	"github.com/intake-gateway/intake-gateway/internal/telemetry"
)

const insertRow = `
	INSERT INTO audit_rows (id, task_id, commanded_by, executed_by, action_type, content, timestamp, status, request_id, recorded_at)
	VALUES (:id, :task_id, :commanded_by, :executed_by, :action_type, :content, :timestamp, :status, :request_id, :recorded_at)
`

func init() {
	audit.Register("postgres", func(cfg *config.Config) (audit.Appender, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		database, err := db.Connect(ctx, &cfg.Audit.Database)
		if err != nil {
			return nil, err
		}
		if err := db.RunMigrations(database.DB, "up"); err != nil {
			database.Close()
			return nil, err
		}
		if cfg.Telemetry.Metrics.Enabled {
			telemetry.StartDBStatsCollector(database.DB)
		}
		return New(database), nil
	})
}

type record struct {
	ID string `db:"id"`
	audit.Row
}

// Appender inserts one audit_rows record per row
type Appender struct {
	db *sqlx.DB
}

// New wraps an open database handle
func New(database *sqlx.DB) *Appender {
	return &Appender{db: database}
}

// Append inserts the row with a fresh id
func (a *Appender) Append(ctx context.Context, row *audit.Row) error {
	rec := record{ID: uuid.New().String(), Row: *row}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}

	if _, err := a.db.NamedExecContext(ctx, insertRow, rec); err != nil {
		return fmt.Errorf("failed to insert audit row: %w", err)
	}
	return nil
}

// Ping checks the database connection
func (a *Appender) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// Close closes the connection pool
func (a *Appender) Close() error {
	return a.db.Close()
}
