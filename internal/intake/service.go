// Package intake turns normalized requests into stored blobs and audit rows.
//
// Each operation runs in a fixed order: validate, store (files only), then append
// exactly one row. A row is appended only after every earlier step succeeded, and an
// append failure is always returned to the caller. Nothing is retried or deduplicated.
package intake

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/intake-gateway/intake-gateway/internal/audit"
	"github.com/intake-gateway/intake-gateway/internal/config"
	"github.com/intake-gateway/intake-gateway/internal/storage"
	"github.com/intake-gateway/intake-gateway/internal/telemetry"
	"github.com/intake-gateway/intake-gateway/internal/validation"
	"github.com/intake-gateway/intake-gateway/pkg/checksum"
)

const (
	defaultTimestampFormat = "2006-01-02 15:04:05 MST"
	defaultLinkBase        = "https://drive.google.com"
)

// Service implements the submit task and submit file operations.
type Service struct {
	store    storage.Storage
	log      audit.Appender
	policy   *validation.Policy
	defaults Defaults

	loc              *time.Location
	timestampFormat  string
	linkBase         string
	verifyReferences bool
	timeout          time.Duration

	now func() time.Time
}

// TaskResult is the acknowledgement for an accepted task.
type TaskResult struct {
	// Received echoes the payload with defaults applied to absent fields
	Received map[string]any
	Row      *audit.Row
}

// FileResult is the acknowledgement for an accepted file.
type FileResult struct {
	Link      string
	Filename  string
	FileID    string
	Reference *storage.Reference
	Row       *audit.Row
}

// NewService wires the blob store and tabular store to the intake settings in cfg.
func NewService(cfg *config.Config, store storage.Storage, log audit.Appender) (*Service, error) {
	tz := cfg.Intake.Timezone
	if tz == "" {
		tz = "Europe/Sofia"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid intake timezone %q: %w", tz, err)
	}

	format := cfg.Intake.TimestampFormat
	if format == "" {
		format = defaultTimestampFormat
	}
	linkBase := cfg.Storage.LinkBase
	if linkBase == "" {
		linkBase = defaultLinkBase
	}

	policy := validation.NewPolicy(&cfg.Intake.Validation)
	slog.Info("intake service configured",
		"timezone", tz,
		"strict_validation", policy.Strict(),
		"verify_references", cfg.Intake.VerifyReferences,
		"upstream_timeout", cfg.Upstream.Timeout)

	return &Service{
		store:            store,
		log:              log,
		policy:           policy,
		defaults:         NewDefaults(&cfg.Intake.Defaults),
		loc:              loc,
		timestampFormat:  format,
		linkBase:         linkBase,
		verifyReferences: cfg.Intake.VerifyReferences,
		timeout:          cfg.Upstream.Timeout,
		now:              time.Now,
	}, nil
}

// SubmitTask logs a task description.
func (s *Service) SubmitTask(ctx context.Context, sub *Submission) (res *TaskResult, err error) {
	defer func() { s.record("task", err) }()

	if err := s.check(sub); err != nil {
		return nil, err
	}

	d := s.defaults
	taskID := sub.TaskID.Or(d.TaskID)
	row := s.newRow(sub, taskID, d.TaskActionType)
	row.Content = sub.Content.Or("Task " + taskID)
	row.Status = d.TaskStatus

	if err := s.append(ctx, row, "task"); err != nil {
		return nil, logError(err, nil, "")
	}

	received := make(map[string]any, len(sub.Raw)+4)
	for k, v := range sub.Raw {
		received[k] = v
	}
	received[FieldTaskID] = taskID
	received[FieldCommandedBy] = row.CommandedBy
	received[FieldExecutedBy] = row.ExecutedBy
	received[FieldActionType] = row.ActionType

	return &TaskResult{Received: received, Row: row}, nil
}

// SubmitFile stores uploaded bytes, or resolves an external reference, and logs the result.
// When both are present the uploaded bytes win.
func (s *Service) SubmitFile(ctx context.Context, sub *Submission) (res *FileResult, err error) {
	defer func() { s.record("file", err) }()

	if sub.File == nil && !sub.Reference.Set {
		return nil, badRequest(CodeBadRequest, "no file or drive_link provided", nil)
	}
	if err := s.check(sub); err != nil {
		return nil, err
	}

	if sub.File != nil {
		res, err = s.storeFile(ctx, sub)
	} else {
		res, err = s.resolveReference(ctx, sub)
	}
	if err != nil {
		return nil, err
	}

	d := s.defaults
	row := s.newRow(sub, sub.TaskID.Or(d.TaskID), d.FileActionType)
	row.Content = sub.Content.Or(res.Link)
	row.Status = sub.Status.Or(d.FileStatus)

	if err := s.append(ctx, row, "file"); err != nil {
		return nil, logError(err, res.Reference, res.Filename)
	}

	res.Row = row
	return res, nil
}

func (s *Service) storeFile(ctx context.Context, sub *Submission) (*FileResult, error) {
	f := sub.File
	name := f.Name
	if name == "" {
		name = sub.Filename.Or(s.defaults.Filename)
	}
	contentType := f.ContentType
	if contentType == "" {
		contentType = s.defaults.ContentType
	}

	sctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ref, err := s.store.Store(sctx, &storage.Object{
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(f.Data)),
		Body:        bytes.NewReader(f.Data),
	})
	if err != nil {
		slog.Error("blob store upload failed",
			"request_id", sub.RequestID, "operation", "store", "filename", name, "error", err)
		return nil, blobError(CodeDriveUploadFailed, err)
	}

	if ref.Checksum == "" {
		ref.Checksum = checksum.SHA256Bytes(f.Data)
	}
	if ref.Name == "" {
		ref.Name = name
	}

	return &FileResult{Link: ref.Link, Filename: ref.Name, FileID: ref.ID, Reference: ref}, nil
}

func (s *Service) resolveReference(ctx context.Context, sub *Submission) (*FileResult, error) {
	id, ok := ExtractFileID(sub.Reference.V)
	if !ok {
		return nil, badRequest(CodeInvalidReference, "invalid reference", nil)
	}
	link := CanonicalLink(s.linkBase, id)
	filename := sub.Filename.Or(id)

	ref := &storage.Reference{ID: id, Name: filename, Link: link}
	if s.verifyReferences {
		sctx, cancel := s.withTimeout(ctx)
		defer cancel()

		meta, err := s.store.GetMetadata(sctx, id)
		if err != nil {
			slog.Error("blob store lookup failed",
				"request_id", sub.RequestID, "operation", "get_metadata", "file_id", id, "error", err)
			return nil, blobError(CodeDriveLookupFailed, err)
		}
		if meta.Name != "" {
			filename = meta.Name
		}
		ref = &storage.Reference{
			ID:       id,
			Name:     filename,
			Link:     link,
			MimeType: meta.MimeType,
			Size:     meta.Size,
			Checksum: meta.Checksum,
		}
	}

	return &FileResult{Link: link, Filename: filename, FileID: id, Reference: ref}, nil
}

func (s *Service) check(sub *Submission) error {
	if err := s.policy.Check(sub.textFields()); err != nil {
		return badRequest(CodeBadRequest, err.Error(), err)
	}
	return nil
}

func (s *Service) newRow(sub *Submission, taskID, actionType string) *audit.Row {
	now := s.now()
	return &audit.Row{
		TaskID:      taskID,
		CommandedBy: sub.CommandedBy.Or(s.defaults.CommandedBy),
		ExecutedBy:  sub.ExecutedBy.Or(s.defaults.ExecutedBy),
		ActionType:  sub.ActionType.Or(actionType),
		Timestamp:   now.In(s.loc).Format(s.timestampFormat),
		RecordedAt:  now.UTC(),
		RequestID:   sub.RequestID,
	}
}

func (s *Service) append(ctx context.Context, row *audit.Row, op string) error {
	actx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.log.Append(actx, row); err != nil {
		slog.Error("audit append failed",
			"request_id", row.RequestID, "operation", op, "task_id", row.TaskID, "error", err)
		return err
	}
	return nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

func (s *Service) record(op string, err error) {
	outcome := "success"
	if err != nil {
		outcome = AsError(err).Code
	}
	telemetry.IntakeSubmissionsTotal.WithLabelValues(op, outcome).Inc()
}
