package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/intake-gateway/intake-gateway/internal/config"
)

func init() {
	Register("file", func(cfg *config.Config) (Appender, error) {
		return NewFileSink(&cfg.Audit.File)
	})
}

// openAuditFile opens path for appending; replaced in tests
var openAuditFile = func(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600) // #nosec G304 -- operator-configured path
}

// FileSink appends rows as JSON lines to a local file with size-based rotation
type FileSink struct {
	cfg  *config.FileAuditConfig
	file *os.File
	mu   sync.Mutex
}

// NewFileSink opens (or creates) the target file for appending
func NewFileSink(cfg *config.FileAuditConfig) (*FileSink, error) {
	file, err := openAuditFile(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}

	return &FileSink{
		cfg:  cfg,
		file: file,
	}, nil
}

// Append writes a row to the file
func (fs *FileSink) Append(ctx context.Context, row *Row) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.cfg.MaxSizeMB > 0 {
		info, err := fs.file.Stat()
		if err == nil && info.Size() > int64(fs.cfg.MaxSizeMB)*1024*1024 {
			if err := fs.rotate(); err != nil {
				slog.Error("failed to rotate audit file", "path", fs.cfg.Path, "error", err)
			}
		}
	}

	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal audit row: %w", err)
	}

	if _, err := fs.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write audit row: %w", err)
	}

	return nil
}

// Ping reports whether the file is still writable
func (fs *FileSink) Ping(ctx context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, err := fs.file.Stat(); err != nil {
		return fmt.Errorf("audit file unavailable: %w", err)
	}
	return nil
}

// rotate shifts <path>.N backups up by one and starts a fresh file. When the
// fresh file cannot be opened the current one is moved back and stays in use.
func (fs *FileSink) rotate() error {
	for i := fs.cfg.MaxBackups - 1; i >= 1; i-- {
		oldPath := fmt.Sprintf("%s.%d", fs.cfg.Path, i)
		newPath := fmt.Sprintf("%s.%d", fs.cfg.Path, i+1)
		_ = os.Rename(oldPath, newPath)
	}

	_ = os.Rename(fs.cfg.Path, fs.cfg.Path+".1")

	if fs.cfg.MaxBackups > 0 {
		_ = os.Remove(fmt.Sprintf("%s.%d", fs.cfg.Path, fs.cfg.MaxBackups+1))
	}

	file, err := openAuditFile(fs.cfg.Path)
	if err != nil {
		_ = os.Rename(fs.cfg.Path+".1", fs.cfg.Path)
		return err
	}

	if err := fs.file.Close(); err != nil {
		slog.Warn("failed to close rotated audit file", "path", fs.cfg.Path+".1", "error", err)
	}
	fs.file = file
	return nil
}

// Close closes the file
func (fs *FileSink) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.file.Close()
}
