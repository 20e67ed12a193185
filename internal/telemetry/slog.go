package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"
)

// SetupLogger configures the global slog default logger based on the supplied format, level
// and output strings read from application configuration.
//
// format: "json"  → JSONHandler (machine readable; recommended for production)
//
//	anything else → tint handler (human readable; colour only when stdout is a terminal)
//
// level: "debug", "info", "warn", "error" (case-insensitive); defaults to "info".
// output: "stdout" (default) or "stderr".
func SetupLogger(format, level, output string) {
	w := io.Writer(os.Stdout)
	if strings.ToLower(output) == "stderr" {
		w = os.Stderr
	}

	lvl := ParseLevel(level)
	slog.SetDefault(slog.New(NewHandler(w, format, lvl, !term.IsTerminal(int(os.Stdout.Fd())))))
	slog.Info("logger initialised", "format", format, "level", lvl.String())
}

// ParseLevel maps a configuration level string to a slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewHandler builds the handler used by SetupLogger over an arbitrary writer.
func NewHandler(w io.Writer, format string, lvl slog.Level, noColor bool) slog.Handler {
	if strings.ToLower(format) == "json" {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     lvl,
			AddSource: lvl == slog.LevelDebug, // include file:line only when debugging
		})
	}
	return tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		AddSource:  lvl == slog.LevelDebug,
		TimeFormat: time.DateTime,
		NoColor:    noColor,
	})
}
