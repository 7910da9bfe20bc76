// Package logging configures the process-wide log/slog logger.
//
// All log output goes to stderr so that the transformed CSV can be written to
// stdout untouched. Every run gets a random run_id attribute so interleaved
// logs from parallel invocations can be told apart.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
)

type ctxKey struct{}

// isTerminal is a test seam; it reports whether w is an interactive terminal.
var isTerminal = func(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Setup builds a logger writing to w and installs it as slog's default.
//
// Level values: "debug", "info", "warn", "error" (default: "info").
// Format values: "text", "json", "auto" (default: "auto"). Auto picks text
// when w is a terminal and JSON otherwise.
func Setup(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	switch ResolveFormat(w, format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler).With("run_id", uuid.NewString())
	slog.SetDefault(logger)
	return logger
}

// ResolveFormat returns "text" or "json" for format as Setup would apply it
// to w.
func ResolveFormat(w io.Writer, format string) string {
	switch strings.ToLower(format) {
	case "json":
		return "json"
	case "text":
		return "text"
	default:
		if isTerminal(w) {
			return "text"
		}
		return "json"
	}
}

// ParseLevel converts a string log level to slog.Level.
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

// WithLogger stores l in ctx.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored by WithLogger, or slog.Default.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}
