// Package logging provides consistent structured logging using slog.
//
// All hauntsync processes emit one line per record in a fixed format so the
// scrape, load, and maintenance commands interleave cleanly in the same files:
//
//	2026-01-06T14:05:52Z [hauntsync] LEVEL message key=value...
//
// Usage:
//
//	// Initialize once at startup
//	logging.Init("hauntsync")
//
//	// Then use slog directly throughout the codebase
//	slog.Info("Pipeline started", "job", "volunteers")
//	slog.Error("Login failed", "portal", "ivolunteer", "error", err)
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LineHandler implements slog.Handler with the single-line hauntsync format.
type LineHandler struct {
	source string
	level  slog.Level
	writer io.Writer
	attrs  []slog.Attr
	groups []string
}

// NewHandler creates a handler writing the single-line format to w.
func NewHandler(source string, w io.Writer, level slog.Level) *LineHandler {
	return &LineHandler{
		source: source,
		writer: w,
		level:  level,
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *LineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle formats and writes the log record.
func (h *LineHandler) Handle(_ context.Context, r slog.Record) error {
	var buf strings.Builder
	buf.WriteString(r.Time.UTC().Format("2006-01-02T15:04:05Z"))
	buf.WriteString(" [")
	buf.WriteString(h.source)
	buf.WriteString("] ")
	buf.WriteString(r.Level.String())
	buf.WriteString(" ")
	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		writeAttr(&buf, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&buf, a)
		return true
	})

	buf.WriteString("\n")

	_, err := io.WriteString(h.writer, buf.String())
	return err
}

func writeAttr(buf *strings.Builder, a slog.Attr) {
	buf.WriteString(" ")
	buf.WriteString(a.Key)
	buf.WriteString("=")
	fmt.Fprintf(buf, "%v", a.Value.Any())
}

// WithAttrs returns a new handler with the given attributes.
func (h *LineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &LineHandler{
		source: h.source,
		writer: h.writer,
		level:  h.level,
		attrs:  merged,
		groups: h.groups,
	}
}

// WithGroup returns a new handler with the given group.
func (h *LineHandler) WithGroup(name string) slog.Handler {
	return &LineHandler{
		source: h.source,
		writer: h.writer,
		level:  h.level,
		attrs:  h.attrs,
		groups: append(append([]string{}, h.groups...), name),
	}
}

// NewLogger creates a new slog logger with the line format, level from LOG_LEVEL.
func NewLogger(source string, w io.Writer) *slog.Logger {
	return NewLoggerWithLevel(source, w, getLevelFromEnv())
}

// NewLoggerWithLevel creates a new slog logger with an explicit level.
func NewLoggerWithLevel(source string, w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(NewHandler(source, w, level))
}

// getLevelFromEnv returns the log level from the LOG_LEVEL environment variable.
func getLevelFromEnv() slog.Level {
	switch strings.ToUpper(os.Getenv("LOG_LEVEL")) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init initializes the default slog logger with the given source tag.
func Init(source string) {
	InitWithWriter(source, os.Stdout)
}

// InitWithWriter initializes the default slog logger with a custom writer (for testing).
func InitWithWriter(source string, w io.Writer) {
	slog.SetDefault(NewLogger(source, w))
}
