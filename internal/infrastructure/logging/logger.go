package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fluxhaus/fluxhaus-core/internal/infrastructure/config"
)

// ServiceName is attached to every log entry.
const ServiceName = "fluxhaus"

// Logger wraps slog.Logger so components can share default attributes.
//
// All methods are safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New creates a Logger writing to the destination named in cfg.
//
// The site ID is attached as a default field alongside service and version
// so that logs shipped from several households can be told apart.
func New(cfg config.LoggingConfig, version, siteID string) *Logger {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}
	return NewWithWriter(output, cfg, version, siteID)
}

// NewWithWriter creates a Logger that writes to w. Used by tests to capture output.
func NewWithWriter(w io.Writer, cfg config.LoggingConfig, version, siteID string) *Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	attrs := []slog.Attr{
		slog.String("service", ServiceName),
		slog.String("version", version),
	}
	if siteID != "" {
		attrs = append(attrs, slog.String("site", siteID))
	}

	return &Logger{Logger: slog.New(handler.WithAttrs(attrs))}
}

// parseLevel converts a string log level to slog.Level, defaulting to info.
func parseLevel(level string) slog.Level {
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

// With returns a new Logger with additional default attributes.
//
//	pollLogger := logger.With("component", "poller")
//	pollLogger.Info("refreshed") // Includes component=poller
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// Redact keeps the first four characters of a secret for identification.
func Redact(secret string) string {
	const keep = 4
	if len(secret) <= keep {
		return "****"
	}
	return secret[:keep] + "****"
}

// Default creates a logger for use before configuration is loaded.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev", "")
}
