package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/config"
)

const serviceName = "graylogic-presence"

// Logger is the service's structured logger. Every entry built by New
// carries service and version attributes.
type Logger struct {
	*slog.Logger
}

// New builds the logger described by cfg.
func New(cfg config.LoggingConfig, version string) *Logger {
	return build(outputFor(cfg.Output), cfg, version)
}

// Bootstrap logs JSON to stderr at info until the configuration is loaded.
func Bootstrap(version string) *Logger {
	return build(os.Stderr, config.LoggingConfig{Level: "info", Format: "json"}, version)
}

// Discard drops every entry. Components fall back to it when no logger is
// supplied.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))}
}

// With returns a child logger carrying args on every entry.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

func build(w io.Writer, cfg config.LoggingConfig, version string) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	}
	return &Logger{Logger: slog.New(h).With("service", serviceName, "version", version)}
}

func outputFor(name string) io.Writer {
	if strings.EqualFold(name, "stderr") {
		return os.Stderr
	}
	return os.Stdout
}

// parseLevel accepts slog level names in any case (including offsets such
// as "debug+2") and "warning". Anything else is info.
func parseLevel(s string) slog.Level {
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}
