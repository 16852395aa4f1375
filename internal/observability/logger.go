package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger writes JSON in production and text elsewhere. level is one of
// debug, info, warn or error; an empty or unknown level picks info in
// production and debug otherwise.
func NewLogger(environment, service, level string) *slog.Logger {
	return newLogger(os.Stdout, environment, level).With(slog.String("service", service))
}

func newLogger(w io.Writer, environment, level string) *slog.Logger {
	production := environment == "production"
	opts := &slog.HandlerOptions{Level: parseLevel(level, production)}

	if production {
		opts.AddSource = true
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(level string, production bool) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if production {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}
