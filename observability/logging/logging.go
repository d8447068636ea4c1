package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
)

// Setup configures structured JSON logging for the service and returns the
// base logger. All lines carry the service name and, when provided, the
// environment. The standard library logger is bridged so dependencies keep
// working.
func Setup(service, env string) *slog.Logger {
	return SetupWithWriter(os.Stdout, service, env)
}

// SetupWithWriter is Setup with an explicit sink, used by tests.
func SetupWithWriter(w io.Writer, service, env string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})

	attrs := []any{slog.String("service", strings.TrimSpace(service))}
	if env = strings.TrimSpace(env); env != "" {
		attrs = append(attrs, slog.String("env", env))
	}
	base := slog.New(handler).With(attrs...)
	slog.SetDefault(base)

	stdBridge := slog.NewLogLogger(handler, slog.LevelInfo)
	stdBridge.SetFlags(0)
	log.SetOutput(stdBridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return base
}
