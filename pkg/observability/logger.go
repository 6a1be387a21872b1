package observability

import (
	"log/slog"
	"os"
)

type Logger struct {
	*slog.Logger
}

// NewLogger returns a JSON slog logger tagged with the component name.
func NewLogger(component string) *Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return &Logger{slog.New(handler).With("component", component)}
}

// Named returns a child logger for a sub-component.
func (l *Logger) Named(name string) *Logger {
	return &Logger{l.With("component", name)}
}
