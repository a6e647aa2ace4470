package logger

import (
	"log/slog"
	"os"
)

// New returns a JSON slog logger writing to stdout. Local environments log at
// debug level.
func New(environment string) *slog.Logger {
	level := slog.LevelInfo
	if environment == "local" || environment == "development" {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("service", "idv")
}
