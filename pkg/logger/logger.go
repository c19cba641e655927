package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. JSON on stdout; the
// log pipeline owns shipping and retention.
func New(appEnv string) *slog.Logger {
	level := slog.LevelInfo
	switch appEnv {
	case "local", "dev":
		level = slog.LevelDebug
	}

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("service", "chatdesk-core")
}
