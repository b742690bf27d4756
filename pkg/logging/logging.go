package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

/*
Setup installs a JSON logger on stdout as the slog default. Every record
carries the app name and version.
*/
func Setup(level, app, version string) *slog.Logger {
	return SetupWriter(os.Stdout, level, app, version)
}

func SetupWriter(w io.Writer, level, app, version string) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})).With(
		slog.String("app", app),
		slog.String("version", version),
	)

	slog.SetDefault(logger)
	return logger
}
