package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger creates a slog.Logger writing to stdout based on LOG_LEVEL and LOG_FORMAT.
func NewLogger(levelString string, formatString string) *slog.Logger {
	return NewLoggerWithWriter(os.Stdout, levelString, formatString)
}

// NewLoggerWithWriter creates a slog.Logger writing to output.
// Format "json" selects the JSON handler; anything else yields text.
func NewLoggerWithWriter(output io.Writer, levelString string, formatString string) *slog.Logger {
	handlerOptions := &slog.HandlerOptions{
		Level: parseLevel(levelString),
	}

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(formatString)) {
	case "json":
		handler = slog.NewJSONHandler(output, handlerOptions)
	default:
		handler = slog.NewTextHandler(output, handlerOptions)
	}
	return slog.New(handler)
}

func parseLevel(levelString string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(levelString)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
