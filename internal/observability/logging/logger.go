package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

func NewJSONLogger(service, level string) *slog.Logger {
	return NewJSONLoggerTo(os.Stdout, service, level)
}

// NewJSONLoggerTo writes to w. The CLI and the MCP server log to stderr
// because stdout carries command output.
func NewJSONLoggerTo(w io.Writer, service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       parseLevel(level),
		ReplaceAttr: expandError,
	})
	return slog.New(handler).With("service", service)
}

// expandError renders an "error" attribute as its message plus the failure
// reason, so capability failures can be grouped without parsing messages.
func expandError(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) > 0 || attr.Key != "error" {
		return attr
	}
	err, ok := attr.Value.Any().(error)
	if !ok || err == nil {
		return attr
	}
	return slog.Group("error",
		slog.String("message", err.Error()),
		slog.String("reason", domain.FailureReason(err)),
	)
}

func parseLevel(level string) slog.Level {
	var parsed slog.Level
	switch normalized := strings.ToLower(strings.TrimSpace(level)); normalized {
	case "warning":
		return slog.LevelWarn
	case "":
		return slog.LevelInfo
	default:
		if err := parsed.UnmarshalText([]byte(normalized)); err != nil {
			return slog.LevelInfo
		}
		return parsed
	}
}
