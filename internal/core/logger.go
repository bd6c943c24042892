// AngelaMos | 2026
// logger.go

package core

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/carterperez-dev/taskmanager/internal/config"
)

// NewLogger builds the process logger. Both binaries install it with
// slog.SetDefault so packages can log through slog directly.
func NewLogger(cfg config.LogConfig, env string) *slog.Logger {
	return newLogger(os.Stdout, cfg, env)
}

func newLogger(w io.Writer, cfg config.LogConfig, env string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: env == "production",
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}

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
