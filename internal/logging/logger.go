package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LoggerConfig holds configuration for creating loggers
type LoggerConfig struct {
	Format  string     // "json" or "text"
	Level   slog.Level // minimum level
	Service string     // attached to every record as "service" when set
	Output  io.Writer  // defaults to stdout
}

// NewLogger creates the process logger. Timestamps are keyed "timestamp" so
// server and agent logs line up in the same collector.
func NewLogger(config LoggerConfig) *slog.Logger {
	out := config.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{
		Level: config.Level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				a.Key = "timestamp"
			}
			return a
		},
	}

	var handler slog.Handler
	switch strings.ToLower(config.Format) {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	logger := slog.New(handler)
	if config.Service != "" {
		logger = logger.With("service", config.Service)
	}
	return logger
}

// ParseLevel converts a level name to slog.Level. It accepts the names slog
// itself understands (case-insensitive, with offsets such as "info+2") plus
// "warning". Unknown names fall back to info.
func ParseLevel(level string) slog.Level {
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
