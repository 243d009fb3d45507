// Package telemetry configures structured logging for the engine and its
// services.
package telemetry

import (
	"log/slog"
	"os"
)

// ParseLevel maps a level name to a slog level. Unknown names fall back to
// info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "DEBUG", "debug":
		return slog.LevelDebug
	case "WARN", "warn":
		return slog.LevelWarn
	case "ERROR", "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger initializes and installs the default logger.
//
// format selects the handler: "text" for development, anything else gets
// JSON for production.
func SetupLogger(level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// WithSessionID returns a logger carrying the session identifier.
func WithSessionID(logger *slog.Logger, sessionID string) *slog.Logger {
	return logger.With("sessionId", sessionID)
}

// WithNodeID returns a logger carrying the node identifier.
func WithNodeID(logger *slog.Logger, nodeID string) *slog.Logger {
	return logger.With("nodeId", nodeID)
}
