// Package logging provides structured logging configuration using zerolog
// and the verbosity-filtered message sink used by the command line.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelTrace logs every request and response outcome.
	LevelTrace LogLevel = "trace"

	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelWarn,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	var output io.Writer = cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// VerbosityLevel maps a command line verbosity tag to the structured log level.
// No tag keeps the structured log quiet; every extra "v" lowers the threshold.
func VerbosityLevel(verbosity string) LogLevel {
	switch len(verbosity) {
	case 0:
		return LevelWarn
	case 1:
		return LevelInfo
	case 2:
		return LevelDebug
	default:
		return LevelTrace
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Trace: raw response payloads
//
// Debug: Detailed information for debugging
//   - Page cursors and per-page record counts
//   - Rendered batch endpoints
//   - Rate limit header parsing
//
// Info: Normal operation events
//   - Sign-in success
//   - Collection and batch start/finish
//   - Checkpoint resume
//
// Warn: Warning conditions that don't prevent operation
//   - Per-record batch failures
//   - Rate limit pauses
//   - Checkpoint store errors (batch continues)
//
// Error: Error conditions requiring attention
//   - Aborted collections
//   - Sign-in failures
//
// Context Fields:
//   - component: package emitting the event
//   - method, endpoint: request line
//   - status_code: HTTP status code
//   - error_class: client, server, network, malformed_body
//   - resource, page, limit, offset: collection cursor
//   - index: batch record index
