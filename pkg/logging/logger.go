// Package logging provides structured logging configuration using zerolog.
// Logs always go to a side channel (stderr by default); stdout belongs to
// protocol messages.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
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

// ParseLevel validates a level name given on the command line.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return "", fmt.Errorf("unknown log level %q (want debug, info, warn or error)", s)
	}
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	// Set global log level
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	var output io.Writer = cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	// Create logger with timestamp
	logger := zerolog.New(output).With().Timestamp().Logger()

	// Set as global logger
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
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

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// ForRun tags a component logger with the run identifier shared by all
// messages of one connector invocation.
func ForRun(component, runID string) zerolog.Logger {
	return log.With().Str("component", component).Str("run_id", runID).Logger()
}

// Log Level Guidelines:
//
// Debug: request flow detail
//   - Cache operations (hit/miss, key, TTL)
//   - Conditional requests and ETags
//   - Each page cursor as it advances
//
// Info: normal operation events
//   - Run start and finish with page/record counts
//   - Connection check outcome
//   - 304 Not Modified responses
//
// Warn: conditions that don't stop the run
//   - Quota throttling
//   - Retry attempts
//   - Cache errors (fallback to direct request)
//
// Error: conditions that end the run
//   - Failed requests after retries
//   - Quota exhausted
//   - Malformed pages or missing cursor fields
//   - Configuration errors
//
// Context Fields:
//   - component: emitting package
//   - run_id: one connector invocation
//   - stream: stream name ("comics")
//   - endpoint: gateway path
//   - offset: page cursor
//   - status: HTTP status code
//   - error_class: client, server, rate_limit, network
//   - etag, ttl: cache details
