// Package logging provides structured logging configuration using zerolog
// for the cache middleware and server.
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

	// Configure output
	var output io.Writer = cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output}
	}

	// Create logger with timestamp
	logger := zerolog.New(output).With().Timestamp().Logger()

	// Set as global logger
	log.Logger = logger

	return logger
}

// ParseLevel converts a level name such as "warn" to a LogLevel. Unknown
// names map to LevelInfo.
func ParseLevel(name string) LogLevel {
	return LogLevel(strings.ToLower(parseLevel(LogLevel(name)).String()))
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

// Log Level Guidelines:
//
// Debug: Per request cache decisions
//   - Cache hit/miss with request key
//   - Responses stored (key, ttl, dependencies)
//   - ETag not applicable to the active policy
//
// Info: Normal operation events
//   - Server startup/shutdown
//   - Store backend selected, profiles loaded
//
// Warn: Degraded operation, request still answered
//   - Store read failures (response computed fresh)
//   - Store write or dependency counter failures (response not cached)
//
// Error: Conditions requiring attention
//   - Store backend unreachable at startup
//   - Invalid profile configuration
//
// Context Fields:
//   - component: Emitting package ("httpcache", "server")
//   - key: Request vary key
//   - namespace: Store namespace of the profile
//   - status_code: HTTP status code served
//   - cache_hit: Boolean indicating a store hit
//   - dependency / dependencies: Dependency group keys
//   - ttl: Store duration of an entry
