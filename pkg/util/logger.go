package util

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	outputMu sync.RWMutex
	output   io.Writer = os.Stdout
)

// SetOutput redirects loggers created afterwards. The MCP server sends logs to
// stderr because stdout carries the protocol.
func SetOutput(w io.Writer) {
	outputMu.Lock()
	defer outputMu.Unlock()
	output = w
}

// NewLogger returns a configured zerolog.Logger with the specified log level.
func NewLogger(level zerolog.Level) zerolog.Logger {
	outputMu.RLock()
	out := output
	outputMu.RUnlock()
	return NewLoggerTo(out, level)
}

// NewLoggerTo is NewLogger with an explicit writer.
func NewLoggerTo(out io.Writer, level zerolog.Level) zerolog.Logger {
	var logger zerolog.Logger
	stage := os.Getenv("STAGE")
	if strings.EqualFold(stage, "local") {
		// Pretty printing for development
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).
			With().
			Str("app", "caselaw-"+stage).
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(out).
			With().
			Timestamp().
			Str("app", "caselaw-"+stage).
			Logger()
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(level)

	return logger
}

// LevelFromString maps a LOG_LEVEL value to a zerolog level, defaulting to error.
func LevelFromString(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// LevelFromEnv reads LOG_LEVEL.
func LevelFromEnv() zerolog.Level {
	return LevelFromString(os.Getenv("LOG_LEVEL"))
}
