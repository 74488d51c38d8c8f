// Package logtrace provides the logging gate for embedding sessions and the process logger
// used by the CLI and sandbox host. It is built on zerolog.
package logtrace

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tansive/flowbridge/pkg/types"
)

// Tag is attached to every record emitted through a gate.
const Tag = "FlowBridge"

// InitLogger initializes the process-wide logger with Unix timestamps on stderr.
func InitLogger() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// NewGate returns the logger a session writes through. A disabled setting or the production
// environment yields a no-op logger regardless of level, so nothing about the session can
// leak into host logs there. Otherwise the logger emits records at or below the configured
// verbosity: ERROR admits only errors, INFO adds info, DEBUG admits everything.
func NewGate(setting types.LogSetting, env types.Environment, w io.Writer) zerolog.Logger {
	if !setting.Enabled || env == types.EnvironmentProduction || w == nil {
		return zerolog.Nop()
	}
	return zerolog.New(w).
		Level(GateLevel(setting.Level)).
		With().
		Timestamp().
		Str("tag", Tag).
		Logger()
}

// GateLevel maps a configured LogLevel onto the zerolog minimum level.
func GateLevel(level types.LogLevel) zerolog.Level {
	switch level {
	case types.LogLevelDebug:
		return zerolog.DebugLevel
	case types.LogLevelInfo:
		return zerolog.InfoLevel
	default:
		return zerolog.ErrorLevel
	}
}
