package logger

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a component-scoped zerolog logger. Every package gets its own
// via New("component") so log lines carry a consistent [component] prefix.
type Logger struct {
	*zerolog.Logger
}

// New creates a logger for a component. Level comes from LOG_LEVEL
// (debug/info/warn/error, default info); console output with timestamps.
func New(component string) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "2006-01-02 15:04:05",
		FormatMessage: func(i interface{}) string {
			return fmt.Sprintf("[%s] %v", component, i)
		},
	}

	l := zerolog.New(output).
		Level(levelFromEnv()).
		With().
		Timestamp().
		Logger()

	return &Logger{Logger: &l}
}

func levelFromEnv() zerolog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Convenience helpers mirroring the printf-style call sites in the workers.

func (l *Logger) Infof(format string, v ...interface{}) {
	l.Info().Msgf(format, v...)
}

func (l *Logger) Warnf(format string, v ...interface{}) {
	l.Warn().Msgf(format, v...)
}

func (l *Logger) Errorf(format string, v ...interface{}) {
	l.Error().Msgf(format, v...)
}

func (l *Logger) Debugf(format string, v ...interface{}) {
	l.Debug().Msgf(format, v...)
}
