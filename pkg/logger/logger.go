package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger
type Logger struct {
	zerolog.Logger
}

// New creates a logger tagged with the service name. Development gets a
// human readable console writer at debug level; every other environment
// logs JSON lines to stdout at info level.
func New(serviceName string, environment string) *Logger {
	if environment == "development" {
		l := NewWithWriter(serviceName, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
		l.Logger = l.Logger.Level(zerolog.DebugLevel)
		return l
	}

	l := NewWithWriter(serviceName, os.Stdout)
	l.Logger = l.Logger.Level(zerolog.InfoLevel)
	return l
}

// NewWithWriter builds a logger on an arbitrary writer
func NewWithWriter(serviceName string, w io.Writer) *Logger {
	return &Logger{
		Logger: zerolog.New(w).With().Timestamp().Str("service", serviceName).Logger(),
	}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// WithRequestID returns a logger with the request ID attached
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{Logger: l.Logger.With().Str("request_id", requestID).Logger()}
}

// WithComponent returns a logger with the component name attached
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.Logger.With().Str("component", component).Logger()}
}
