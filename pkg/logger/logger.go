package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger with additional context
type Logger struct {
	zerolog.Logger
}

// Config holds logger configuration
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json or console
	Output string // stdout, stderr or file path
}

// New creates a new logger with the given configuration
func New(cfg Config) *Logger {
	var output io.Writer = os.Stdout

	// Set output
	switch cfg.Output {
	case "", "stdout":
	case "stderr":
		output = os.Stderr
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err == nil {
			output = file
		}
	}

	// Set format
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	// Parse level
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Caller().
		Logger()

	return &Logger{Logger: logger}
}

// Default creates a default console logger
func Default() *Logger {
	return New(Config{
		Level:  "info",
		Format: "console",
		Output: "stderr",
	})
}

// WithComponent adds a component field to the logger
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.With().Str("component", component).Logger(),
	}
}

// WithRunID adds a generation run ID to the logger
func (l *Logger) WithRunID(runID string) *Logger {
	return &Logger{
		Logger: l.With().Str("run_id", runID).Logger(),
	}
}

// WithEventID adds a warehouse event ID to the logger
func (l *Logger) WithEventID(eventID string) *Logger {
	return &Logger{
		Logger: l.With().Str("event_id", eventID).Logger(),
	}
}

// WithContent adds the event/angle pair a content item is generated for
func (l *Logger) WithContent(eventID, angle string) *Logger {
	return &Logger{
		Logger: l.With().
			Str("event_id", eventID).
			Str("angle", angle).
			Logger(),
	}
}

// Nop returns a logger that discards everything (used by tests)
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}
