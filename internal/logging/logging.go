package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// LevelDebug is the debug log level
	LevelDebug LogLevel = iota
	// LevelInfo is the info log level
	LevelInfo
	// LevelWarn is the warning log level
	LevelWarn
	// LevelError is the error log level
	LevelError
)

var (
	currentLevel LogLevel
	levelOnce    sync.Once

	loggerMu sync.RWMutex
	logger   zerolog.Logger
)

// initLevel initializes the log level and the output logger from environment variables
func initLevel() {
	levelOnce.Do(func() {
		currentLevel = levelFromEnv()
		loggerMu.Lock()
		logger = newLogger(os.Stdout, os.Getenv("LOG_FORMAT"), currentLevel)
		loggerMu.Unlock()
	})
}

func levelFromEnv() LogLevel {
	// DEBUG wins over LOG_LEVEL
	if debug := os.Getenv("DEBUG"); debug != "" {
		switch strings.ToLower(debug) {
		case "1", "true", "yes", "on":
			return LevelDebug
		}
	}
	return ParseLevel(os.Getenv("LOG_LEVEL"))
}

// ParseLevel converts a level name to a LogLevel. Unknown names map to LevelInfo.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func newLogger(w io.Writer, format string, level LogLevel) zerolog.Logger {
	out := w
	if !strings.EqualFold(format, "json") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}
	return zerolog.New(out).With().Timestamp().Logger().Level(level.zerolog())
}

// SetOutput redirects all log output to w using the given format ("console" or "json").
func SetOutput(w io.Writer, format string) {
	initLevel()
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = newLogger(w, format, currentLevel)
}

// Logger returns the underlying zerolog logger for callers that want structured fields.
func Logger() zerolog.Logger {
	initLevel()
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// GetLevel returns the current log level
func GetLevel() LogLevel {
	initLevel()
	return currentLevel
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

// Debug logs a debug message (only if DEBUG=true or LOG_LEVEL=debug)
func Debug(format string, args ...interface{}) {
	l := Logger()
	l.Debug().Msgf(format, args...)
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	l := Logger()
	l.Info().Msgf(format, args...)
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	l := Logger()
	l.Warn().Msgf(format, args...)
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	l := Logger()
	l.Error().Msgf(format, args...)
}

// Fatal logs an error message and exits
func Fatal(format string, args ...interface{}) {
	l := Logger()
	l.Fatal().Msgf(format, args...)
}

// Printf writes a message regardless of the configured level
func Printf(format string, args ...interface{}) {
	l := Logger()
	l.Log().Msgf(format, args...)
}

// Println writes its arguments regardless of the configured level
func Println(args ...interface{}) {
	l := Logger()
	l.Log().Msg(strings.TrimSuffix(fmt.Sprintln(args...), "\n"))
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
