// Package logger provides the process-wide structured logger.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Logger is the global logger instance.
var Logger = newLogger(os.Stderr, log.InfoLevel)

func newLogger(w io.Writer, level log.Level) *log.Logger {
	l := log.New(w)
	l.SetTimeFormat("")
	l.SetLevel(level)
	return l
}

// Configure sets the level and output. The flag value wins over
// PRONYFIT_LOG_LEVEL; unknown levels fall back to info.
func Configure(level string, w io.Writer) {
	if level == "" {
		level = os.Getenv("PRONYFIT_LOG_LEVEL")
	}
	if w == nil {
		w = os.Stderr
	}
	Logger = newLogger(w, ParseLevel(level))
}

// ParseLevel converts a level name to a log level.
func ParseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

// Debug logs a debug message with optional key-value pairs.
func Debug(msg interface{}, keyvals ...interface{}) {
	Logger.Debug(msg, keyvals...)
}

// Info logs an info message with optional key-value pairs.
func Info(msg interface{}, keyvals ...interface{}) {
	Logger.Info(msg, keyvals...)
}

// Warn logs a warning message with optional key-value pairs.
func Warn(msg interface{}, keyvals ...interface{}) {
	Logger.Warn(msg, keyvals...)
}

// Error logs an error message with optional key-value pairs.
func Error(msg interface{}, keyvals ...interface{}) {
	Logger.Error(msg, keyvals...)
}
