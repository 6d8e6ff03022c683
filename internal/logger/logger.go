// Package logger provides leveled logging for dvhgrab.
// Diagnostics go to stderr so that exported results on stdout stay clean.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Level represents a logging level
type Level int

const (
	// DebugLevel logs per-entry and per-structure details.
	DebugLevel Level = iota
	// InfoLevel is the default logging priority.
	InfoLevel
	// WarnLevel logs skipped archive entries and failed structures.
	WarnLevel
	// ErrorLevel logs failures that abort a command.
	ErrorLevel
)

// String returns the lowercase name of the level
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	default:
		return "info"
	}
}

// ParseLevel parses a level name (case-insensitive)
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", s)
	}
}

// Logger provides leveled logging
type Logger struct {
	level  Level
	logger *log.Logger
}

var defaultLogger = New(os.Stderr, WarnLevel, "text")

// New creates a logger writing to w.
func New(w io.Writer, level Level, format string) *Logger {
	flags := log.LstdFlags
	if strings.ToLower(format) == "text" {
		flags |= log.Lshortfile
	}
	return &Logger{level: level, logger: log.New(w, "", flags)}
}

// Init replaces the default logger with the specified level and format.
// Unknown levels fall back to info.
func Init(level string, format string) {
	l, err := ParseLevel(level)
	if err != nil {
		l = InfoLevel
	}
	defaultLogger = New(os.Stderr, l, format)
}

// SetOutput redirects the default logger, keeping its level.
func SetOutput(w io.Writer) {
	defaultLogger.logger.SetOutput(w)
}

// CurrentLevel returns the level of the default logger
func CurrentLevel() Level {
	return defaultLogger.level
}

func (l *Logger) output(level Level, tag, format string, args ...interface{}) {
	if l == nil || l.level > level {
		return
	}
	_ = l.logger.Output(3, fmt.Sprintf("["+tag+"] "+format, args...))
}

// Debug logs a message at DebugLevel
func Debug(format string, args ...interface{}) {
	defaultLogger.output(DebugLevel, "DEBUG", format, args...)
}

// Info logs a message at InfoLevel
func Info(format string, args ...interface{}) {
	defaultLogger.output(InfoLevel, "INFO", format, args...)
}

// Warn logs a message at WarnLevel
func Warn(format string, args ...interface{}) {
	defaultLogger.output(WarnLevel, "WARN", format, args...)
}

// Error logs a message at ErrorLevel
func Error(format string, args ...interface{}) {
	defaultLogger.output(ErrorLevel, "ERROR", format, args...)
}

// Fatal logs a message and exits
func Fatal(format string, args ...interface{}) {
	_ = defaultLogger.logger.Output(2, fmt.Sprintf("[FATAL] "+format, args...))
	os.Exit(1)
}
