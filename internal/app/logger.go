package app

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Logger interface for app layer
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

const (
	levelDebug = iota
	levelInfo
	levelWarn
	levelError
)

// levelLogger writes to a single output, filtering below a minimum level
type levelLogger struct {
	output io.Writer
	min    int
}

// NewLogger creates a logger that drops messages below the given level.
// Accepted levels: debug, info, warn, error. Unknown values default to info.
func NewLogger(output io.Writer, level string) Logger {
	return &levelLogger{output: output, min: parseLevel(level)}
}

func parseLevel(level string) int {
	switch strings.ToLower(level) {
	case "debug":
		return levelDebug
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func (l *levelLogger) Debug(format string, args ...interface{}) {
	if l.min <= levelDebug {
		fmt.Fprintf(l.output, "DEBUG: "+format+"\n", args...)
	}
}

func (l *levelLogger) Info(format string, args ...interface{}) {
	if l.min <= levelInfo {
		fmt.Fprintf(l.output, "INFO: "+format+"\n", args...)
	}
}

func (l *levelLogger) Warn(format string, args ...interface{}) {
	if l.min <= levelWarn {
		fmt.Fprintf(l.output, "WARN: "+format+"\n", args...)
	}
}

func (l *levelLogger) Error(format string, args ...interface{}) {
	if l.min <= levelError {
		fmt.Fprintf(l.output, "ERROR: "+format+"\n", args...)
	}
}

// globalLogger is the logger instance used by app layer
var globalLogger Logger = &levelLogger{output: os.Stderr, min: levelInfo}

// SetLogger sets the global logger for app layer
func SetLogger(logger Logger) {
	if logger != nil {
		globalLogger = logger
	}
}

// GetLogger returns the current logger
func GetLogger() Logger {
	return globalLogger
}
