// Package logging provides a structured logging abstraction for go-xmlsign.
// It wraps logrus behind a small Logger interface so that packages depend on
// the interface rather than on a concrete logging implementation.
package logging

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogLevel represents the severity of a log message.
type LogLevel int

const (
	// DebugLevel logs detailed debugging information (most verbose).
	DebugLevel LogLevel = iota
	// InfoLevel logs normal operation messages.
	InfoLevel
	// WarnLevel logs warning conditions.
	WarnLevel
	// ErrorLevel logs error conditions.
	ErrorLevel
	// FatalLevel logs critical conditions and terminates the application.
	FatalLevel
)

// ParseLevel converts a level name such as "debug" or "info" into a LogLevel.
// Unknown names return InfoLevel and false.
func ParseLevel(name string) (LogLevel, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return DebugLevel, true
	case "info":
		return InfoLevel, true
	case "warn", "warning":
		return WarnLevel, true
	case "error":
		return ErrorLevel, true
	case "fatal":
		return FatalLevel, true
	default:
		return InfoLevel, false
	}
}

// Field is a single structured key/value pair attached to a log message.
type Field struct {
	Key   string
	Value any
}

// F creates a structured logging field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Logger is the logging interface used throughout go-xmlsign.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	SetLevel(level LogLevel)
	GetLevel() LogLevel
}

// OutputConfigurable is implemented by loggers whose output destination
// can be redirected after construction.
type OutputConfigurable interface {
	SetOutput(w io.Writer)
}

// LogrusAdapter adapts a logrus.Logger to the Logger interface.
type LogrusAdapter struct {
	logger *logrus.Logger
}

// NewLogrusAdapter wraps an existing logrus.Logger.
func NewLogrusAdapter(logger *logrus.Logger) *LogrusAdapter {
	return &LogrusAdapter{logger: logger}
}

func (l *LogrusAdapter) withFields(fields []Field) *logrus.Entry {
	logrusFields := make(logrus.Fields, len(fields))
	for _, f := range fields {
		logrusFields[f.Key] = f.Value
	}
	return l.logger.WithFields(logrusFields)
}

// Debug logs a message at debug level.
func (l *LogrusAdapter) Debug(msg string, fields ...Field) {
	l.withFields(fields).Debug(msg)
}

// Info logs a message at info level.
func (l *LogrusAdapter) Info(msg string, fields ...Field) {
	l.withFields(fields).Info(msg)
}

// Warn logs a message at warn level.
func (l *LogrusAdapter) Warn(msg string, fields ...Field) {
	l.withFields(fields).Warn(msg)
}

// Error logs a message at error level.
func (l *LogrusAdapter) Error(msg string, fields ...Field) {
	l.withFields(fields).Error(msg)
}

// Fatal logs a message at fatal level and exits.
func (l *LogrusAdapter) Fatal(msg string, fields ...Field) {
	l.withFields(fields).Fatal(msg)
}

// SetLevel sets the minimum severity of messages that are logged.
func (l *LogrusAdapter) SetLevel(level LogLevel) {
	l.logger.SetLevel(toLogrusLevel(level))
}

// GetLevel returns the current minimum severity.
func (l *LogrusAdapter) GetLevel() LogLevel {
	switch l.logger.GetLevel() {
	case logrus.DebugLevel, logrus.TraceLevel:
		return DebugLevel
	case logrus.InfoLevel:
		return InfoLevel
	case logrus.WarnLevel:
		return WarnLevel
	case logrus.ErrorLevel:
		return ErrorLevel
	default:
		return FatalLevel
	}
}

// SetOutput redirects log output to the given writer.
func (l *LogrusAdapter) SetOutput(w io.Writer) {
	l.logger.SetOutput(w)
}

func toLogrusLevel(level LogLevel) logrus.Level {
	switch level {
	case DebugLevel:
		return logrus.DebugLevel
	case InfoLevel:
		return logrus.InfoLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	default:
		return logrus.FatalLevel
	}
}
