package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// DefaultLogger returns a new LogrusAdapter with standard configuration.
// Output goes to stderr so that signed documents written to stdout stay clean.
func DefaultLogger() Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return NewLogrusAdapter(logger)
}

// NewLogger creates a new Logger with the specified level.
func NewLogger(level LogLevel) Logger {
	logger := DefaultLogger()
	logger.SetLevel(level)
	return logger
}

// JSONLogger returns a new LogrusAdapter with JSON formatting.
func JSONLogger(level LogLevel) Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.JSONFormatter{})

	l := NewLogrusAdapter(logger)
	l.SetLevel(level)
	return l
}

// FromSettings builds a Logger from the textual level, format ("text" or
// "json") and output ("stderr", "stdout" or a file path) settings used in
// the configuration file. Unknown level names fall back to info.
func FromSettings(level, format, output string) (Logger, error) {
	lvl, _ := ParseLevel(level)

	var logger Logger
	if format == "json" {
		logger = JSONLogger(lvl)
	} else {
		logger = NewLogger(lvl)
	}

	switch output {
	case "", "stderr":
	case "stdout":
		if oc, ok := logger.(OutputConfigurable); ok {
			oc.SetOutput(os.Stdout)
		}
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		if oc, ok := logger.(OutputConfigurable); ok {
			oc.SetOutput(f)
		}
	}
	return logger, nil
}
