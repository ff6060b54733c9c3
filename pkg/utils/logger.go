// Package utils provides shared utilities for the gateway.
package utils

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/modelmux/modelmux/pkg/types"
)

// Logger wraps logrus.Logger with gateway-specific helpers.
type Logger struct {
	*logrus.Logger
}

// NewLogger creates a logger from the logging configuration.
func NewLogger(config *types.LoggingConfig) *Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if config.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}

	var output io.Writer = os.Stdout
	if config.Output == "stderr" {
		output = os.Stderr
	} else if config.Output != "" && config.Output != "stdout" {
		file, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			logger.WithError(err).Error("Failed to open log file, falling back to stdout")
		} else {
			output = file
		}
	}
	logger.SetOutput(output)

	return &Logger{Logger: logger}
}

// NewTestLogger returns a quiet logger for tests.
func NewTestLogger() *Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &Logger{Logger: logger}
}

// WithProvider adds provider information to log context.
func (l *Logger) WithProvider(provider string) *logrus.Entry {
	return l.WithField("provider", provider)
}

// WithModel adds the model identifier to log context.
func (l *Logger) WithModel(model string) *logrus.Entry {
	return l.WithField("model", model)
}

// WithCapability adds the capability to log context.
func (l *Logger) WithCapability(capability types.Capability) *logrus.Entry {
	return l.WithField("capability", string(capability))
}

// WithDuration adds duration to log context.
func (l *Logger) WithDuration(duration time.Duration) *logrus.Entry {
	return l.WithField("duration_ms", duration.Milliseconds())
}

// WithError adds error information to log context.
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithError(err)
}
