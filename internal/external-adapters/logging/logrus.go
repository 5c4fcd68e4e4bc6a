// Package logging adapts logrus to the domain Logger contract.
package logging

import (
	"github.com/sirupsen/logrus"

	"github.com/halcyonlabs/apkforge/internal/domain/interfaces"
)

// LogrusLogger implements the domain Logger on top of logrus
type LogrusLogger struct {
	logger *logrus.Logger
}

// NewLogrusLogger creates a logger writing text to stderr at the given
// level ("debug", "info", "warn", "error"; unknown levels mean info).
func NewLogrusLogger(level string) *LogrusLogger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)

	return &LogrusLogger{logger: logger}
}

// Debug logs debug-level messages
func (l *LogrusLogger) Debug(msg string, fields ...interfaces.Field) {
	l.logger.WithFields(toLogrusFields(fields)).Debug(msg)
}

// Info logs informational messages
func (l *LogrusLogger) Info(msg string, fields ...interfaces.Field) {
	l.logger.WithFields(toLogrusFields(fields)).Info(msg)
}

// Warn logs warning messages
func (l *LogrusLogger) Warn(msg string, fields ...interfaces.Field) {
	l.logger.WithFields(toLogrusFields(fields)).Warn(msg)
}

// Error logs error messages
func (l *LogrusLogger) Error(msg string, fields ...interfaces.Field) {
	l.logger.WithFields(toLogrusFields(fields)).Error(msg)
}

func toLogrusFields(fields []interfaces.Field) logrus.Fields {
	out := make(logrus.Fields, len(fields))
	for _, f := range fields {
		out[f.Key] = f.Value
	}
	return out
}
