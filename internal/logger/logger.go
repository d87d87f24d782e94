// Package logger wraps logrus in a thin struct offering With* convenience
// constructors instead of scattering logrus.Fields literals across callers.
package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

type Logger struct {
	*logrus.Entry
}

var base *logrus.Logger

// New builds a Logger configured for env ("production" gets JSON output,
// anything else gets the human-readable text formatter).
func New(env string) *Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)

	if env == "production" {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
		l.SetLevel(logrus.InfoLevel)
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		l.SetLevel(logrus.DebugLevel)
	}

	base = l
	return &Logger{Entry: logrus.NewEntry(l)}
}

// Get returns a default Logger, building one from APP_ENV on first use.
func Get() *Logger {
	if base == nil {
		return New(os.Getenv("APP_ENV"))
	}
	return &Logger{Entry: logrus.NewEntry(base)}
}

// WithRequestID scopes subsequent log lines to a verification request id.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{Entry: l.WithField("request_id", requestID)}
}

// WithSubjectID scopes subsequent log lines to a subject id.
func (l *Logger) WithSubjectID(subjectID string) *Logger {
	return &Logger{Entry: l.WithField("subject_id", subjectID)}
}

// WithStep scopes subsequent log lines to a pipeline step name.
func (l *Logger) WithStep(step string) *Logger {
	return &Logger{Entry: l.WithField("step", step)}
}

// WithFields adds multiple fields at once.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{Entry: l.Entry.WithFields(logrus.Fields(fields))}
}
