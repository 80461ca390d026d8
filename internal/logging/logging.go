// Package logging configures the process-wide structured logger and the
// per-request correlation-id plumbing used across the feedback engine.
package logging

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type ctxKey int

const loggerCtxKey ctxKey = iota

// New builds a logrus.Logger at the given level, writing JSON lines to w
// (os.Stdout when w is nil).
func New(level string, w io.Writer) *logrus.Logger {
	if w == nil {
		w = os.Stdout
	}

	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05Z07:00"})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	return l
}

// WithCorrelationID returns a context carrying a logger entry tagged with
// the given correlation id, and the entry itself for immediate use.
func WithCorrelationID(ctx context.Context, base *logrus.Logger, correlationID string) (context.Context, *logrus.Entry) {
	entry := base.WithField("correlation_id", correlationID)
	return context.WithValue(ctx, loggerCtxKey, entry), entry
}

// FromContext returns the logger entry stashed by WithCorrelationID, or a
// bare entry off base when the context carries none.
func FromContext(ctx context.Context, base *logrus.Logger) *logrus.Entry {
	if entry, ok := ctx.Value(loggerCtxKey).(*logrus.Entry); ok {
		return entry
	}
	return logrus.NewEntry(base)
}
