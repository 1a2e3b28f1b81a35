package shared

import (
	"context"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
)

// ContextKey is the key type for values stored in request contexts.
type ContextKey string

// LoggerContextKey holds the request-scoped logger.
const LoggerContextKey ContextKey = "logger"

var discardLogger = func() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}()

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// LoggerFrom returns the logger stored in ctx, or one that discards output.
func LoggerFrom(ctx context.Context) *logrus.Entry {
	if logger, ok := ctx.Value(LoggerContextKey).(*logrus.Entry); ok && logger != nil {
		return logger
	}
	return discardLogger
}

// LoggerMiddleware makes logger available to the response helpers.
func LoggerMiddleware(logger *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithLogger(r.Context(), logger)))
		})
	}
}
