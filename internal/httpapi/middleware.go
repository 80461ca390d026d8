package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Mahirobot/aegis-feedback-engine/internal/logging"
)

// CorrelationIDMiddleware sets X-Correlation-ID on the response,
// generating one when the caller doesn't supply it. AccessLogMiddleware
// reads the header back off the response to thread the same id into the
// request-scoped logger.
func CorrelationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Correlation-ID")
		if correlationID == "" {
			correlationID = uuid.NewString()
		}
		w.Header().Set("X-Correlation-ID", correlationID)
		next.ServeHTTP(w, r)
	})
}

// AccessLogMiddleware logs one structured line per request and stashes a
// correlation-id-tagged logger entry in the request context so handlers
// can pull it via internal/logging.FromContext.
func AccessLogMiddleware(base *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			correlationID := w.Header().Get("X-Correlation-ID")
			ctx, entry := logging.WithCorrelationID(r.Context(), base, correlationID)
			next.ServeHTTP(ww, r.WithContext(ctx))

			entry.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   ww.Status(),
				"duration": time.Since(start).String(),
			}).Info("request")
		})
	}
}
