package middleware

import (
	"net/http"

	"direct-chat/internal/observability"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RequestLogContext copies chi's request id into the logging context so
// handler log lines correlate with the access log.
func RequestLogContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := chimiddleware.GetReqID(r.Context()); reqID != "" {
			r = r.WithContext(observability.WithRequestID(r.Context(), reqID))
		}
		next.ServeHTTP(w, r)
	})
}
