package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// AdminAuth guards admin routes with a static bearer secret.
// An empty secret is a deployment defect and answers 500; a missing or
// mismatched token answers 401. Both short-circuit before the handler runs.
func AdminAuth(secret string, logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With("component", "middleware.admin")
	want := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(want) == 0 {
				logger.Error("admin secret not configured",
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeTrackingError(w, http.StatusInternalServerError, "Admin authentication is not configured")
				return
			}

			token, ok := bearerToken(r)
			if !ok || subtle.ConstantTimeCompare([]byte(token), want) != 1 {
				reason := "invalid_token"
				if !ok {
					reason = "missing_token"
				}
				logger.Warn("authentication failed",
					slog.String("reason", reason),
					slog.String("ip", ClientIP(r)),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeTrackingError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return header[len(prefix):], true
}

// writeTrackingError writes the {success:false, error} envelope used by the
// tracking and admin endpoints.
func writeTrackingError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"success":false,"error":"` + message + `"}`))
}
