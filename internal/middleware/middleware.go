// Package middleware provides HTTP middleware for the SeeIt report server.
package middleware

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/seeit/report-server/internal/apperr"
	"github.com/seeit/report-server/internal/auth"
	"github.com/seeit/report-server/internal/models"
	"go.uber.org/zap"
)

// StructuredLogger returns a middleware that logs HTTP requests with zap.
// Client addresses are deliberately absent.
func StructuredLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(ww, r)

			logger.Info("HTTP Request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.statusCode),
				zap.Duration("latency", time.Since(start)),
				zap.String("request_id", chimw.GetReqID(r.Context())),
			)
		})
	}
}

// StripIPHeaders removes IP-identifying headers once the real address has
// been resolved, so nothing downstream can record where a report came from.
func StripIPHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Header.Del("X-Forwarded-For")
			r.Header.Del("X-Real-IP")
			r.Header.Del("CF-Connecting-IP")
			r.Header.Del("True-Client-IP")
			r.Header.Del("X-Client-IP")

			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer")

			next.ServeHTTP(w, r)
		})
	}
}

// Authenticator verifies an Authorization header value.
type Authenticator interface {
	Authenticate(header string) (*models.OfficerIdentity, error)
}

// RequireAuth validates police bearer tokens and attaches the officer to the
// request context.
func RequireAuth(gate Authenticator, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			officer, err := gate.Authenticate(r.Header.Get("Authorization"))
			if err != nil {
				msg := "unauthorized"
				var unauthorized *apperr.UnauthorizedError
				if errors.As(err, &unauthorized) {
					msg = unauthorized.Reason
				}
				logger.Debugw("Rejected police request", "path", r.URL.Path, "reason", msg)
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": msg})
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithOfficer(r.Context(), officer)))
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the logger.
func (w *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}
