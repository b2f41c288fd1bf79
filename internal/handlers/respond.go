// Package handlers contains HTTP request handlers for the SeeIt API.
// Handlers parse requests, call services, and return JSON responses.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/seeit/report-server/internal/apperr"
	"go.uber.org/zap"
)

// maxJSONBody caps JSON request bodies.
const maxJSONBody = 10 << 20

// decodeJSON reads a bounded JSON body into dst. On failure it has already
// answered the request and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if isTooLarge(err) {
			respondError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func isTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge)
}

// Helper: respond with JSON
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Helper: respond with error
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps the apperr taxonomy to status codes. Anything
// else is logged and answered with a generic 500 carrying fallback.
func respondServiceError(w http.ResponseWriter, logger *zap.SugaredLogger, err error, fallback string) {
	var (
		validation   *apperr.ValidationError
		notFound     *apperr.NotFoundError
		unauthorized *apperr.UnauthorizedError
		invalid      *apperr.InvalidStatusError
	)
	switch {
	case errors.As(err, &validation):
		body := map[string]string{"error": validation.Error()}
		if validation.Field != "" {
			body["field"] = validation.Field
		}
		respondJSON(w, http.StatusBadRequest, body)
	case errors.As(err, &notFound):
		respondError(w, http.StatusNotFound, capitalize(notFound.Resource)+" not found")
	case errors.As(err, &unauthorized):
		respondError(w, http.StatusUnauthorized, unauthorized.Reason)
	case errors.As(err, &invalid):
		respondError(w, http.StatusBadRequest, "Invalid status")
	default:
		logger.Errorw(fallback, "error", err)
		respondError(w, http.StatusInternalServerError, fallback)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
