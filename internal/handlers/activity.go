package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/seeit/report-server/internal/models"
	"go.uber.org/zap"
)

// defaultActivityLimit caps the trail returned when no limit is given.
const defaultActivityLimit = 50

// ReportFinder resolves a report by either identifier.
type ReportFinder interface {
	Get(ctx context.Context, id string) (*models.Report, error)
}

// ActivityTrail reads the officer audit trail.
type ActivityTrail interface {
	FetchByReport(ctx context.Context, reportID string, limit int) ([]models.ActivityLog, error)
}

// ActivityHandler handles activity log endpoints
type ActivityHandler struct {
	reports ReportFinder
	trail   ActivityTrail
	logger  *zap.SugaredLogger
}

// NewActivityHandler creates a new activity handler
func NewActivityHandler(reports ReportFinder, trail ActivityTrail, logger *zap.SugaredLogger) *ActivityHandler {
	return &ActivityHandler{reports: reports, trail: trail, logger: logger}
}

// ByReport handles GET /api/police/reports/{id}/activity
func (h *ActivityHandler) ByReport(w http.ResponseWriter, r *http.Request) {
	limit, err := optionalInt("limit", r.URL.Query().Get("limit"))
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to fetch activity")
		return
	}
	if limit <= 0 {
		limit = defaultActivityLimit
	}

	report, err := h.reports.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to fetch activity")
		return
	}

	logs, err := h.trail.FetchByReport(r.Context(), report.ID, limit)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to fetch activity")
		return
	}
	respondJSON(w, http.StatusOK, logs)
}
