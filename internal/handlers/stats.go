package handlers

import (
	"context"
	"net/http"

	"github.com/seeit/report-server/internal/models"
	"go.uber.org/zap"
)

// DashboardSource computes the police dashboard.
type DashboardSource interface {
	ComputeDashboard(ctx context.Context) (*models.DashboardSnapshot, error)
}

// StatsHandler serves dashboard statistics
type StatsHandler struct {
	stats  DashboardSource
	logger *zap.SugaredLogger
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(stats DashboardSource, logger *zap.SugaredLogger) *StatsHandler {
	return &StatsHandler{stats: stats, logger: logger}
}

// Dashboard handles GET /api/stats
func (h *StatsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	snap, err := h.stats.ComputeDashboard(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to fetch statistics")
		return
	}
	respondJSON(w, http.StatusOK, snap)
}
