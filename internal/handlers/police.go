package handlers

import (
	"context"
	"net/http"

	"github.com/seeit/report-server/internal/auth"
	"github.com/seeit/report-server/internal/models"
	"go.uber.org/zap"
)

// OfficerAccounts is the police service as the handlers use it.
type OfficerAccounts interface {
	Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error)
	Profile(ctx context.Context, id string) (*models.PoliceUser, error)
}

// PoliceHandler handles officer login and profile endpoints
type PoliceHandler struct {
	accounts OfficerAccounts
	logger   *zap.SugaredLogger
}

// NewPoliceHandler creates a new police handler
func NewPoliceHandler(accounts OfficerAccounts, logger *zap.SugaredLogger) *PoliceHandler {
	return &PoliceHandler{accounts: accounts, logger: logger}
}

// Login handles POST /api/police/login
func (h *PoliceHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.accounts.Login(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "Login failed")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Profile handles GET /api/police/profile
func (h *PoliceHandler) Profile(w http.ResponseWriter, r *http.Request) {
	officer, ok := auth.OfficerFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "access token required")
		return
	}

	user, err := h.accounts.Profile(r.Context(), officer.ID)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to fetch profile")
		return
	}
	respondJSON(w, http.StatusOK, user)
}
