package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/seeit/report-server/internal/models"
	"go.uber.org/zap"
)

// Version is reported by the health endpoints.
const Version = "1.0.0"

var startTime = time.Now()

// Pinger checks a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SubscriberCounter reports live websocket subscribers per audience.
type SubscriberCounter interface {
	Counts() map[string]int
}

// HealthHandler provides health check endpoints
type HealthHandler struct {
	db          Pinger
	redis       *redis.Client
	subscribers SubscriberCounter
	logger      *zap.SugaredLogger
}

// NewHealthHandler creates a new health handler. rdb may be nil.
func NewHealthHandler(db Pinger, rdb *redis.Client, subscribers SubscriberCounter, logger *zap.SugaredLogger) *HealthHandler {
	return &HealthHandler{db: db, redis: rdb, subscribers: subscribers, logger: logger}
}

// Check handles GET /health (liveness probe)
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.HealthStatus{
		Status:  "ok",
		Version: Version,
		Uptime:  time.Since(startTime).String(),
	})
}

// Ready handles GET /health/ready (readiness probe)
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	status := models.HealthStatus{
		Status:      "ready",
		Version:     Version,
		Uptime:      time.Since(startTime).String(),
		Database:    "connected",
		Subscribers: h.subscribers.Counts(),
	}
	code := http.StatusOK

	if err := h.db.Ping(r.Context()); err != nil {
		h.logger.Warnw("Database ping failed", "error", err)
		status.Database = "disconnected"
		status.Status = "not ready"
		code = http.StatusServiceUnavailable
	}
	if h.redis != nil {
		status.Redis = "connected"
		if err := h.redis.Ping(r.Context()).Err(); err != nil {
			h.logger.Warnw("Redis ping failed", "error", err)
			status.Redis = "disconnected"
			status.Status = "not ready"
			code = http.StatusServiceUnavailable
		}
	}

	respondJSON(w, code, status)
}
