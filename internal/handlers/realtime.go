package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/seeit/report-server/internal/events"
	"go.uber.org/zap"
)

// RealtimeHandler upgrades clients to the live event stream
type RealtimeHandler struct {
	bus      *events.Bus
	verifier events.TokenVerifier
	upgrader websocket.Upgrader
	logger   *zap.SugaredLogger
}

// NewRealtimeHandler creates a new realtime handler
func NewRealtimeHandler(bus *events.Bus, verifier events.TokenVerifier, allowedOrigins []string, logger *zap.SugaredLogger) *RealtimeHandler {
	return &RealtimeHandler{
		bus:      bus,
		verifier: verifier,
		upgrader: events.NewUpgrader(allowedOrigins),
		logger:   logger,
	}
}

// Connect handles GET /ws
// The connection starts in no room; clients send join-room to subscribe.
func (h *RealtimeHandler) Connect(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Debugw("Websocket upgrade failed", "error", err)
		return
	}

	client := events.NewClient(conn, h.bus, h.verifier, h.logger)
	h.logger.Debugw("Websocket connected", "client", client.ID())
	client.Run()
}
