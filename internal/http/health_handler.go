package http

import (
	"log/slog"
	"net/http"

	"github.com/tuanvumaihuynh/stock-ledger/internal/storage/db"
)

type healthHandler struct {
	*responder

	checker db.HealthChecker
}

func (h *healthHandler) healthz(w http.ResponseWriter, r *http.Request) error {
	if h.checker == nil {
		return h.writeJSON(w, r, http.StatusOK, healthResponse{Status: "ok"})
	}

	healthy, err := h.checker.IsHealthy(r.Context())
	if err != nil || !healthy {
		h.logger.WarnContext(r.Context(), "health check failed", slog.Any("error", err))
		return h.writeJSON(w, r, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
	}

	return h.writeJSON(w, r, http.StatusOK, healthResponse{Status: "ok"})
}
