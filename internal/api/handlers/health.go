package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/dvloznov/fraud-scoring/internal/api/middleware"
	"github.com/dvloznov/fraud-scoring/internal/model"
)

// ModelInfo reports model state without triggering a load.
type ModelInfo interface {
	Info() model.Info
}

// Pinger checks a backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves GET /health.
type HealthHandler struct {
	model  ModelInfo
	ledger Pinger
}

// NewHealthHandler creates a new health handler. Either dependency may be nil.
func NewHealthHandler(m ModelInfo, ledger Pinger) *HealthHandler {
	return &HealthHandler{model: m, ledger: ledger}
}

// Health handles GET /health. The service stays "ok" while the model is not
// loaded yet, since scoring fails open until it is; a ledger that cannot be
// reached makes it "degraded".
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}

	if h.model != nil {
		resp["model"] = h.model.Info()
	}

	if h.ledger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ledger.Ping(ctx); err != nil {
			resp["status"] = "degraded"
			resp["ledger"] = err.Error()
			middleware.WriteJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp["ledger"] = "ok"
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}
