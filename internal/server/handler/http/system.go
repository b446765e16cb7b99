package http

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/DanielTwine/dloperOS/internal/models"
)

// MetricsSource returns a host snapshot.
type MetricsSource interface {
	Snapshot(ctx context.Context) (*models.SystemMetrics, error)
}

// SystemHandler serves health and host metrics.
type SystemHandler struct {
	Metrics MetricsSource
	Log     *zap.Logger
}

func (h *SystemHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (h *SystemHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	m, err := h.Metrics.Snapshot(r.Context())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
