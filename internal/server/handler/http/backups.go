package http

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/DanielTwine/dloperOS/internal/models"
	"github.com/DanielTwine/dloperOS/internal/service"
)

// BackupService defines the archive operations used by BackupHandler.
type BackupService interface {
	List(ctx context.Context) ([]models.Backup, error)
	Create(ctx context.Context, target, name string) (*models.Backup, error)
	Restore(ctx context.Context, name string) (*service.RestoreResult, error)
}

type BackupHandler struct {
	Backups BackupService
	Log     *zap.Logger
}

func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Backups.List(r.Context())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *BackupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Target string `json:"target"`
		Name   string `json:"name"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	b, err := h.Backups.Create(r.Context(), req.Target, req.Name)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	res, err := h.Backups.Restore(r.Context(), req.Name)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
