package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DanielTwine/dloperOS/internal/models"
	"github.com/DanielTwine/dloperOS/internal/service"
)

// ContainerService defines the container operations used by DockerHandler.
type ContainerService interface {
	List(ctx context.Context) ([]models.Container, error)
	Operate(ctx context.Context, id, action string) (*models.Container, error)
	CreateFromTemplate(ctx context.Context, req service.TemplateRequest) (*models.Container, error)
}

type DockerHandler struct {
	Containers ContainerService
	Log        *zap.Logger
}

func (h *DockerHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Containers.List(r.Context())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Operate applies {"action": "start"|"stop"|"restart"} to a container.
func (h *DockerHandler) Operate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string `json:"action"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	c, err := h.Containers.Operate(r.Context(), chi.URLParam(r, "id"), req.Action)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *DockerHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req service.TemplateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	c, err := h.Containers.CreateFromTemplate(r.Context(), req)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
