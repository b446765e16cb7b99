package http

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/DanielTwine/dloperOS/internal/apperr"
	"github.com/DanielTwine/dloperOS/internal/middleware"
	"github.com/DanielTwine/dloperOS/internal/models"
	"github.com/DanielTwine/dloperOS/internal/settings"
)

// resetConfirmation must be sent verbatim to reset the settings.
const resetConfirmation = "RESET"

// SettingsStore reads and changes system.yaml.
type SettingsStore interface {
	Snapshot() models.SystemSettings
	Update(ctx context.Context, p settings.Patch) (models.SystemSettings, error)
	Reset(ctx context.Context) (models.SystemSettings, error)
}

// PasswordChecker confirms a user's current password.
type PasswordChecker interface {
	CheckPassword(ctx context.Context, username, password string) error
}

type SettingsHandler struct {
	Settings  SettingsStore
	Passwords PasswordChecker
	Log       *zap.Logger
}

// Get returns the settings. The signing secret is never serialised.
func (h *SettingsHandler) Get(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Settings.Snapshot())
}

func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var p settings.Patch
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, h.Log, err)
		return
	}
	s, err := h.Settings.Update(r.Context(), p)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// Reset restores defaults and rotates the signing secret after the caller
// re-enters their password. Every issued token stops working.
func (h *SettingsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password     string `json:"password"`
		Confirmation string `json:"confirmation"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	if req.Confirmation != resetConfirmation {
		writeError(w, h.Log, apperr.New(apperr.ErrValidation, `confirmation must be "RESET"`))
		return
	}
	caller := middleware.UserFromContext(r.Context())
	if caller == nil {
		writeError(w, h.Log, apperr.New(apperr.ErrUnauthenticated, "Not authenticated"))
		return
	}
	if err := h.Passwords.CheckPassword(r.Context(), caller.Username, req.Password); err != nil {
		writeError(w, h.Log, err)
		return
	}
	s, err := h.Settings.Reset(r.Context())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.Log.Warn("settings reset", zap.String("by", caller.Username))
	writeJSON(w, http.StatusOK, s)
}
