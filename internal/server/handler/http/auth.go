// Package http provides the panel's HTTP handlers and router.
package http

import (
	"context"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DanielTwine/dloperOS/internal/apperr"
	"github.com/DanielTwine/dloperOS/internal/middleware"
	"github.com/DanielTwine/dloperOS/internal/models"
	"github.com/DanielTwine/dloperOS/internal/service"
)

// AuthService defines the identity operations required by the auth and
// user handlers.
type AuthService interface {
	// Login checks credentials and returns a signed session token.
	Login(ctx context.Context, username, password string) (string, error)
	// Register creates an identity on behalf of caller, which may be nil
	// for anonymous requests.
	Register(ctx context.Context, caller *models.User, req service.NewUser) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	CreateUser(ctx context.Context, req service.NewUser) (*models.User, error)
	UpdateUser(ctx context.Context, username string, p service.UserPatch) (*models.User, error)
	// DeleteUser removes username; caller may not delete itself.
	DeleteUser(ctx context.Context, caller *models.User, username string) error
}

// AuthHandler handles login, registration and user management.
type AuthHandler struct {
	AuthService AuthService
	Log         *zap.Logger
}

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login accepts either a JSON body or an OAuth2-style form with
// "username" and "password" fields.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/x-www-form-urlencoded" || ct == "multipart/form-data" {
		req.Username = r.PostFormValue("username")
		req.Password = r.PostFormValue("password")
	} else if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, h.Log, apperr.New(apperr.ErrValidation, "missing credentials"))
		return
	}

	token, err := h.AuthService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// Register creates an identity. The first identity may register without a
// token; after that only owners and admins can.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.NewUser
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	u, err := h.AuthService.Register(r.Context(), middleware.UserFromContext(r.Context()), req)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Me returns the authenticated identity.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, middleware.UserFromContext(r.Context()))
}

func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.AuthService.ListUsers(r.Context())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *AuthHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req service.NewUser
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	u, err := h.AuthService.CreateUser(r.Context(), req)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *AuthHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var p service.UserPatch
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, h.Log, err)
		return
	}
	u, err := h.AuthService.UpdateUser(r.Context(), chi.URLParam(r, "username"), p)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *AuthHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromContext(r.Context())
	if err := h.AuthService.DeleteUser(r.Context(), caller, chi.URLParam(r, "username")); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "deleted"})
}
