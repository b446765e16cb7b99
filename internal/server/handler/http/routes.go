package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DanielTwine/dloperOS/internal/apperr"
	"github.com/DanielTwine/dloperOS/internal/middleware"
	"github.com/DanielTwine/dloperOS/internal/models"
)

// Handlers groups the handlers mounted by NewRouter.
type Handlers struct {
	Auth     *AuthHandler
	Shares   *ShareHandler
	Sites    *SiteHandler
	System   *SystemHandler
	Backups  *BackupHandler
	Docker   *DockerHandler
	Settings *SettingsHandler
}

// NewRouter constructs the panel API.
//
// Middleware chain (applied in order):
//  1. RequestID, RealIP
//  2. WithRequestLogging(logger)
//  3. Recoverer
//  4. SecurityHeaders, CORS(corsOrigins)
//
// Public routes are health, login, registration (token optional), the
// shared-file endpoints and the analytics beacon. Everything else under
// /api requires a bearer token; mutating routes also require a role.
func NewRouter(h Handlers, authn middleware.Authenticator, logger *zap.Logger, corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(corsOrigins))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		apperr.Write(w, apperr.New(apperr.ErrNotFound, "Not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, apperr.Body{Error: "Method not allowed", Code: "method_not_allowed"})
	})

	// Bodies on these routes must be JSON; empty bodies pass.
	jsonOnly := chiMiddleware.AllowContentType("application/json")

	// Public shared-file endpoints live outside /api so links stay short.
	r.Get("/files/{id}", h.Shares.Download)
	r.Get("/files/{id}/meta", h.Shares.Meta)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.System.Health)
		r.Post("/auth/login", h.Auth.Login)
		r.With(middleware.OptionalAuthenticate(authn), jsonOnly).Post("/auth/register", h.Auth.Register)
		r.Post("/files/{id}/download", h.Shares.RecordDownload)
		r.Post("/websites/{name}/analytics", h.Sites.Analytics)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(authn))

			r.Get("/auth/me", h.Auth.Me)
			r.Get("/files", h.Shares.List)
			r.Post("/files/upload", h.Shares.Upload)
			r.Get("/files/{id}", h.Shares.Get)
			r.Get("/websites", h.Sites.List)
			r.Get("/websites/{name}/files", h.Sites.Files)
			r.Get("/system/metrics", h.System.Snapshot)
			r.Get("/backups", h.Backups.List)
			r.Get("/docker/containers", h.Docker.List)
			r.Get("/settings", h.Settings.Get)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRoles(models.RoleOwner, models.RoleAdmin))

				r.With(jsonOnly).Put("/files/{id}", h.Shares.Update)
				r.Delete("/files/{id}", h.Shares.Delete)
				r.Get("/users", h.Auth.ListUsers)
				r.With(jsonOnly).Post("/users", h.Auth.CreateUser)
				r.With(jsonOnly).Put("/users/{username}", h.Auth.UpdateUser)
				r.With(jsonOnly).Post("/websites", h.Sites.Create)
				r.With(jsonOnly).Put("/websites/{name}", h.Sites.Update)
				r.Post("/websites/{name}/files/save", h.Sites.SaveFile)
				r.Post("/websites/{name}/files/upload", h.Sites.UploadFile)
				r.With(jsonOnly).Post("/backups", h.Backups.Create)
				r.With(jsonOnly).Post("/docker/containers/{id}", h.Docker.Operate)
				r.With(jsonOnly).Post("/docker/templates", h.Docker.CreateTemplate)
				r.With(jsonOnly).Put("/settings", h.Settings.Update)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRoles(models.RoleOwner))

				r.Delete("/users/{username}", h.Auth.DeleteUser)
				r.Delete("/websites/{name}", h.Sites.Delete)
				r.With(jsonOnly).Post("/backups/restore", h.Backups.Restore)
				r.With(jsonOnly).Post("/settings/reset", h.Settings.Reset)
			})
		})
	})

	return r
}
