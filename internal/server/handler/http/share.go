package http

import (
	"context"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DanielTwine/dloperOS/internal/apperr"
	"github.com/DanielTwine/dloperOS/internal/middleware"
	"github.com/DanielTwine/dloperOS/internal/models"
	"github.com/DanielTwine/dloperOS/internal/security"
	"github.com/DanielTwine/dloperOS/internal/service"
)

// uploadMemory is how much of a multipart upload is held in memory before
// spilling to a temporary file.
const uploadMemory = 32 << 20

// ShareService defines the shared-link operations used by ShareHandler.
type ShareService interface {
	List(ctx context.Context) ([]models.SharedLink, error)
	// Get returns the stored record without access checks.
	Get(ctx context.Context, id string) (*models.SharedLink, error)
	Create(ctx context.Context, r io.Reader, filename string, opts service.ShareOptions, owner, baseURL string) (*models.SharedLink, error)
	Update(ctx context.Context, id string, p service.LinkPatch) (*models.SharedLink, error)
	Delete(ctx context.Context, id string) (bool, error)
	// AuthorizeAccess applies the public access rules.
	AuthorizeAccess(ctx context.Context, id string, password *string) (*models.SharedLink, error)
	RecordDownload(ctx context.Context, id string) (*models.SharedLink, error)
	Metadata(ctx context.Context, id string, password *string) (*models.LinkMetadata, error)
	// Open gates, counts and opens the file. The caller closes it.
	Open(ctx context.Context, id string, password *string) (*service.Download, error)
}

// ShareHandler serves the authenticated link management API and the
// public download endpoints.
type ShareHandler struct {
	Shares   ShareService
	Settings security.SettingsProvider
	Log      *zap.Logger
	// MaxUploadBytes limits upload bodies. Zero means no limit.
	MaxUploadBytes int64
}

func (h *ShareHandler) List(w http.ResponseWriter, r *http.Request) {
	links, err := h.Shares.List(r.Context())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, links)
}

func (h *ShareHandler) Get(w http.ResponseWriter, r *http.Request) {
	link, err := h.Shares.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}

// Upload stores a multipart "upload" file and publishes it. Optional form
// fields are password, max_downloads and expires_at (RFC 3339).
func (h *ShareHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		writeError(w, h.Log, apperr.Wrap(apperr.ErrValidation, "invalid multipart form", err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("upload")
	if err != nil {
		writeError(w, h.Log, apperr.New(apperr.ErrValidation, "upload field is required"))
		return
	}
	defer file.Close()

	opts, err := shareOptionsFromForm(r)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	owner := ""
	if u := middleware.UserFromContext(r.Context()); u != nil {
		owner = u.Username
	}
	link, err := h.Shares.Create(r.Context(), file, header.Filename, opts, owner, h.Settings.Snapshot().Instance.BaseURL)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}

func shareOptionsFromForm(r *http.Request) (service.ShareOptions, error) {
	var opts service.ShareOptions
	if v := r.FormValue("password"); v != "" {
		opts.Password = &v
	}
	if v := r.FormValue("max_downloads"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, apperr.New(apperr.ErrValidation, "max_downloads must be an integer")
		}
		opts.MaxDownloads = &n
	}
	if v := r.FormValue("expires_at"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			return opts, apperr.New(apperr.ErrValidation, "expires_at must be an RFC 3339 timestamp")
		}
		opts.ExpiresAt = &t
	}
	return opts, nil
}

// parseTime accepts RFC 3339 and the zone-less ISO form browsers send from
// datetime-local inputs, which is read as UTC.
func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Parse(time.RFC3339, v)
}

func (h *ShareHandler) Update(w http.ResponseWriter, r *http.Request) {
	var p service.LinkPatch
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, h.Log, err)
		return
	}
	link, err := h.Shares.Update(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}

func (h *ShareHandler) Delete(w http.ResponseWriter, r *http.Request) {
	removed, err := h.Shares.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if !removed {
		writeError(w, h.Log, service.ErrLinkNotFound)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "deleted"})
}

// passwordParam distinguishes an absent ?password from an empty one.
func passwordParam(r *http.Request) *string {
	q := r.URL.Query()
	if !q.Has("password") {
		return nil
	}
	v := q.Get("password")
	return &v
}

// Download streams a shared file to an anonymous client and counts the
// download.
func (h *ShareHandler) Download(w http.ResponseWriter, r *http.Request) {
	d, err := h.Shares.Open(r.Context(), chi.URLParam(r, "id"), passwordParam(r))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	defer d.Close()

	name := d.Link.Filename
	w.Header().Set("Content-Type", service.ContentType(name))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeContent(w, r, name, d.Info.ModTime(), d.File)
}

// Meta describes a shared file without counting a download.
func (h *ShareHandler) Meta(w http.ResponseWriter, r *http.Request) {
	meta, err := h.Shares.Metadata(r.Context(), chi.URLParam(r, "id"), passwordParam(r))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// RecordDownload counts a download performed outside this server, after
// the same access checks as Download.
func (h *ShareHandler) RecordDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.Shares.AuthorizeAccess(r.Context(), id, passwordParam(r)); err != nil {
		writeError(w, h.Log, err)
		return
	}
	link, err := h.Shares.RecordDownload(r.Context(), id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}
