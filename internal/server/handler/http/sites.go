package http

import (
	"context"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DanielTwine/dloperOS/internal/apperr"
	"github.com/DanielTwine/dloperOS/internal/models"
	"github.com/DanielTwine/dloperOS/internal/service"
)

// SiteService defines the website operations used by SiteHandler.
type SiteService interface {
	List(ctx context.Context) ([]models.Website, error)
	Add(ctx context.Context, req service.NewSite) (*models.Website, error)
	Update(ctx context.Context, name string, p service.SitePatch) (*models.Website, error)
	Delete(ctx context.Context, name string) (bool, error)
	RecordAnalytics(ctx context.Context, name string, bandwidthMB float64, isError bool) (bool, error)
	ListFiles(ctx context.Context, name string) ([]models.SiteFile, error)
	SaveFile(ctx context.Context, name, rel, content string) (*models.SiteFile, error)
	UploadFile(ctx context.Context, name, rel string, r io.Reader) (*models.SiteFile, error)
}

// SiteHandler serves /api/websites.
type SiteHandler struct {
	Sites SiteService
	Log   *zap.Logger
	// MaxUploadBytes limits upload bodies. Zero means no limit.
	MaxUploadBytes int64
}

func (h *SiteHandler) List(w http.ResponseWriter, r *http.Request) {
	sites, err := h.Sites.List(r.Context())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, sites)
}

func (h *SiteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.NewSite
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	site, err := h.Sites.Add(r.Context(), req)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, site)
}

func (h *SiteHandler) Update(w http.ResponseWriter, r *http.Request) {
	var p service.SitePatch
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, h.Log, err)
		return
	}
	site, err := h.Sites.Update(r.Context(), chi.URLParam(r, "name"), p)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, site)
}

func (h *SiteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	removed, err := h.Sites.Delete(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if !removed {
		writeError(w, h.Log, service.ErrSiteNotFound)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "deleted"})
}

// Analytics records one request reported by the site's proxy. Query
// parameters are error (bool) and bandwidth_mb (float).
func (h *SiteHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		isError   bool
		bandwidth float64
		err       error
	)
	if v := q.Get("error"); v != "" {
		if isError, err = strconv.ParseBool(v); err != nil {
			writeError(w, h.Log, apperr.New(apperr.ErrValidation, "error must be a boolean"))
			return
		}
	}
	if v := q.Get("bandwidth_mb"); v != "" {
		if bandwidth, err = strconv.ParseFloat(v, 64); err != nil {
			writeError(w, h.Log, apperr.New(apperr.ErrValidation, "bandwidth_mb must be a number"))
			return
		}
	}
	if _, err := h.Sites.RecordAnalytics(r.Context(), chi.URLParam(r, "name"), bandwidth, isError); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (h *SiteHandler) Files(w http.ResponseWriter, r *http.Request) {
	files, err := h.Sites.ListFiles(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

type saveFileRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// SaveFile writes a text file inside the site root. The body is JSON or a
// form with path and content fields.
func (h *SiteHandler) SaveFile(w http.ResponseWriter, r *http.Request) {
	var req saveFileRequest
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/x-www-form-urlencoded" || ct == "multipart/form-data" {
		req.Path = r.PostFormValue("path")
		req.Content = r.PostFormValue("content")
	} else if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	f, err := h.Sites.SaveFile(r.Context(), chi.URLParam(r, "name"), req.Path, req.Content)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// UploadFile stores a multipart "upload" file at the form's path, or at
// the uploaded file name when no path is given.
func (h *SiteHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
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

	rel := r.FormValue("path")
	if rel == "" {
		rel = header.Filename
	}
	f, err := h.Sites.UploadFile(r.Context(), chi.URLParam(r, "name"), rel, file)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}
