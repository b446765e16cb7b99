package service

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/DanielTwine/dloperOS/internal/apperr"
	"github.com/DanielTwine/dloperOS/internal/blob"
	"github.com/DanielTwine/dloperOS/internal/models"
	"github.com/DanielTwine/dloperOS/internal/security"
	"github.com/DanielTwine/dloperOS/internal/validate"
	"github.com/DanielTwine/dloperOS/internal/yamlstore"
)

var (
	ErrSiteNotFound = apperr.New(apperr.ErrNotFound, "Site not found")
	ErrInvalidPath  = apperr.New(apperr.ErrValidation, "Invalid path")
)

// SiteRepository persists website records.
type SiteRepository interface {
	List(ctx context.Context) ([]models.Website, error)
	Get(ctx context.Context, name string) (*models.Website, error)
	Create(ctx context.Context, w models.Website) error
	Update(ctx context.Context, name string, fn func(*models.Website) error) (*models.Website, error)
	Delete(ctx context.Context, name string) (bool, error)
}

// NewSite is the input for Add.
type NewSite struct {
	Name       string   `json:"name"`
	Domains    []string `json:"domains"`
	SSLEnabled bool     `json:"ssl_enabled"`
	Upstream   *string  `json:"upstream"`
}

// SitePatch carries optional changes to a website.
type SitePatch struct {
	Domains    *[]string `json:"domains"`
	SSLEnabled *bool     `json:"ssl_enabled"`
	Upstream   *string   `json:"upstream"`
}

// SiteService manages website records and the content under each site
// root. fs is rooted at the sites directory; dir is the same directory as
// reported in root_path.
type SiteService struct {
	sites    SiteRepository
	fs       afero.Fs
	dir      string
	settings security.SettingsProvider
	log      *zap.Logger
}

func NewSiteService(sites SiteRepository, fsys afero.Fs, dir string, settings security.SettingsProvider, log *zap.Logger) *SiteService {
	return &SiteService{sites: sites, fs: fsys, dir: dir, settings: settings, log: log}
}

func (s *SiteService) List(ctx context.Context) ([]models.Website, error) {
	return s.sites.List(ctx)
}

// Add creates the record and the site root directory.
func (s *SiteService) Add(ctx context.Context, req NewSite) (*models.Website, error) {
	if err := validate.Name(req.Name); err != nil {
		return nil, err
	}
	if err := s.fs.MkdirAll("/"+req.Name, 0o755); err != nil {
		return nil, err
	}
	site := models.Website{
		Name:       req.Name,
		RootPath:   filepath.Join(s.dir, req.Name),
		Domains:    req.Domains,
		SSLEnabled: req.SSLEnabled,
		Upstream:   req.Upstream,
	}
	if site.Domains == nil {
		site.Domains = []string{}
	}
	if err := s.sites.Create(ctx, site); err != nil {
		return nil, err
	}
	s.log.Info("website added", zap.String("name", site.Name))
	return &site, nil
}

func (s *SiteService) Update(ctx context.Context, name string, p SitePatch) (*models.Website, error) {
	site, err := s.sites.Update(ctx, name, func(w *models.Website) error {
		if p.Domains != nil {
			w.Domains = *p.Domains
		}
		if p.SSLEnabled != nil {
			w.SSLEnabled = *p.SSLEnabled
		}
		if p.Upstream != nil {
			w.Upstream = p.Upstream
		}
		return nil
	})
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, ErrSiteNotFound
	}
	return site, err
}

// Delete removes the record. The site root is left on disk.
func (s *SiteService) Delete(ctx context.Context, name string) (bool, error) {
	removed, err := s.sites.Delete(ctx, name)
	if removed {
		s.log.Info("website deleted", zap.String("name", name))
	}
	return removed, err
}

// RecordAnalytics adds one request to the site counters. It reports false
// without error when analytics are disabled or the site is unknown.
func (s *SiteService) RecordAnalytics(ctx context.Context, name string, bandwidthMB float64, isError bool) (bool, error) {
	if bandwidthMB < 0 {
		return false, apperr.New(apperr.ErrValidation, "bandwidth_mb must not be negative")
	}
	if !s.settings.Snapshot().Analytics.Enabled {
		return false, nil
	}
	_, err := s.sites.Update(ctx, name, func(w *models.Website) error {
		w.Analytics.Requests++
		w.Analytics.BandwidthMB += bandwidthMB
		if isError {
			w.Analytics.Errors++
		}
		return nil
	})
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// siteFS returns a filesystem jailed to the root of site name.
func (s *SiteService) siteFS(ctx context.Context, name string) (afero.Fs, error) {
	if _, err := s.sites.Get(ctx, name); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, ErrSiteNotFound
		}
		return nil, err
	}
	return afero.NewBasePathFs(s.fs, "/"+name), nil
}

// ListFiles walks the site root. Paths are relative and slash separated.
func (s *SiteService) ListFiles(ctx context.Context, name string) ([]models.SiteFile, error) {
	sfs, err := s.siteFS(ctx, name)
	if err != nil {
		return nil, err
	}
	files := []models.SiteFile{}
	err = afero.Walk(sfs, "/", func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			if p == "/" && errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if p == "/" {
			return ctx.Err()
		}
		files = append(files, siteFile(p, info))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// SaveFile writes content to rel inside the site root.
func (s *SiteService) SaveFile(ctx context.Context, name, rel, content string) (*models.SiteFile, error) {
	sfs, err := s.siteFS(ctx, name)
	if err != nil {
		return nil, err
	}
	p, err := blob.Clean(rel)
	if err != nil {
		return nil, ErrInvalidPath
	}
	if err := yamlstore.WriteFileAtomic(sfs, p, []byte(content), 0o644); err != nil {
		return nil, err
	}
	return s.stat(sfs, p)
}

// UploadFile streams r to rel inside the site root.
func (s *SiteService) UploadFile(ctx context.Context, name, rel string, r io.Reader) (*models.SiteFile, error) {
	sfs, err := s.siteFS(ctx, name)
	if err != nil {
		return nil, err
	}
	p, err := blob.Clean(rel)
	if err != nil {
		return nil, ErrInvalidPath
	}
	if _, err := blob.New(sfs).Write(p, r); err != nil {
		return nil, err
	}
	return s.stat(sfs, p)
}

func (s *SiteService) stat(sfs afero.Fs, p string) (*models.SiteFile, error) {
	info, err := sfs.Stat(p)
	if err != nil {
		return nil, err
	}
	f := siteFile(p, info)
	return &f, nil
}

func siteFile(p string, info fs.FileInfo) models.SiteFile {
	f := models.SiteFile{
		Path:    strings.TrimPrefix(path.Clean(filepath.ToSlash(p)), "/"),
		IsDir:   info.IsDir(),
		ModTime: info.ModTime().UTC(),
	}
	if !f.IsDir {
		f.Size = info.Size()
	}
	return f
}
