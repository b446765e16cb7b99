package repository

import (
	"context"

	"github.com/DanielTwine/dloperOS/internal/apperr"
	"github.com/DanielTwine/dloperOS/internal/models"
	"github.com/DanielTwine/dloperOS/internal/yamlstore"
)

var (
	ErrSiteNotFound = apperr.New(apperr.ErrNotFound, "Site not found")
	ErrSiteExists   = apperr.New(apperr.ErrConflict, "Site already exists")
)

// SiteRepository stores website records in websites.yaml.
type SiteRepository struct {
	r records[models.Website]
}

func NewSiteRepository(col *yamlstore.Collection[models.Website]) *SiteRepository {
	return &SiteRepository{r: records[models.Website]{
		col:      col,
		key:      func(w *models.Website) string { return w.Name },
		notFound: ErrSiteNotFound,
		conflict: ErrSiteExists,
	}}
}

func (s *SiteRepository) List(ctx context.Context) ([]models.Website, error) {
	return s.r.list(ctx)
}

func (s *SiteRepository) Get(ctx context.Context, name string) (*models.Website, error) {
	return s.r.get(ctx, name)
}

func (s *SiteRepository) Create(ctx context.Context, w models.Website) error {
	return s.r.create(ctx, w)
}

func (s *SiteRepository) Update(ctx context.Context, name string, fn func(*models.Website) error) (*models.Website, error) {
	return s.r.update(ctx, name, fn)
}

func (s *SiteRepository) Delete(ctx context.Context, name string) (bool, error) {
	return s.r.delete(ctx, name)
}
