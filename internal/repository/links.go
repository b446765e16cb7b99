package repository

import (
	"context"

	"github.com/DanielTwine/dloperOS/internal/apperr"
	"github.com/DanielTwine/dloperOS/internal/models"
	"github.com/DanielTwine/dloperOS/internal/yamlstore"
)

var (
	ErrLinkNotFound = apperr.New(apperr.ErrNotFound, "File not found")
	ErrLinkExists   = apperr.New(apperr.ErrConflict, "File id already in use")
)

// LinkRepository stores shared-link records in files.yaml.
type LinkRepository struct {
	r records[models.SharedLink]
}

func NewLinkRepository(col *yamlstore.Collection[models.SharedLink]) *LinkRepository {
	return &LinkRepository{r: records[models.SharedLink]{
		col:      col,
		key:      func(l *models.SharedLink) string { return l.ID },
		notFound: ErrLinkNotFound,
		conflict: ErrLinkExists,
	}}
}

func (s *LinkRepository) List(ctx context.Context) ([]models.SharedLink, error) {
	return s.r.list(ctx)
}

func (s *LinkRepository) Get(ctx context.Context, id string) (*models.SharedLink, error) {
	return s.r.get(ctx, id)
}

func (s *LinkRepository) Create(ctx context.Context, l models.SharedLink) error {
	return s.r.create(ctx, l)
}

// Update applies fn to the link under the files.yaml lock. Returning an
// error from fn aborts the write.
func (s *LinkRepository) Update(ctx context.Context, id string, fn func(*models.SharedLink) error) (*models.SharedLink, error) {
	return s.r.update(ctx, id, fn)
}

func (s *LinkRepository) Delete(ctx context.Context, id string) (bool, error) {
	return s.r.delete(ctx, id)
}
