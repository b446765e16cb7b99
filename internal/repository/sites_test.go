package repository

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanielTwine/dloperOS/internal/apperr"
	"github.com/DanielTwine/dloperOS/internal/models"
	"github.com/DanielTwine/dloperOS/internal/yamlstore"
)

func TestSiteRepository_CRUD(t *testing.T) {
	fsys := afero.NewMemMapFs()
	repo := NewSiteRepository(yamlstore.NewCollection[models.Website](fsys, "/config/websites.yaml", "websites"))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, models.Website{Name: "blog", RootPath: "/data/sites/blog", Domains: []string{}}))
	assert.ErrorIs(t, repo.Create(ctx, models.Website{Name: "blog"}), apperr.ErrConflict)

	site, err := repo.Update(ctx, "blog", func(w *models.Website) error {
		w.Analytics.Requests++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), site.Analytics.Requests)

	// A fresh repository over the same file sees the change.
	reopened := NewSiteRepository(yamlstore.NewCollection[models.Website](fsys, "/config/websites.yaml", "websites"))
	got, err := reopened.Get(ctx, "blog")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Analytics.Requests)

	_, err = repo.Get(ctx, "shop")
	assert.ErrorIs(t, err, ErrSiteNotFound)

	removed, err := repo.Delete(ctx, "blog")
	require.NoError(t, err)
	assert.True(t, removed)
	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}
