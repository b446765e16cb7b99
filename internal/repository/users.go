package repository

import (
	"context"

	"github.com/DanielTwine/dloperOS/internal/apperr"
	"github.com/DanielTwine/dloperOS/internal/models"
	"github.com/DanielTwine/dloperOS/internal/yamlstore"
)

var (
	ErrUserNotFound = apperr.New(apperr.ErrNotFound, "User not found")
	ErrUserExists   = apperr.New(apperr.ErrConflict, "User already exists")
)

// UserRepository stores identities in users.yaml.
type UserRepository struct {
	r records[models.User]
}

// NewUserRepository wraps a users collection.
func NewUserRepository(col *yamlstore.Collection[models.User]) *UserRepository {
	return &UserRepository{r: records[models.User]{
		col:      col,
		key:      func(u *models.User) string { return u.Username },
		notFound: ErrUserNotFound,
		conflict: ErrUserExists,
	}}
}

func (s *UserRepository) List(ctx context.Context) ([]models.User, error) {
	return s.r.list(ctx)
}

func (s *UserRepository) Count(ctx context.Context) (int, error) {
	users, err := s.r.list(ctx)
	return len(users), err
}

// Get returns ErrUserNotFound when no identity has that username.
func (s *UserRepository) Get(ctx context.Context, username string) (*models.User, error) {
	return s.r.get(ctx, username)
}

// Create returns ErrUserExists when the username is taken.
func (s *UserRepository) Create(ctx context.Context, u models.User) error {
	return s.r.create(ctx, u)
}

// CreateIfEmpty stores u only when the collection has no identities yet.
// It reports whether u was stored.
func (s *UserRepository) CreateIfEmpty(ctx context.Context, u models.User) (bool, error) {
	var created bool
	err := s.r.col.Update(ctx, func(users []models.User) ([]models.User, error) {
		if len(users) > 0 {
			return users, nil
		}
		created = true
		return []models.User{u}, nil
	})
	return created, err
}

func (s *UserRepository) Update(ctx context.Context, username string, fn func(*models.User) error) (*models.User, error) {
	return s.r.update(ctx, username, fn)
}

func (s *UserRepository) Delete(ctx context.Context, username string) (bool, error) {
	return s.r.delete(ctx, username)
}
