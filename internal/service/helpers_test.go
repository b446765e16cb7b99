package service

import (
	"context"
	"sync"
	"testing"

	"github.com/DanielTwine/dloperOS/internal/apperr"
	"github.com/DanielTwine/dloperOS/internal/models"
	"github.com/DanielTwine/dloperOS/internal/security"
)

var fastParams = security.PBKDF2Params{Iterations: 1000, SaltLen: 16, KeyLen: 32}

func fastHash(p string) (string, error) { return security.HashPasswordWith(p, fastParams) }

func mustHash(t *testing.T, p string) string {
	t.Helper()
	h, err := fastHash(p)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return h
}

type staticSettings struct{ s models.SystemSettings }

func (f *staticSettings) Snapshot() models.SystemSettings { return f.s }

func testSettings() *staticSettings {
	return &staticSettings{s: models.SystemSettings{
		Instance:  models.InstanceSettings{Name: "test", BaseURL: "https://panel.example/"},
		Security:  models.SecuritySettings{SecretKey: "test-secret", TokenExpiryMinutes: 90},
		Analytics: models.AnalyticsSettings{Enabled: true},
	}}
}

// memUsers is an in-memory UserRepository.
type memUsers struct {
	mu    sync.Mutex
	users []models.User
}

func (m *memUsers) List(context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.User(nil), m.users...), nil
}

func (m *memUsers) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), nil
}

func (m *memUsers) Get(_ context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			u := u
			return &u, nil
		}
	}
	return nil, apperr.New(apperr.ErrNotFound, "User not found")
}

func (m *memUsers) Create(_ context.Context, u models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username {
			return apperr.New(apperr.ErrConflict, "User already exists")
		}
	}
	m.users = append(m.users, u)
	return nil
}

func (m *memUsers) CreateIfEmpty(_ context.Context, u models.User) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.users) > 0 {
		return false, nil
	}
	m.users = append(m.users, u)
	return true, nil
}

func (m *memUsers) Update(_ context.Context, username string, fn func(*models.User) error) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.users {
		if m.users[i].Username == username {
			next := m.users[i]
			if err := fn(&next); err != nil {
				return nil, err
			}
			m.users[i] = next
			return &next, nil
		}
	}
	return nil, apperr.New(apperr.ErrNotFound, "User not found")
}

func (m *memUsers) Delete(_ context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.users {
		if m.users[i].Username == username {
			m.users = append(m.users[:i], m.users[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}
