// Package settings owns system.yaml: instance identity, the token signing
// secret and analytics toggles. The rest of the panel reads a copy through
// Snapshot and never touches the file directly.
package settings

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/DanielTwine/dloperOS/internal/apperr"
	"github.com/DanielTwine/dloperOS/internal/models"
	"github.com/DanielTwine/dloperOS/internal/yamlstore"
)

const secretKeyBytes = 32

// Defaults returns the settings written on first boot, without a secret.
func Defaults() models.SystemSettings {
	return models.SystemSettings{
		Instance: models.InstanceSettings{
			Name:    "DloperOS Pro",
			BaseURL: "http://localhost:8000",
		},
		Security: models.SecuritySettings{
			TokenExpiryMinutes: 90,
		},
		Analytics: models.AnalyticsSettings{Enabled: true},
	}
}

// Patch lists the fields an admin may change. Nil fields are left alone.
type Patch struct {
	Name               *string `json:"name"`
	BaseURL            *string `json:"base_url"`
	AnalyticsEnabled   *bool   `json:"analytics_enabled"`
	TokenExpiryMinutes *int    `json:"token_expiry_minutes"`
}

// Store caches system.yaml in memory and writes changes back atomically.
type Store struct {
	fs   afero.Fs
	path string
	log  *zap.Logger

	mu      sync.RWMutex
	current models.SystemSettings
}

func NewStore(fsys afero.Fs, path string, log *zap.Logger) *Store {
	return &Store{fs: fsys, path: path, log: log, current: Defaults()}
}

// Path returns the location of system.yaml.
func (s *Store) Path() string { return s.path }

// Init loads system.yaml, writing defaults when it is missing, and
// generates a secret key if none is stored yet.
func (s *Store) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloadLocked()
}

// Reload re-reads system.yaml after an out-of-band edit.
func (s *Store) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloadLocked()
}

func (s *Store) reloadLocked() error {
	loaded, exists, err := s.read()
	if err != nil {
		return err
	}
	dirty := !exists
	if loaded.Security.SecretKey == "" {
		key, err := GenerateSecret()
		if err != nil {
			return err
		}
		loaded.Security.SecretKey = key
		dirty = true
		s.log.Info("generated new token signing secret", zap.String("path", s.path))
	}
	if dirty {
		if err := s.write(loaded); err != nil {
			return err
		}
	}
	s.current = loaded
	return nil
}

// Snapshot returns a copy of the current settings.
func (s *Store) Snapshot() models.SystemSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update applies p and persists the result.
func (s *Store) Update(ctx context.Context, p Patch) (models.SystemSettings, error) {
	if err := ctx.Err(); err != nil {
		return models.SystemSettings{}, err
	}
	if err := p.validate(); err != nil {
		return models.SystemSettings{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current
	if p.Name != nil {
		next.Instance.Name = *p.Name
	}
	if p.BaseURL != nil {
		next.Instance.BaseURL = *p.BaseURL
	}
	if p.AnalyticsEnabled != nil {
		next.Analytics.Enabled = *p.AnalyticsEnabled
	}
	if p.TokenExpiryMinutes != nil {
		next.Security.TokenExpiryMinutes = *p.TokenExpiryMinutes
	}
	if err := s.write(next); err != nil {
		return models.SystemSettings{}, err
	}
	s.current = next
	return next, nil
}

// Reset restores the default instance settings and rotates the secret key,
// which invalidates every outstanding token.
func (s *Store) Reset(ctx context.Context) (models.SystemSettings, error) {
	if err := ctx.Err(); err != nil {
		return models.SystemSettings{}, err
	}
	key, err := GenerateSecret()
	if err != nil {
		return models.SystemSettings{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := Defaults()
	next.Security.SecretKey = key
	if err := s.write(next); err != nil {
		return models.SystemSettings{}, err
	}
	s.current = next
	return next, nil
}

func (p Patch) validate() error {
	if p.Name != nil && *p.Name == "" {
		return apperr.New(apperr.ErrValidation, "Instance name cannot be empty")
	}
	if p.BaseURL != nil {
		u, err := url.Parse(*p.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return apperr.New(apperr.ErrValidation, "Base URL must be an absolute http(s) URL")
		}
	}
	if p.TokenExpiryMinutes != nil && *p.TokenExpiryMinutes <= 0 {
		return apperr.New(apperr.ErrValidation, "Token expiry must be a positive number of minutes")
	}
	return nil
}

func (s *Store) read() (models.SystemSettings, bool, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Defaults(), false, nil
	}
	if err != nil {
		return models.SystemSettings{}, false, fmt.Errorf("read %s: %w", s.path, err)
	}

	out := Defaults()
	if err := yaml.Unmarshal(data, &out); err != nil {
		return models.SystemSettings{}, false, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return out, true, nil
}

func (s *Store) write(v models.SystemSettings) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.path, err)
	}
	return yamlstore.WriteFileAtomic(s.fs, s.path, data, 0o600)
}

// GenerateSecret returns 32 random bytes, hex encoded.
func GenerateSecret() (string, error) {
	b := make([]byte, secretKeyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
