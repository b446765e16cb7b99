package service

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DanielTwine/dloperOS/internal/apperr"
	"github.com/DanielTwine/dloperOS/internal/models"
	"github.com/DanielTwine/dloperOS/internal/security"
)

var (
	ErrLinkNotFound      = apperr.New(apperr.ErrNotFound, "File not found")
	ErrMissingOnDisk     = apperr.New(apperr.ErrNotFound, "File missing on disk")
	ErrLinkExpired       = apperr.New(apperr.ErrGone, "File expired")
	ErrDownloadLimit     = apperr.New(apperr.ErrRejected, "Download limit reached")
	ErrPasswordRequired  = apperr.New(apperr.ErrPasswordRequired, "Password required")
	ErrPasswordIncorrect = apperr.New(apperr.ErrPasswordIncorrect, "Incorrect password")
)

const defaultContentType = "application/octet-stream"

// LinkRepository persists shared-link records.
type LinkRepository interface {
	List(ctx context.Context) ([]models.SharedLink, error)
	Get(ctx context.Context, id string) (*models.SharedLink, error)
	Create(ctx context.Context, l models.SharedLink) error
	Update(ctx context.Context, id string, fn func(*models.SharedLink) error) (*models.SharedLink, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// BlobStore holds the uploaded content behind each link.
type BlobStore interface {
	Write(rel string, r io.Reader) (int64, error)
	Open(rel string) (afero.File, error)
	Stat(rel string) (fs.FileInfo, error)
	Exists(rel string) bool
	Remove(rel string) error
}

// LinkState is derived from a link record at the moment of access. It is
// never stored.
type LinkState int

const (
	LinkActive LinkState = iota
	LinkInactive
	LinkExpired
	LinkLimitReached
)

func (s LinkState) String() string {
	switch s {
	case LinkActive:
		return "active"
	case LinkInactive:
		return "inactive"
	case LinkExpired:
		return "expired"
	case LinkLimitReached:
		return "limit_reached"
	}
	return "unknown"
}

// StateOf evaluates l at now. Inactive masks every other state, then
// expiry, then the download limit.
func StateOf(l *models.SharedLink, now time.Time) LinkState {
	switch {
	case !l.Active:
		return LinkInactive
	case l.ExpiresAt != nil && !l.ExpiresAt.After(now):
		return LinkExpired
	case l.MaxDownloads != nil && l.DownloadCount >= *l.MaxDownloads:
		return LinkLimitReached
	}
	return LinkActive
}

func stateErr(s LinkState) error {
	switch s {
	case LinkInactive:
		return ErrLinkNotFound
	case LinkExpired:
		return ErrLinkExpired
	case LinkLimitReached:
		return ErrDownloadLimit
	}
	return nil
}

// ShareOptions are the optional settings of a new link. A nil Active
// means true.
type ShareOptions struct {
	Password     *string
	MaxDownloads *int
	ExpiresAt    *time.Time
	Active       *bool
}

// LinkPatch carries optional changes to a link. A non-empty Password
// replaces the stored hash and turns protection on.
type LinkPatch struct {
	Password     *string    `json:"password"`
	MaxDownloads *int       `json:"max_downloads"`
	ExpiresAt    *time.Time `json:"expires_at"`
	Active       *bool      `json:"active"`
}

// Download is an open shared file. The caller must Close it.
type Download struct {
	Link *models.SharedLink
	File afero.File
	Info fs.FileInfo
}

func (d *Download) Close() error { return d.File.Close() }

// ShareService is the shared-link registry.
type ShareService struct {
	links LinkRepository
	blobs BlobStore
	log   *zap.Logger
	now   func() time.Time
	newID func() string
	hash  func(string) (string, error)
}

func NewShareService(links LinkRepository, blobs BlobStore, log *zap.Logger) *ShareService {
	return &ShareService{
		links: links,
		blobs: blobs,
		log:   log,
		now:   time.Now,
		newID: newLinkID,
		hash:  security.HashPassword,
	}
}

// WithClock replaces the time source.
func (s *ShareService) WithClock(now func() time.Time) *ShareService {
	s.now = now
	return s
}

// WithHasher replaces the password hash function.
func (s *ShareService) WithHasher(hash func(string) (string, error)) *ShareService {
	s.hash = hash
	return s
}

// newLinkID returns 32 hex characters from a random UUID.
func newLinkID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ShareURL builds the public URL for id under baseURL.
func ShareURL(baseURL, id string) string {
	return strings.TrimRight(baseURL, "/") + "/share/" + id
}

func (s *ShareService) List(ctx context.Context) ([]models.SharedLink, error) {
	return s.links.List(ctx)
}

// Get returns the stored record without any access checks.
func (s *ShareService) Get(ctx context.Context, id string) (*models.SharedLink, error) {
	return s.links.Get(ctx, id)
}

// Create stores content from r under a fresh id and records the link.
func (s *ShareService) Create(ctx context.Context, r io.Reader, filename string, opts ShareOptions, owner, baseURL string) (*models.SharedLink, error) {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "" || name == "." || name == "/" || name == ".." {
		return nil, apperr.New(apperr.ErrValidation, "Invalid filename")
	}
	if err := validateMaxDownloads(opts.MaxDownloads); err != nil {
		return nil, err
	}

	link := models.SharedLink{
		ID:            s.newID(),
		Filename:      name,
		MaxDownloads:  opts.MaxDownloads,
		ExpiresAt:     opts.ExpiresAt,
		DownloadCount: 0,
		Owner:         owner,
		CreatedAt:     s.now().UTC(),
		Active:        opts.Active == nil || *opts.Active,
	}
	link.Path = link.ID + "/" + name
	link.ShareURL = ShareURL(baseURL, link.ID)
	if opts.Password != nil && *opts.Password != "" {
		h, err := s.hash(*opts.Password)
		if err != nil {
			return nil, err
		}
		link.PasswordHash = &h
		link.PasswordProtected = true
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := s.blobs.Write(link.Path, r); err != nil {
		return nil, multierr.Append(err, s.blobs.Remove(link.ID))
	}
	if err := s.links.Create(ctx, link); err != nil {
		return nil, multierr.Append(err, s.blobs.Remove(link.ID))
	}
	s.log.Info("shared file created",
		zap.String("id", link.ID),
		zap.String("filename", link.Filename),
		zap.String("owner", owner),
		zap.Bool("password_protected", link.PasswordProtected))
	return &link, nil
}

func validateMaxDownloads(n *int) error {
	if n != nil && *n < 1 {
		return apperr.New(apperr.ErrValidation, "max_downloads must be at least 1")
	}
	return nil
}

// AuthorizeAccess applies the public access rules to id. State checks come
// before the password check, so a wrong password on an expired link still
// reports the expiry.
func (s *ShareService) AuthorizeAccess(ctx context.Context, id string, password *string) (*models.SharedLink, error) {
	link, err := s.links.Get(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := stateErr(StateOf(link, s.now())); err != nil {
		return nil, err
	}
	if link.PasswordProtected {
		if password == nil || *password == "" {
			return nil, ErrPasswordRequired
		}
		hash := ""
		if link.PasswordHash != nil {
			hash = *link.PasswordHash
		}
		if !security.VerifyPassword(*password, hash) {
			return nil, ErrPasswordIncorrect
		}
	}
	return link, nil
}

// RecordDownload re-checks the link state under the files lock and
// increments its counter by one.
func (s *ShareService) RecordDownload(ctx context.Context, id string) (*models.SharedLink, error) {
	link, err := s.links.Update(ctx, id, func(l *models.SharedLink) error {
		if err := stateErr(StateOf(l, s.now())); err != nil {
			return err
		}
		l.DownloadCount++
		return nil
	})
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, ErrLinkNotFound
	}
	return link, err
}

// Metadata describes the file behind id after the access checks. It does
// not count as a download.
func (s *ShareService) Metadata(ctx context.Context, id string, password *string) (*models.LinkMetadata, error) {
	link, err := s.AuthorizeAccess(ctx, id, password)
	if err != nil {
		return nil, err
	}
	info, err := s.stat(link)
	if err != nil {
		return nil, err
	}
	return &models.LinkMetadata{
		ID:                link.ID,
		Filename:          link.Filename,
		Filesize:          info.Size(),
		ContentType:       ContentType(link.Filename),
		ExpiresAt:         link.ExpiresAt,
		MaxDownloads:      link.MaxDownloads,
		DownloadCount:     link.DownloadCount,
		PasswordProtected: link.PasswordProtected,
		Active:            link.Active,
	}, nil
}

// Open checks access, opens the content and counts the download. The file
// is opened before the counter moves so a broken blob never consumes one.
func (s *ShareService) Open(ctx context.Context, id string, password *string) (*Download, error) {
	link, err := s.AuthorizeAccess(ctx, id, password)
	if err != nil {
		return nil, err
	}
	info, err := s.stat(link)
	if err != nil {
		return nil, err
	}
	f, err := s.blobs.Open(link.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrMissingOnDisk
	}
	if err != nil {
		return nil, err
	}
	updated, err := s.RecordDownload(ctx, id)
	if err != nil {
		return nil, multierr.Append(err, f.Close())
	}
	return &Download{Link: updated, File: f, Info: info}, nil
}

func (s *ShareService) stat(link *models.SharedLink) (fs.FileInfo, error) {
	info, err := s.blobs.Stat(link.Path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
		return nil, ErrMissingOnDisk
	}
	if err != nil {
		return nil, err
	}
	return info, nil
}

// Update applies p to the link. Passwords are hashed before the files
// lock is taken.
func (s *ShareService) Update(ctx context.Context, id string, p LinkPatch) (*models.SharedLink, error) {
	if err := validateMaxDownloads(p.MaxDownloads); err != nil {
		return nil, err
	}
	var hash string
	if p.Password != nil && *p.Password != "" {
		h, err := s.hash(*p.Password)
		if err != nil {
			return nil, err
		}
		hash = h
	}

	link, err := s.links.Update(ctx, id, func(l *models.SharedLink) error {
		if p.MaxDownloads != nil {
			l.MaxDownloads = p.MaxDownloads
		}
		if p.ExpiresAt != nil {
			l.ExpiresAt = p.ExpiresAt
		}
		if p.Active != nil {
			l.Active = *p.Active
		}
		if hash != "" {
			l.PasswordHash = &hash
			l.PasswordProtected = true
		}
		return nil
	})
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, ErrLinkNotFound
	}
	return link, err
}

// Delete removes the record and its content. It reports false when id is
// unknown.
func (s *ShareService) Delete(ctx context.Context, id string) (bool, error) {
	removed, err := s.links.Delete(ctx, id)
	if err != nil || !removed {
		return removed, err
	}
	if err := s.blobs.Remove(id); err != nil {
		s.log.Error("failed to remove shared file content", zap.String("id", id), zap.Error(err))
		return true, err
	}
	s.log.Info("shared file deleted", zap.String("id", id))
	return true, nil
}

// ContentType guesses a MIME type from the file extension.
func ContentType(filename string) string {
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	return defaultContentType
}
