package service

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DanielTwine/dloperOS/internal/apperr"
	"github.com/DanielTwine/dloperOS/internal/blob"
	"github.com/DanielTwine/dloperOS/internal/models"
	"github.com/DanielTwine/dloperOS/internal/validate"
)

// Directories under the data root.
const (
	SitesDir    = "/sites"
	FilesDir    = "/files"
	BackupsDir  = "/backups"
	RestoredDir = "restored"
)

var (
	ErrUnknownTarget  = apperr.New(apperr.ErrValidation, "Unknown backup target")
	ErrSourceNotFound = apperr.New(apperr.ErrNotFound, "Source not found")
	ErrBackupNotFound = apperr.New(apperr.ErrNotFound, "Backup not found")
	ErrUnsafeArchive  = apperr.New(apperr.ErrValidation, "Archive entry escapes destination")
)

// RestoreResult reports where an archive was unpacked.
type RestoreResult struct {
	RestoredTo string `json:"restored_to"`
}

// BackupService archives data directories as zip files. fs is rooted at
// the data directory; dir is the same directory as reported in paths.
type BackupService struct {
	fs  afero.Fs
	dir string
	log *zap.Logger
	now func() time.Time
}

func NewBackupService(fsys afero.Fs, dir string, log *zap.Logger) *BackupService {
	return &BackupService{fs: fsys, dir: dir, log: log, now: time.Now}
}

// WithClock replaces the time source used for default archive names.
func (s *BackupService) WithClock(now func() time.Time) *BackupService {
	s.now = now
	return s
}

// List returns the archives in the backups directory, newest first.
func (s *BackupService) List(ctx context.Context) ([]models.Backup, error) {
	if err := s.fs.MkdirAll(BackupsDir, 0o755); err != nil {
		return nil, err
	}
	entries, err := afero.ReadDir(s.fs, BackupsDir)
	if err != nil {
		return nil, err
	}
	backups := []models.Backup{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".zip") {
			continue
		}
		backups = append(backups, s.describe(e, e.ModTime()))
	}
	sort.SliceStable(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, ctx.Err()
}

func (s *BackupService) describe(info fs.FileInfo, created time.Time) models.Backup {
	return models.Backup{
		Name:      info.Name(),
		Path:      filepath.Join(s.dir, filepath.FromSlash(BackupsDir), info.Name()),
		Size:      info.Size(),
		CreatedAt: created.UTC(),
	}
}

// resolveTarget maps "sites", "files" or "site:<name>" to a directory
// under the data root.
func resolveTarget(target string) (string, error) {
	switch {
	case target == "sites":
		return SitesDir, nil
	case target == "files":
		return FilesDir, nil
	case strings.HasPrefix(target, "site:"):
		name := strings.TrimPrefix(target, "site:")
		if err := validate.Name(name); err != nil {
			return "", err
		}
		return path.Join(SitesDir, name), nil
	}
	return "", ErrUnknownTarget
}

// archiveName turns an optional user name into "<name>.zip". The default
// is "<target>-<UTC stamp>".
func (s *BackupService) archiveName(target, name string) (string, error) {
	if name == "" {
		name = strings.ReplaceAll(target, ":", "-") + "-" + s.now().UTC().Format("20060102-150405")
	}
	name = strings.TrimSuffix(name, ".zip")
	if err := validate.Name(name); err != nil {
		return "", err
	}
	return name + ".zip", nil
}

// Create zips the target directory into the backups directory. An
// existing archive with the same name is replaced.
func (s *BackupService) Create(ctx context.Context, target, name string) (*models.Backup, error) {
	src, err := resolveTarget(target)
	if err != nil {
		return nil, err
	}
	info, err := s.fs.Stat(src)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.IsDir()) {
		return nil, ErrSourceNotFound
	}
	if err != nil {
		return nil, err
	}
	archive, err := s.archiveName(target, name)
	if err != nil {
		return nil, err
	}
	if err := s.fs.MkdirAll(BackupsDir, 0o755); err != nil {
		return nil, err
	}

	dst := path.Join(BackupsDir, archive)
	if err := s.writeArchive(ctx, src, dst); err != nil {
		return nil, err
	}
	out, err := s.fs.Stat(dst)
	if err != nil {
		return nil, err
	}
	b := s.describe(out, s.now())
	s.log.Info("backup created", zap.String("target", target), zap.String("name", b.Name), zap.Int64("size", b.Size))
	return &b, nil
}

// writeArchive builds the zip in a temp file and renames it into place.
func (s *BackupService) writeArchive(ctx context.Context, src, dst string) (err error) {
	tmp, err := afero.TempFile(s.fs, BackupsDir, ".backup-*.zip.tmp")
	if err != nil {
		return fmt.Errorf("create temp archive: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = s.fs.Remove(tmpName)
		}
	}()

	zw := zip.NewWriter(tmp)
	walkErr := afero.Walk(s.fs, src, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil || rel == "." {
			return err
		}
		return addToZip(zw, s.fs, p, filepath.ToSlash(rel), info)
	})
	if walkErr != nil {
		return multierr.Combine(walkErr, zw.Close(), tmp.Close())
	}
	if err := multierr.Combine(zw.Close(), tmp.Close()); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	return s.fs.Rename(tmpName, dst)
}

func addToZip(zw *zip.Writer, fsys afero.Fs, p, name string, info fs.FileInfo) (err error) {
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name
	if info.IsDir() {
		hdr.Name += "/"
		_, err = zw.CreateHeader(hdr)
		return err
	}
	hdr.Method = zip.Deflate
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	f, err := fsys.Open(p)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, f.Close()) }()
	_, err = io.Copy(w, f)
	return err
}

// Restore unpacks a backup into backups/restored/<stem>. Entries that
// would land outside that directory fail the whole restore.
func (s *BackupService) Restore(ctx context.Context, name string) (*RestoreResult, error) {
	if name == "" || name != path.Base(name) || name == "." || name == ".." {
		return nil, ErrBackupNotFound
	}
	src := path.Join(BackupsDir, name)
	f, err := s.fs.Open(src)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrBackupNotFound
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrBackupNotFound
	}
	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrValidation, "Backup is not a zip archive", err)
	}

	stem := strings.TrimSuffix(name, path.Ext(name))
	dest := path.Join(BackupsDir, RestoredDir, stem)
	// Check every entry before writing anything.
	for _, zf := range zr.File {
		if _, err := blob.Clean(zf.Name); err != nil {
			return nil, ErrUnsafeArchive
		}
	}
	if err := s.fs.MkdirAll(dest, 0o755); err != nil {
		return nil, err
	}
	out := blob.New(afero.NewBasePathFs(s.fs, dest))
	for _, zf := range zr.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := extract(out, zf); err != nil {
			return nil, fmt.Errorf("extract %s: %w", zf.Name, err)
		}
	}

	res := &RestoreResult{RestoredTo: filepath.Join(s.dir, filepath.FromSlash(dest))}
	s.log.Info("backup restored", zap.String("name", name), zap.String("restored_to", res.RestoredTo))
	return res, nil
}

func extract(out *blob.Store, zf *zip.File) (err error) {
	if zf.FileInfo().IsDir() {
		p, err := blob.Clean(zf.Name)
		if err != nil {
			return err
		}
		return out.FS().MkdirAll(p, 0o755)
	}
	rc, err := zf.Open()
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, rc.Close()) }()
	_, err = out.Write(zf.Name, rc)
	return err
}
