// Package blob stores uploaded content under a single root directory.
// Paths are always relative to that root and may not escape it.
package blob

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
)

var ErrPathTraversal = errors.New("path escapes root")

// Store is a rooted blob area on an afero filesystem.
type Store struct {
	fs afero.Fs
}

// New returns a Store over fsys. Callers that need a real directory pass
// afero.NewBasePathFs(afero.NewOsFs(), root).
func New(fsys afero.Fs) *Store {
	return &Store{fs: fsys}
}

// NewOnDisk roots a Store at dir on the local filesystem.
func NewOnDisk(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return New(afero.NewBasePathFs(afero.NewOsFs(), dir)), nil
}

// FS exposes the underlying filesystem.
func (s *Store) FS() afero.Fs { return s.fs }

// Clean normalises a relative blob path and rejects anything that would
// leave the root.
func Clean(rel string) (string, error) {
	rel = strings.ReplaceAll(rel, "\\", "/")
	if rel == "" {
		return "", ErrPathTraversal
	}
	for _, part := range strings.Split(rel, "/") {
		if part == ".." {
			return "", ErrPathTraversal
		}
	}
	p := path.Clean("/" + rel)
	if p == "/" {
		return "", ErrPathTraversal
	}
	return p, nil
}

// Write streams r into rel, creating parent directories. A partially
// written file is removed on error.
func (s *Store) Write(rel string, r io.Reader) (n int64, err error) {
	p, err := Clean(rel)
	if err != nil {
		return 0, err
	}
	if err := s.fs.MkdirAll(path.Dir(p), 0o755); err != nil {
		return 0, fmt.Errorf("create blob dir: %w", err)
	}
	f, err := s.fs.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create blob: %w", err)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
		if err != nil {
			_ = s.fs.Remove(p)
		}
	}()

	n, err = io.Copy(f, r)
	if err != nil {
		return n, fmt.Errorf("write blob: %w", err)
	}
	return n, nil
}

// Open returns a read handle. The caller closes it.
func (s *Store) Open(rel string) (afero.File, error) {
	p, err := Clean(rel)
	if err != nil {
		return nil, err
	}
	return s.fs.Open(p)
}

// Stat describes rel.
func (s *Store) Stat(rel string) (fs.FileInfo, error) {
	p, err := Clean(rel)
	if err != nil {
		return nil, err
	}
	return s.fs.Stat(p)
}

// Exists reports whether rel is present as a regular file.
func (s *Store) Exists(rel string) bool {
	info, err := s.Stat(rel)
	return err == nil && !info.IsDir()
}

// Remove deletes rel and everything below it. Missing paths are not an
// error.
func (s *Store) Remove(rel string) error {
	p, err := Clean(rel)
	if err != nil {
		return err
	}
	return s.fs.RemoveAll(p)
}
