// Package yamlstore persists typed record lists as YAML documents of the
// form "<key>: [ ... ]". Each Collection serialises its own
// read-modify-write cycles; different collections never block each other.
package yamlstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Collection is one YAML file holding a list of T under a top-level key.
type Collection[T any] struct {
	fs   afero.Fs
	path string
	key  string

	mu sync.RWMutex
}

// NewCollection returns a collection stored at path on fsys. The file is
// created lazily on first Save.
func NewCollection[T any](fsys afero.Fs, path, key string) *Collection[T] {
	return &Collection[T]{fs: fsys, path: path, key: key}
}

// Path returns the collection file location.
func (c *Collection[T]) Path() string { return c.path }

// Load returns every record. A missing or empty file is an empty list.
func (c *Collection[T]) Load(ctx context.Context) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.load()
}

// Save replaces the stored list.
func (c *Collection[T]) Save(ctx context.Context, items []T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.save(items)
}

// Update runs fn on the current list under the write lock and saves the
// result. If fn fails nothing is written and its error is returned as-is.
func (c *Collection[T]) Update(ctx context.Context, fn func([]T) ([]T, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.load()
	if err != nil {
		return err
	}
	next, err := fn(items)
	if err != nil {
		return err
	}
	return c.save(next)
}

// EnsureExists writes an empty document when the file is missing.
func (c *Collection[T]) EnsureExists(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.fs.Stat(c.path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", c.path, err)
	}
	return c.save(nil)
}

func (c *Collection[T]) load() ([]T, error) {
	data, err := afero.ReadFile(c.fs, c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.path, err)
	}

	var doc map[string][]T
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.path, err)
	}
	items := doc[c.key]
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func (c *Collection[T]) save(items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := yaml.Marshal(map[string][]T{c.key: items})
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.path, err)
	}
	return WriteFileAtomic(c.fs, c.path, data, 0o600)
}

// WriteFileAtomic writes data to a temporary file next to path and renames
// it over path, so readers see either the old or the new content.
func WriteFileAtomic(fsys afero.Fs, path string, data []byte, perm fs.FileMode) (err error) {
	dir := filepath.Dir(path)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(fsys, dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = fsys.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return multierr.Append(fmt.Errorf("write temp file: %w", err), tmp.Close())
	}
	if err := tmp.Sync(); err != nil {
		return multierr.Append(fmt.Errorf("sync temp file: %w", err), tmp.Close())
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := fsys.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := fsys.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
