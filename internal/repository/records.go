// Package repository provides the YAML-backed persistence used by the
// services. Each repository wraps one yamlstore collection and looks
// records up by their natural key.
package repository

import (
	"context"

	"github.com/DanielTwine/dloperOS/internal/yamlstore"
)

// records implements keyed CRUD over a collection. notFound and conflict
// are returned (not wrapped) so callers can pass them straight through.
type records[T any] struct {
	col      *yamlstore.Collection[T]
	key      func(*T) string
	notFound error
	conflict error
}

func (r *records[T]) list(ctx context.Context) ([]T, error) {
	return r.col.Load(ctx)
}

func (r *records[T]) get(ctx context.Context, key string) (*T, error) {
	items, err := r.col.Load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if r.key(&items[i]) == key {
			return &items[i], nil
		}
	}
	return nil, r.notFound
}

func (r *records[T]) create(ctx context.Context, v T) error {
	return r.col.Update(ctx, func(items []T) ([]T, error) {
		k := r.key(&v)
		for i := range items {
			if r.key(&items[i]) == k {
				return nil, r.conflict
			}
		}
		return append(items, v), nil
	})
}

// update runs fn on the stored record under the collection lock. If fn
// fails the record is left unchanged and fn's error is returned.
func (r *records[T]) update(ctx context.Context, key string, fn func(*T) error) (*T, error) {
	var out T
	err := r.col.Update(ctx, func(items []T) ([]T, error) {
		for i := range items {
			if r.key(&items[i]) != key {
				continue
			}
			next := items[i]
			if err := fn(&next); err != nil {
				return nil, err
			}
			items[i] = next
			out = next
			return items, nil
		}
		return nil, r.notFound
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// delete removes the record with key and reports whether it existed.
func (r *records[T]) delete(ctx context.Context, key string) (bool, error) {
	var removed bool
	err := r.col.Update(ctx, func(items []T) ([]T, error) {
		kept := items[:0]
		for i := range items {
			if r.key(&items[i]) == key {
				removed = true
				continue
			}
			kept = append(kept, items[i])
		}
		return kept, nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}
