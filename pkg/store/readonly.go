package store

import (
	"context"

	"github.com/surrealdb/pagetree/pkg/models"
)

// ReadOnlyStore wraps a PageStore and rejects writes while isReadOnly
// returns true.
//
// The read-only state is looked up on every write, so the application can
// toggle it at runtime (for example around a backup or a reindex) without
// recreating the store. Reads always pass through.
type ReadOnlyStore struct {
	PageStore
	isReadOnly func() bool
}

// NewReadOnlyStore creates a new read-only wrapper for a store
func NewReadOnlyStore(store PageStore, isReadOnly func() bool) *ReadOnlyStore {
	return &ReadOnlyStore{
		PageStore:  store,
		isReadOnly: isReadOnly,
	}
}

// Unwrap returns the underlying store
func (r *ReadOnlyStore) Unwrap() PageStore {
	return r.PageStore
}

func (r *ReadOnlyStore) checkReadOnly() error {
	if r.isReadOnly() {
		return ErrReadOnly
	}
	return nil
}

func (r *ReadOnlyStore) Insert(ctx context.Context, page *models.Page) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.PageStore.Insert(ctx, page)
}

func (r *ReadOnlyStore) UpdateOne(ctx context.Context, id models.PageID, update Update) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.PageStore.UpdateOne(ctx, id, update)
}

func (r *ReadOnlyStore) UpdateMany(ctx context.Context, filter Filter, update Update) (int64, error) {
	if err := r.checkReadOnly(); err != nil {
		return 0, err
	}
	return r.PageStore.UpdateMany(ctx, filter, update)
}

func (r *ReadOnlyStore) Migrate(ctx context.Context) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.PageStore.Migrate(ctx)
}
