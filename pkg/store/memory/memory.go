// Package memory provides an in-process implementation of
// [github.com/surrealdb/pagetree/pkg/store.PageStore].
//
// Records are kept in a map guarded by a mutex; every read returns copies so
// callers can never mutate stored state. A unique index on path is enforced
// the same way the database-backed stores enforce it.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/surrealdb/pagetree/pkg/models"
	"github.com/surrealdb/pagetree/pkg/store"
)

// Store is an in-memory PageStore.
type Store struct {
	mu     sync.RWMutex
	pages  map[models.PageID]*models.Page
	byPath map[string]models.PageID
	now    func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		pages:  make(map[models.PageID]*models.Page),
		byPath: make(map[string]models.PageID),
		now:    time.Now,
	}
}

func (s *Store) FindOne(ctx context.Context, filter store.Filter, opts store.FindOptions) (*models.Page, error) {
	opts.Limit = 1
	pages, err := s.Find(ctx, filter, opts)
	if err != nil || len(pages) == 0 {
		return nil, err
	}
	return pages[0], nil
}

func (s *Store) Find(ctx context.Context, filter store.Filter, opts store.FindOptions) ([]*models.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	pages := make([]*models.Page, 0)
	for _, p := range s.pages {
		if !filter.Matches(p) {
			continue
		}
		if opts.AfterID != nil && !opts.AfterID.Less(p.ID) {
			continue
		}
		pages = append(pages, p.Clone())
	}
	s.mu.RUnlock()

	store.SortPages(pages, opts.Sort)
	if opts.Limit > 0 && len(pages) > opts.Limit {
		pages = pages[:opts.Limit]
	}
	return pages, nil
}

func (s *Store) Insert(ctx context.Context, page *models.Page) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if page.ID.IsZero() {
		page.ID = models.NewPageID()
	}
	if _, ok := s.pages[page.ID]; ok {
		return fmt.Errorf("page %s already exists", page.ID)
	}
	if _, ok := s.byPath[page.Path]; ok {
		return fmt.Errorf("%w: %s", store.ErrDuplicatePath, page.Path)
	}
	now := s.now()
	if page.CreatedAt.IsZero() {
		page.CreatedAt = now
	}
	if page.UpdatedAt.IsZero() {
		page.UpdatedAt = now
	}

	s.pages[page.ID] = page.Clone()
	s.byPath[page.Path] = page.ID
	return nil
}

func (s *Store) UpdateOne(ctx context.Context, id models.PageID, update store.Update) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pages[id]
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return s.apply(p, update)
}

func (s *Store) UpdateMany(ctx context.Context, filter store.Filter, update store.Update) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, p := range s.pages {
		if !filter.Matches(p) {
			continue
		}
		if err := s.apply(p, update); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// apply must be called with s.mu held.
func (s *Store) apply(p *models.Page, update store.Update) error {
	if update.Path != nil && *update.Path != p.Path {
		if _, taken := s.byPath[*update.Path]; taken {
			return fmt.Errorf("%w: %s", store.ErrDuplicatePath, *update.Path)
		}
		delete(s.byPath, p.Path)
		s.byPath[*update.Path] = p.ID
	}
	update.Apply(p)
	p.UpdatedAt = s.now()
	return nil
}

// Migrate is a no-op; the path index is maintained on every write.
func (s *Store) Migrate(ctx context.Context) error {
	return nil
}

func (s *Store) Close() error {
	return nil
}

// Len returns the number of stored pages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pages)
}
