// Package tree maintains a page hierarchy stored as flat records.
//
// Each page carries a materialized path, a depth level and a sibling rank.
// The store only guarantees single-record atomicity, so every mutation here
// is an ordered list of named steps run one after another: validation steps
// come first and perform no writes, and once the committing write of a move
// has happened a later failure is reported as a [CascadeError] instead of
// being rolled back.
//
// # Operations
//
//   - [Tree.Insert] appends a page as the last ordinary child of a parent.
//   - [Tree.Move] reorders or reparents a page and cascades path, slug,
//     level and trash changes to its descendants.
//   - [Tree.Park] creates and pins the declared structural pages.
//   - [Tree.Get], [Tree.GetBySlug] and [Tree.Expand] rebuild ancestor and
//     child trees from prefix queries.
//
// # Usage Example
//
//	t := tree.New(memory.New(), tree.WithLogger(log), tree.WithLocker(tree.NewMutexLocker()))
//	if err := t.Park(ctx, tree.DefaultParked()); err != nil {
//		return err
//	}
//	changes, err := t.Move(ctx, tree.Request{Actor: "editor"}, movedID, targetID, models.PositionInside)
package tree

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/surrealdb/pagetree/pkg/models"
	"github.com/surrealdb/pagetree/pkg/store"
)

// DefaultBatchSize is the number of descendants read per cascade batch.
const DefaultBatchSize = 100

// Tree runs tree operations against a page store.
type Tree struct {
	store     store.PageStore
	perms     Permissions
	registry  *Registry
	notifier  Notifier
	log       zerolog.Logger
	batchSize int
	locker    Locker
}

// Option configures a Tree.
type Option func(*Tree)

// WithPermissions sets the permission policy. The default allows everything.
func WithPermissions(p Permissions) Option {
	return func(t *Tree) { t.perms = p }
}

// WithRegistry sets the page type manager registry.
func WithRegistry(r *Registry) Option {
	return func(t *Tree) { t.registry = r }
}

// WithNotifier sets the sink for move events.
func WithNotifier(n Notifier) Option {
	return func(t *Tree) { t.notifier = n }
}

// WithLogger sets the logger for step failures and committed operations.
func WithLogger(l zerolog.Logger) Option {
	return func(t *Tree) { t.log = l }
}

// WithBatchSize sets how many descendants a cascade reads at a time.
func WithBatchSize(n int) Option {
	return func(t *Tree) {
		if n > 0 {
			t.batchSize = n
		}
	}
}

// WithLocker serialises Insert, Move and Park through l.
func WithLocker(l Locker) Option {
	return func(t *Tree) { t.locker = l }
}

// New returns a Tree over s.
func New(s store.PageStore, opts ...Option) *Tree {
	t := &Tree{
		store:     s,
		perms:     AllowAll{},
		registry:  NewRegistry(),
		notifier:  nopNotifier{},
		log:       zerolog.Nop(),
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Store returns the underlying page store.
func (t *Tree) Store() store.PageStore {
	return t.store
}

func (t *Tree) lock(ctx context.Context) (func(), error) {
	if t.locker == nil {
		return func() {}, nil
	}
	return t.locker.Lock(ctx)
}

// step is one named stage of an operation. Steps share state through the
// closure that builds them.
type step struct {
	name string
	run  func(ctx context.Context) error
}

// run executes steps in order and stops at the first error.
func (t *Tree) run(ctx context.Context, op string, steps []step) error {
	for _, s := range steps {
		t.log.Debug().Str("op", op).Str("step", s.name).Msg("running step")
		if err := s.run(ctx); err != nil {
			t.log.Debug().Str("op", op).Str("step", s.name).Err(err).Msg("step failed")
			return err
		}
	}
	return nil
}

// byID loads one page or returns nil when it does not exist.
func (t *Tree) byID(ctx context.Context, id models.PageID) (*models.Page, error) {
	return t.store.FindOne(ctx, store.Filter{IDs: []models.PageID{id}}, store.FindOptions{})
}

func (t *Tree) byPath(ctx context.Context, path string) (*models.Page, error) {
	return t.store.FindOne(ctx, store.Filter{Paths: []string{path}}, store.FindOptions{})
}

func (t *Tree) bySlug(ctx context.Context, slug string) (*models.Page, error) {
	return t.store.FindOne(ctx, store.Filter{Slug: slug}, store.FindOptions{})
}

// parentOf loads the parent of page, or nil for the root.
func (t *Tree) parentOf(ctx context.Context, page *models.Page) (*models.Page, error) {
	parentPath := models.ParentPath(page.Path)
	if parentPath == "" {
		return nil, nil
	}
	return t.byPath(ctx, parentPath)
}

// childrenFilter matches the direct children of parent.
func childrenFilter(parent *models.Page) store.Filter {
	level := parent.Level + 1
	return store.Filter{
		PathPrefix: models.ChildPrefix(parent.Path),
		MinLevel:   &level,
		MaxLevel:   &level,
	}
}
