package tree

import (
	"context"
	"sync"

	"github.com/surrealdb/pagetree/pkg/models"
)

// Manager holds the behaviour attached to a page type.
type Manager interface {
	// CanHaveChild reports whether child may be placed directly under parent.
	CanHaveChild(parent, child *models.Page) bool
	// BeforeMove runs after the permission checks of a move and before its
	// first write. A non-nil error aborts the move.
	BeforeMove(ctx context.Context, req Request, moved, newParent *models.Page, position models.Position) error
}

// DefaultManager accepts any child and any move.
type DefaultManager struct{}

func (DefaultManager) CanHaveChild(_, _ *models.Page) bool { return true }

func (DefaultManager) BeforeMove(context.Context, Request, *models.Page, *models.Page, models.Position) error {
	return nil
}

// Registry maps page types to managers. Types without a registered manager
// use DefaultManager.
type Registry struct {
	mu       sync.RWMutex
	managers map[string]Manager
}

func NewRegistry() *Registry {
	return &Registry{managers: make(map[string]Manager)}
}

// Register sets the manager for pageType, replacing any previous one.
func (r *Registry) Register(pageType string, m Manager) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.managers[pageType] = m
}

// Get returns the manager for pageType.
func (r *Registry) Get(pageType string) Manager {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.managers[pageType]; ok {
		return m
	}
	return DefaultManager{}
}
