package tree

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/surrealdb/pagetree/pkg/models"
)

// SlugChange records the new slug of one page.
type SlugChange struct {
	ID   models.PageID `json:"id"`
	Slug string        `json:"slug"`
}

// MoveEvent describes a completed move.
type MoveEvent struct {
	Actor    string          `json:"actor,omitempty"`
	Page     *models.Page    `json:"page"`
	OldPath  string          `json:"old_path"`
	OldSlug  string          `json:"old_slug"`
	Position models.Position `json:"position"`
	Target   models.PageID   `json:"target"`
	// Changes lists every descendant whose slug was rewritten by the
	// cascade.
	Changes []SlugChange `json:"changes"`
}

// Notifier receives move events after the move and its cascade finished.
type Notifier interface {
	PageMoved(ctx context.Context, event MoveEvent)
}

// Notifiers fans an event out to several notifiers in order.
type Notifiers []Notifier

func (n Notifiers) PageMoved(ctx context.Context, event MoveEvent) {
	for _, notifier := range n {
		notifier.PageMoved(ctx, event)
	}
}

// LogNotifier writes move events to a logger.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (n LogNotifier) PageMoved(_ context.Context, event MoveEvent) {
	n.Logger.Info().
		Str("id", event.Page.ID.String()).
		Str("old_path", event.OldPath).
		Str("path", event.Page.Path).
		Str("old_slug", event.OldSlug).
		Str("slug", event.Page.Slug).
		Int("changes", len(event.Changes)).
		Msg("page moved")
}

type nopNotifier struct{}

func (nopNotifier) PageMoved(context.Context, MoveEvent) {}
