package tree

import (
	"context"
	"fmt"
	"strings"

	"github.com/surrealdb/pagetree/pkg/models"
	"github.com/surrealdb/pagetree/pkg/store"
)

// move carries the state shared by the steps of one Move call.
type move struct {
	req      Request
	movedID  models.PageID
	targetID models.PageID
	position models.Position

	moved     *models.Page
	oldParent *models.Page
	target    *models.Page
	newParent *models.Page
	newRank   int

	cascade CascadeRequest
	changes []SlugChange
}

func (m *move) reparenting() bool {
	return m.newParent.ID != m.oldParent.ID
}

// Move places the page movedID before, after or inside targetID.
//
// Validation happens before any write; a refused move changes nothing.
// After the moved page itself is written, descendants are rewritten and a
// failure from then on is returned as a *CascadeError. The result lists the
// moved page and every descendant whose slug changed.
func (t *Tree) Move(ctx context.Context, req Request, movedID, targetID models.PageID, position models.Position) ([]SlugChange, error) {
	unlock, err := t.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	m := &move{req: req, movedID: movedID, targetID: targetID, position: position}
	steps := []step{
		{"resolve-moved", func(ctx context.Context) error { return t.resolveMoved(ctx, m) }},
		{"resolve-target", func(ctx context.Context) error { return t.resolveTarget(ctx, m) }},
		{"new-parent", func(ctx context.Context) error { return t.resolveNewParent(ctx, m) }},
		{"check-permission", func(ctx context.Context) error { return t.checkMove(ctx, m) }},
		{"nudge-siblings", func(ctx context.Context) error { return t.nudge(ctx, m) }},
		{"commit", func(ctx context.Context) error { return t.commitMove(ctx, m) }},
		{"cascade-descendants", func(ctx context.Context) error {
			changes, err := t.cascadeDescendants(ctx, m.cascade)
			m.changes = append(m.changes, changes...)
			if err != nil {
				return &CascadeError{Request: m.cascade, Changes: m.changes, Err: err}
			}
			return nil
		}},
		{"cascade-trash", func(ctx context.Context) error {
			if err := t.cascadeTrash(ctx, m.cascade); err != nil {
				return &CascadeError{Request: m.cascade, Changes: m.changes, Err: err}
			}
			return nil
		}},
		{"notify", func(ctx context.Context) error {
			t.notify(ctx, m)
			return nil
		}},
	}
	if err := t.run(ctx, "move", steps); err != nil {
		if m.cascade.NewPath != "" {
			t.log.Error().Err(err).Str("id", movedID.String()).Str("path", m.cascade.NewPath).Msg("move committed but cascade failed")
		}
		return nil, err
	}

	t.log.Info().
		Str("id", movedID.String()).
		Str("old_path", m.cascade.OldPath).
		Str("path", m.cascade.NewPath).
		Str("position", string(position)).
		Int("slug_changes", len(m.changes)).
		Msg("page moved")
	return m.changes, nil
}

func (t *Tree) resolveMoved(ctx context.Context, m *move) error {
	moved, err := t.byID(ctx, m.movedID)
	if err != nil {
		return fmt.Errorf("load page %s: %w", m.movedID, err)
	}
	if moved == nil {
		return newError(KindNoSuchPage, "page %s", m.movedID)
	}
	if moved.IsRoot() {
		return newError(KindCannotMoveRoot, "page %s is the root", moved.ID)
	}
	if moved.Parked {
		return newError(KindCannotMoveParked, "page %s is parked", moved.Path)
	}
	if moved.IsTrashRoot() {
		return newError(KindCannotMoveTrashRoot, "page %s is the trash", moved.Path)
	}

	parent, err := t.parentOf(ctx, moved)
	if err != nil {
		return fmt.Errorf("load parent of %s: %w", moved.Path, err)
	}
	if parent == nil {
		return newError(KindNoSuchParent, "page %s has no parent", moved.Path)
	}
	m.moved = moved
	m.oldParent = parent
	return nil
}

func (t *Tree) resolveTarget(ctx context.Context, m *move) error {
	target, err := t.byID(ctx, m.targetID)
	if err != nil {
		return fmt.Errorf("load page %s: %w", m.targetID, err)
	}
	if target == nil {
		return newError(KindNoSuchPage, "page %s", m.targetID)
	}
	if target.IsTrashRoot() && m.position == models.PositionAfter {
		return newError(KindTrashMustBeLast, "cannot place %s after the trash", m.moved.Path)
	}
	m.target = target
	return nil
}

func (t *Tree) resolveNewParent(ctx context.Context, m *move) error {
	switch m.position {
	case models.PositionInside:
		m.newParent = m.target
		m.newRank = 0
	case models.PositionBefore, models.PositionAfter:
		if m.position == models.PositionAfter && m.moved.Parked {
			return newError(KindCannotMoveAfterParked, "page %s is parked", m.moved.Path)
		}
		if m.target.IsRoot() {
			return newError(KindInvalidPosition, "cannot place a page %s the root", m.position)
		}
		parent, err := t.parentOf(ctx, m.target)
		if err != nil {
			return fmt.Errorf("load parent of %s: %w", m.target.Path, err)
		}
		if parent == nil {
			return newError(KindNoSuchParent, "page %s has no parent", m.target.Path)
		}
		m.newParent = parent
		m.newRank = m.target.Rank
		if m.position == models.PositionAfter {
			m.newRank++
		}
		if m.target.Parked || m.newRank >= models.ParkedRankBase {
			// Ordinary pages stay below the parked range, so a page placed
			// next to a parked sibling goes after the last ordinary one.
			if m.newRank, err = t.nextRank(ctx, parent); err != nil {
				return err
			}
		}
	default:
		return newError(KindInvalidPosition, "unknown position %q", m.position)
	}

	if m.newParent.ID == m.moved.ID || strings.HasPrefix(m.newParent.Path, models.ChildPrefix(m.moved.Path)) {
		return newError(KindCannotMoveIntoSelf, "cannot move %s into %s", m.moved.Path, m.newParent.Path)
	}
	return nil
}

func (t *Tree) checkMove(ctx context.Context, m *move) error {
	if !t.perms.CanPublish(ctx, m.req, m.moved) {
		return newError(KindForbidden, "cannot publish %s", m.moved.Path)
	}
	if m.reparenting() {
		// Anyone who may publish a page may put it in the trash.
		if !m.newParent.Trash && !t.perms.CanEdit(ctx, m.req, m.newParent) {
			return newError(KindForbidden, "cannot edit %s", m.newParent.Path)
		}
		if !t.registry.Get(m.newParent.Type).CanHaveChild(m.newParent, m.moved) {
			return newError(KindForbidden, "%s pages cannot contain %s pages", m.newParent.Type, m.moved.Type)
		}
	}
	return t.registry.Get(m.moved.Type).BeforeMove(ctx, m.req, m.moved, m.newParent, m.position)
}

// nudge makes room at newRank by shifting later ordinary siblings up by one.
// It runs before the commit so the moved page never shares a rank with a
// sibling. Parked siblings keep their ranks.
func (t *Tree) nudge(ctx context.Context, m *move) error {
	filter := childrenFilter(m.newParent)
	filter.MinRank = &m.newRank
	filter.Parked = store.Bool(false)
	if _, err := t.store.UpdateMany(ctx, filter, store.Update{IncRank: 1}); err != nil {
		return fmt.Errorf("nudge children of %s: %w", m.newParent.Path, err)
	}
	return nil
}

func (t *Tree) commitMove(ctx context.Context, m *move) error {
	oldPath, oldSlug := m.moved.Path, m.moved.Slug
	newPath, newSlug := oldPath, oldSlug
	if m.reparenting() {
		var err error
		newPath, err = t.uniquePath(ctx, models.JoinPath(m.newParent.Path, models.LastSegment(oldPath)))
		if err != nil {
			return fmt.Errorf("allocate path: %w", err)
		}
		newSlug, _ = rebaseSlug(oldSlug, m.oldParent.Slug, m.newParent.Slug)
	}
	newLevel := m.newParent.Level + 1
	trash := m.newParent.Trash

	update := store.Update{
		Path:  &newPath,
		Slug:  &newSlug,
		Level: &newLevel,
		Rank:  &m.newRank,
		Trash: &trash,
	}
	if err := t.store.UpdateOne(ctx, m.moved.ID, update); err != nil {
		return fmt.Errorf("move %s: %w", oldPath, err)
	}

	m.cascade = CascadeRequest{
		OldPath:    oldPath,
		NewPath:    newPath,
		OldSlug:    oldSlug,
		NewSlug:    newSlug,
		LevelDelta: newLevel - m.moved.Level,
		Trash:      &trash,
	}
	if newSlug != oldSlug {
		m.changes = append(m.changes, SlugChange{ID: m.moved.ID, Slug: newSlug})
	}
	update.Apply(m.moved)
	return nil
}

func (t *Tree) notify(ctx context.Context, m *move) {
	descendants := m.changes
	if len(descendants) > 0 && descendants[0].ID == m.moved.ID {
		descendants = descendants[1:]
	}
	t.notifier.PageMoved(ctx, MoveEvent{
		Actor:    m.req.Actor,
		Page:     m.moved.Clone(),
		OldPath:  m.cascade.OldPath,
		OldSlug:  m.cascade.OldSlug,
		Position: m.position,
		Target:   m.targetID,
		Changes:  append([]SlugChange(nil), descendants...),
	})
}
