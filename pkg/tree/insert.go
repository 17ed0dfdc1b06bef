package tree

import (
	"context"
	"fmt"

	"github.com/surrealdb/pagetree/pkg/models"
	"github.com/surrealdb/pagetree/pkg/store"
)

// InsertByID loads the parent by id, checks that the actor may add pages
// under it and inserts page as its last ordinary child.
func (t *Tree) InsertByID(ctx context.Context, req Request, parentID models.PageID, page *models.Page) (*models.Page, error) {
	unlock, err := t.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var parent *models.Page
	steps := []step{
		{"resolve-parent", func(ctx context.Context) error {
			p, err := t.byID(ctx, parentID)
			if err != nil {
				return fmt.Errorf("load parent %s: %w", parentID, err)
			}
			if p == nil {
				return newError(KindNoSuchParent, "page %s", parentID)
			}
			parent = p
			return nil
		}},
		{"check-permission", func(ctx context.Context) error {
			if !t.perms.CanPublish(ctx, req, parent) {
				return newError(KindParentNotPublishable, "cannot add pages under %s", parent.Path)
			}
			return nil
		}},
	}
	if err := t.run(ctx, "insert", steps); err != nil {
		return nil, err
	}
	return t.insert(ctx, parent, page)
}

// Insert adds page as the last ordinary child of an already loaded parent.
// The caller is trusted to have checked the parent; only the parent type's
// manager is consulted.
//
// The path segment comes from the page title. Path and slug get a numeric
// suffix when taken. A caller-supplied slug is kept, otherwise the slug is
// built from the parent's. The page inherits the parent's trash state.
func (t *Tree) Insert(ctx context.Context, parent, page *models.Page) (*models.Page, error) {
	unlock, err := t.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return t.insert(ctx, parent, page)
}

func (t *Tree) insert(ctx context.Context, parent, page *models.Page) (*models.Page, error) {
	if parent == nil {
		return nil, newError(KindNoSuchParent, "no parent given")
	}
	page = page.Clone()
	segment := segmentFor(page.Title)

	steps := []step{
		{"check-child-type", func(ctx context.Context) error {
			if page.Type == "" {
				page.Type = models.TypeDefault
			}
			if !t.registry.Get(parent.Type).CanHaveChild(parent, page) {
				return newError(KindForbidden, "%s pages cannot contain %s pages", parent.Type, page.Type)
			}
			return nil
		}},
		{"next-rank", func(ctx context.Context) error {
			rank, err := t.nextRank(ctx, parent)
			if err != nil {
				return err
			}
			page.Rank = rank
			return nil
		}},
		{"assign-path", func(ctx context.Context) error {
			path, err := t.uniquePath(ctx, models.JoinPath(parent.Path, segment))
			if err != nil {
				return fmt.Errorf("allocate path: %w", err)
			}
			slug := page.Slug
			if slug == "" {
				slug = models.JoinPath(parent.Slug, segment)
			}
			if slug, err = t.uniqueSlug(ctx, slug); err != nil {
				return fmt.Errorf("allocate slug: %w", err)
			}
			page.Path = path
			page.Slug = slug
			page.Level = parent.Level + 1
			page.Trash = page.Trash || parent.Trash
			return nil
		}},
		{"insert", func(ctx context.Context) error {
			if err := t.store.Insert(ctx, page); err != nil {
				return fmt.Errorf("insert %s: %w", page.Path, err)
			}
			return nil
		}},
	}
	if err := t.run(ctx, "insert", steps); err != nil {
		return nil, err
	}
	t.log.Info().Str("id", page.ID.String()).Str("path", page.Path).Int("rank", page.Rank).Msg("page inserted")
	return page, nil
}

// nextRank is one past the highest rank among parent's ordinary children,
// or zero. Parked ranks are skipped so new pages sort before them.
func (t *Tree) nextRank(ctx context.Context, parent *models.Page) (int, error) {
	filter := childrenFilter(parent)
	filter.MaxRank = store.Int(models.ParkedRankBase - 1)
	last, err := t.store.FindOne(ctx, filter, store.FindOptions{
		Sort: []store.Sort{{Field: store.SortByRank, Desc: true}},
	})
	if err != nil {
		return 0, fmt.Errorf("find last child of %s: %w", parent.Path, err)
	}
	if last == nil {
		return 0, nil
	}
	return last.Rank + 1, nil
}
