package tree

import (
	"context"
	"fmt"

	"github.com/surrealdb/pagetree/pkg/models"
	"github.com/surrealdb/pagetree/pkg/store"
)

// CascadeRequest describes how a moved page's subtree must be rewritten.
type CascadeRequest struct {
	OldPath    string `json:"old_path"`
	NewPath    string `json:"new_path"`
	OldSlug    string `json:"old_slug"`
	NewSlug    string `json:"new_slug"`
	LevelDelta int    `json:"level_delta"`
	// Trash, when set, is written to every descendant under NewPath.
	Trash *bool `json:"trash,omitempty"`
}

// Cascade rewrites the descendants of a moved page and then applies the
// trash state to them. It returns the descendants whose slug changed.
//
// Running it again with the same request after a failure finishes the job:
// descendants already rewritten no longer match OldPath and are skipped.
func (t *Tree) Cascade(ctx context.Context, req CascadeRequest) ([]SlugChange, error) {
	unlock, err := t.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	changes, err := t.cascadeDescendants(ctx, req)
	if err != nil {
		return changes, &CascadeError{Request: req, Changes: changes, Err: err}
	}
	if err := t.cascadeTrash(ctx, req); err != nil {
		return changes, &CascadeError{Request: req, Changes: changes, Err: err}
	}
	return changes, nil
}

// cascadeDescendants streams the subtree under OldPath in id order, one
// bounded batch at a time, and rewrites path, slug and level of each record.
// Pages are updated as they are read; keyset pagination on id keeps a
// rewritten record from being read twice.
func (t *Tree) cascadeDescendants(ctx context.Context, req CascadeRequest) ([]SlugChange, error) {
	changes := make([]SlugChange, 0)
	if req.OldPath == req.NewPath && req.OldSlug == req.NewSlug {
		return changes, nil
	}

	filter := store.Filter{PathPrefix: models.ChildPrefix(req.OldPath)}
	var after *models.PageID
	for {
		batch, err := t.store.Find(ctx, filter, store.FindOptions{
			Sort:    []store.Sort{{Field: store.SortByID}},
			Limit:   t.batchSize,
			AfterID: after,
		})
		if err != nil {
			return changes, fmt.Errorf("read descendants of %s: %w", req.OldPath, err)
		}

		for _, d := range batch {
			newPath := req.NewPath + d.Path[len(req.OldPath):]
			newLevel := d.Level + req.LevelDelta
			newSlug := d.Slug
			if req.OldSlug != req.NewSlug {
				newSlug, _ = rebaseSlug(d.Slug, req.OldSlug, req.NewSlug)
			}

			err := t.store.UpdateOne(ctx, d.ID, store.Update{
				Path:  &newPath,
				Slug:  &newSlug,
				Level: &newLevel,
			})
			if err != nil {
				return changes, fmt.Errorf("rewrite %s: %w", d.Path, err)
			}
			if newSlug != d.Slug {
				changes = append(changes, SlugChange{ID: d.ID, Slug: newSlug})
			}
		}

		if len(batch) < t.batchSize {
			return changes, nil
		}
		last := batch[len(batch)-1].ID
		after = &last
	}
}

// cascadeTrash sets the trash flag on every descendant under NewPath in one
// multi-record update, whatever the slug rewrite did.
func (t *Tree) cascadeTrash(ctx context.Context, req CascadeRequest) error {
	if req.Trash == nil {
		return nil
	}
	filter := store.Filter{PathPrefix: models.ChildPrefix(req.NewPath)}
	n, err := t.store.UpdateMany(ctx, filter, store.Update{Trash: req.Trash})
	if err != nil {
		return fmt.Errorf("set trash under %s: %w", req.NewPath, err)
	}
	t.log.Debug().Str("path", req.NewPath).Bool("trash", *req.Trash).Int64("pages", n).Msg("trash cascaded")
	return nil
}
