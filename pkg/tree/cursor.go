package tree

import (
	"context"
	"fmt"

	"github.com/surrealdb/pagetree/pkg/models"
	"github.com/surrealdb/pagetree/pkg/store"
)

// AncestorOptions asks for a page's ancestors, root first.
type AncestorOptions struct {
	// Depth keeps only the nearest Depth ancestors; zero keeps all of them.
	Depth int
	// Children, when set, expands the children of every ancestor.
	Children *ChildOptions
}

// ChildOptions asks for a page's descendants nested as children.
type ChildOptions struct {
	// Depth is how many levels to descend; zero means one.
	Depth int
	// IncludeTrash keeps trashed descendants. They are always kept under a
	// page that is itself in the trash.
	IncludeTrash bool
}

// ExpandOptions selects what Expand attaches to each page.
type ExpandOptions struct {
	Ancestors *AncestorOptions
	Children  *ChildOptions
}

// Get loads a page by id and expands it.
func (t *Tree) Get(ctx context.Context, id models.PageID, opts ExpandOptions) (*models.Page, error) {
	page, err := t.byID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load page %s: %w", id, err)
	}
	if page == nil {
		return nil, newError(KindNoSuchPage, "page %s", id)
	}
	if err := t.Expand(ctx, []*models.Page{page}, opts); err != nil {
		return nil, err
	}
	return page, nil
}

// GetBySlug loads a page by slug and expands it.
func (t *Tree) GetBySlug(ctx context.Context, slug string, opts ExpandOptions) (*models.Page, error) {
	page, err := t.bySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("load page %q: %w", slug, err)
	}
	if page == nil {
		return nil, newError(KindNoSuchPage, "slug %q", slug)
	}
	if err := t.Expand(ctx, []*models.Page{page}, opts); err != nil {
		return nil, err
	}
	return page, nil
}

// Expand fills Ancestors and Children of pages in place. Every container
// gets its own copies, so the same record reached from two pages is two
// independent objects.
func (t *Tree) Expand(ctx context.Context, pages []*models.Page, opts ExpandOptions) error {
	cache := make(map[childKey][]*models.Page)
	if opts.Ancestors != nil {
		if err := t.attachAncestors(ctx, pages, *opts.Ancestors, cache); err != nil {
			return err
		}
	}
	if opts.Children != nil {
		for _, page := range pages {
			if err := t.attachChildren(ctx, page, *opts.Children, cache); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Tree) attachAncestors(ctx context.Context, pages []*models.Page, opts AncestorOptions, cache map[childKey][]*models.Page) error {
	wanted := make(map[*models.Page][]string, len(pages))
	seen := make(map[string]bool)
	all := make([]string, 0)
	for _, page := range pages {
		paths := models.AncestorPaths(page.Path)
		if opts.Depth > 0 && len(paths) > opts.Depth {
			paths = paths[len(paths)-opts.Depth:]
		}
		wanted[page] = paths
		for _, p := range paths {
			if !seen[p] {
				seen[p] = true
				all = append(all, p)
			}
		}
	}

	found, err := t.store.Find(ctx, store.Filter{Paths: all}, store.FindOptions{Sort: store.ByLevelAndRank})
	if err != nil {
		return fmt.Errorf("load ancestors: %w", err)
	}
	byPath := make(map[string]*models.Page, len(found))
	for _, p := range found {
		byPath[p.Path] = p
	}

	for _, page := range pages {
		ancestors := make([]*models.Page, 0, len(wanted[page]))
		for _, path := range wanted[page] {
			a, ok := byPath[path]
			if !ok {
				continue
			}
			a = a.Clone()
			if opts.Children != nil {
				if err := t.attachChildren(ctx, a, *opts.Children, cache); err != nil {
					return err
				}
			}
			ancestors = append(ancestors, a)
		}
		page.Ancestors = ancestors
	}
	return nil
}

// childKey identifies one descendant query within a single Expand call.
type childKey struct {
	path         string
	depth        int
	includeTrash bool
}

func (t *Tree) attachChildren(ctx context.Context, container *models.Page, opts ChildOptions, cache map[childKey][]*models.Page) error {
	depth := opts.Depth
	if depth < 1 {
		depth = 1
	}
	includeTrash := opts.IncludeTrash || container.Trash
	key := childKey{path: container.Path, depth: depth, includeTrash: includeTrash}

	flat, ok := cache[key]
	if !ok {
		minLevel, maxLevel := container.Level+1, container.Level+depth
		filter := store.Filter{
			PathPrefix: models.ChildPrefix(container.Path),
			MinLevel:   &minLevel,
			MaxLevel:   &maxLevel,
		}
		if !includeTrash {
			filter.Trash = store.Bool(false)
		}
		var err error
		flat, err = t.store.Find(ctx, filter, store.FindOptions{Sort: store.ByLevelAndRank})
		if err != nil {
			return fmt.Errorf("load children of %s: %w", container.Path, err)
		}
		cache[key] = flat
	}

	container.Children = nest(container, flat)
	return nil
}

// nest links copies of flat under container. flat must be ordered by level
// then rank so parents are seen before their children.
func nest(container *models.Page, flat []*models.Page) []*models.Page {
	root := &models.Page{Path: container.Path}
	byPath := map[string]*models.Page{container.Path: root}
	for _, p := range flat {
		parent, ok := byPath[models.ParentPath(p.Path)]
		if !ok {
			// The parent was filtered out, e.g. a trashed page.
			continue
		}
		c := p.Clone()
		parent.Children = append(parent.Children, c)
		byPath[c.Path] = c
	}
	return root.Children
}
