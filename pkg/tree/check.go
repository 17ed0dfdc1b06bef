package tree

import (
	"context"
	"fmt"
	"sort"

	"github.com/surrealdb/pagetree/pkg/models"
	"github.com/surrealdb/pagetree/pkg/store"
)

// Violation is one broken tree invariant.
type Violation struct {
	ID      models.PageID `json:"id"`
	Path    string        `json:"path"`
	Problem string        `json:"problem"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s (%s): %s", v.Path, v.ID, v.Problem)
}

// Check reports every page that breaks path uniqueness, parent/level
// consistency, sibling rank order, trash closure or the parked rank range.
func Check(pages []*models.Page) []Violation {
	var violations []Violation
	add := func(p *models.Page, format string, args ...any) {
		violations = append(violations, Violation{ID: p.ID, Path: p.Path, Problem: fmt.Sprintf(format, args...)})
	}

	byPath := make(map[string]*models.Page, len(pages))
	for _, p := range pages {
		if other, ok := byPath[p.Path]; ok {
			add(p, "path also used by %s", other.ID)
			continue
		}
		byPath[p.Path] = p
	}

	type siblingRank struct {
		parent string
		rank   int
	}
	ranks := make(map[siblingRank]*models.Page)

	for _, p := range pages {
		if p.Path == models.RootPath {
			if p.Level != 0 {
				add(p, "root has level %d", p.Level)
			}
			continue
		}
		parentPath := models.ParentPath(p.Path)
		parent, ok := byPath[parentPath]
		if !ok {
			add(p, "parent %s does not exist", parentPath)
			continue
		}
		if p.Level != parent.Level+1 {
			add(p, "level %d, parent level %d", p.Level, parent.Level)
		}
		if parent.Trash && !p.Trash {
			add(p, "not in trash but parent %s is", parent.Path)
		}
		switch reserved := p.Rank >= models.ParkedRankBase; {
		case p.Parked && !reserved:
			add(p, "parked page has rank %d below %d", p.Rank, models.ParkedRankBase)
		case !p.Parked && reserved:
			add(p, "rank %d is reserved for parked pages", p.Rank)
		}
		key := siblingRank{parent: parentPath, rank: p.Rank}
		if other, ok := ranks[key]; ok {
			add(p, "rank %d shared with sibling %s", p.Rank, other.Path)
			continue
		}
		ranks[key] = p
	}

	sort.SliceStable(violations, func(i, j int) bool { return violations[i].Path < violations[j].Path })
	return violations
}

// Verify loads every page in batches and runs Check over them.
func (t *Tree) Verify(ctx context.Context) ([]Violation, error) {
	var (
		all   []*models.Page
		after *models.PageID
	)
	for {
		batch, err := t.store.Find(ctx, store.Filter{}, store.FindOptions{
			Sort:    []store.Sort{{Field: store.SortByID}},
			Limit:   t.batchSize,
			AfterID: after,
		})
		if err != nil {
			return nil, fmt.Errorf("load pages: %w", err)
		}
		all = append(all, batch...)
		if len(batch) < t.batchSize {
			break
		}
		last := batch[len(batch)-1].ID
		after = &last
	}
	return Check(all), nil
}
