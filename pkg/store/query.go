package store

import (
	"sort"
	"strings"

	"github.com/surrealdb/pagetree/pkg/models"
)

// Filter selects page records. Every non-zero field narrows the selection;
// the zero Filter matches every record.
type Filter struct {
	IDs []models.PageID
	// Slug matches the slug exactly.
	Slug string
	// Paths matches records whose path is one of the listed paths. A non-nil
	// empty slice matches nothing.
	Paths []string
	// PathPrefix matches records whose path starts with the prefix.
	PathPrefix string
	MinLevel   *int
	MaxLevel   *int
	// MinRank matches records whose rank is greater than or equal to it.
	MinRank *int
	// MaxRank matches records whose rank is less than or equal to it.
	MaxRank *int
	Trash   *bool
	Parked  *bool
}

// SortField names a sortable page attribute.
type SortField string

const (
	SortByID    SortField = "id"
	SortByPath  SortField = "path"
	SortByLevel SortField = "level"
	SortByRank  SortField = "rank"
)

// Sort is one key of a sort order.
type Sort struct {
	Field SortField
	Desc  bool
}

// FindOptions orders and bounds a Find.
type FindOptions struct {
	Sort []Sort
	// Limit caps the number of records returned; zero means no limit.
	Limit int
	// AfterID restricts the result to records whose id sorts after it. Used
	// with Sort by id for keyset pagination over large result sets.
	AfterID *models.PageID
}

// Update is a partial write. Nil fields are left untouched; Properties keys
// are merged into the stored property bag.
type Update struct {
	Path       *string
	Slug       *string
	Level      *int
	Rank       *int
	Trash      *bool
	Parked     *bool
	Published  *bool
	Title      *string
	Type       *string
	Properties models.JSONMap
	// IncRank is added to the stored rank. It must not be combined with Rank.
	IncRank int
}

// IsZero reports whether the update changes nothing.
func (u Update) IsZero() bool {
	return u.Path == nil && u.Slug == nil && u.Level == nil && u.Rank == nil &&
		u.Trash == nil && u.Parked == nil && u.Published == nil && u.Title == nil &&
		u.Type == nil && len(u.Properties) == 0 && u.IncRank == 0
}

// Int returns a pointer to n, for Filter and Update literals.
func Int(n int) *int { return &n }

// Bool returns a pointer to b, for Filter and Update literals.
func Bool(b bool) *bool { return &b }

// String returns a pointer to s, for Update literals.
func String(s string) *string { return &s }

// ByLevelAndRank is the natural tree order: shallower pages first, siblings
// by rank.
var ByLevelAndRank = []Sort{{Field: SortByLevel}, {Field: SortByRank}}

// Matches reports whether page satisfies f. Stores without a native query
// language use it directly; the others use it in tests as the reference
// semantics.
func (f Filter) Matches(page *models.Page) bool {
	if len(f.IDs) > 0 && !containsID(f.IDs, page.ID) {
		return false
	}
	if f.Slug != "" && page.Slug != f.Slug {
		return false
	}
	if f.Paths != nil && !containsString(f.Paths, page.Path) {
		return false
	}
	if f.PathPrefix != "" && !strings.HasPrefix(page.Path, f.PathPrefix) {
		return false
	}
	if f.MinLevel != nil && page.Level < *f.MinLevel {
		return false
	}
	if f.MaxLevel != nil && page.Level > *f.MaxLevel {
		return false
	}
	if f.MinRank != nil && page.Rank < *f.MinRank {
		return false
	}
	if f.MaxRank != nil && page.Rank > *f.MaxRank {
		return false
	}
	if f.Trash != nil && page.Trash != *f.Trash {
		return false
	}
	if f.Parked != nil && page.Parked != *f.Parked {
		return false
	}
	return true
}

// Apply writes u onto page in place.
func (u Update) Apply(page *models.Page) {
	if u.Path != nil {
		page.Path = *u.Path
	}
	if u.Slug != nil {
		page.Slug = *u.Slug
	}
	if u.Level != nil {
		page.Level = *u.Level
	}
	if u.Rank != nil {
		page.Rank = *u.Rank
	}
	page.Rank += u.IncRank
	if u.Trash != nil {
		page.Trash = *u.Trash
	}
	if u.Parked != nil {
		page.Parked = *u.Parked
	}
	if u.Published != nil {
		page.Published = *u.Published
	}
	if u.Title != nil {
		page.Title = *u.Title
	}
	if u.Type != nil {
		page.Type = *u.Type
	}
	if len(u.Properties) > 0 {
		if page.Properties == nil {
			page.Properties = make(models.JSONMap, len(u.Properties))
		}
		for k, v := range u.Properties {
			page.Properties[k] = v
		}
	}
}

// SortPages orders pages in place by sorts, falling back to id so the
// order is total.
func SortPages(pages []*models.Page, sorts []Sort) {
	sort.SliceStable(pages, func(i, j int) bool {
		a, b := pages[i], pages[j]
		for _, s := range sorts {
			c := compare(a, b, s.Field)
			if c == 0 {
				continue
			}
			if s.Desc {
				return c > 0
			}
			return c < 0
		}
		return a.ID.Less(b.ID)
	})
}

func compare(a, b *models.Page, field SortField) int {
	switch field {
	case SortByLevel:
		return a.Level - b.Level
	case SortByRank:
		return a.Rank - b.Rank
	case SortByPath:
		return strings.Compare(a.Path, b.Path)
	case SortByID:
		switch {
		case a.ID.Less(b.ID):
			return -1
		case b.ID.Less(a.ID):
			return 1
		}
	}
	return 0
}

func containsID(ids []models.PageID, id models.PageID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func containsString(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
