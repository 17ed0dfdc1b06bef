package tree

import (
	"context"
	"fmt"
	"reflect"

	"github.com/surrealdb/pagetree/pkg/models"
	"github.com/surrealdb/pagetree/pkg/store"
)

// ParkedPage declares a page whose existence and position are owned by
// Park. Every field set here is forced on each run; Defaults only apply when
// the page is created.
type ParkedPage struct {
	Slug string `toml:"slug" json:"slug"`
	// Parent is the slug of the parent page. It defaults to the root for
	// top-level declarations and to the enclosing declaration for children.
	Parent    string         `toml:"parent" json:"parent,omitempty"`
	Type      string         `toml:"type" json:"type,omitempty"`
	Title     string         `toml:"title" json:"title,omitempty"`
	Published *bool          `toml:"published" json:"published,omitempty"`
	Trash     *bool          `toml:"trash" json:"trash,omitempty"`
	Rank      *int           `toml:"rank" json:"rank,omitempty"`
	Fields    models.JSONMap `toml:"fields" json:"fields,omitempty"`
	Defaults  ParkedDefaults `toml:"defaults" json:"defaults"`
	Children  []ParkedPage   `toml:"children" json:"children,omitempty"`
}

// ParkedDefaults are values written only when a parked page is created.
type ParkedDefaults struct {
	Title     string         `toml:"title" json:"title,omitempty"`
	Published *bool          `toml:"published" json:"published,omitempty"`
	Fields    models.JSONMap `toml:"fields" json:"fields,omitempty"`
}

// DefaultParked declares the home page at the root and the trash as its
// last child.
func DefaultParked() []ParkedPage {
	published := true
	trash := true
	trashRank := models.ParkedRankBase
	return []ParkedPage{
		{
			Slug:     models.RootPath,
			Type:     models.TypeHome,
			Defaults: ParkedDefaults{Title: "Home", Published: &published},
		},
		{
			Slug:     "/trash",
			Type:     models.TypeTrash,
			Trash:    &trash,
			Rank:     &trashRank,
			Defaults: ParkedDefaults{Title: "Trash"},
		},
	}
}

// Park creates every declared page that does not exist yet and forces the
// declared fields on those that do. Running it again with the same
// declarations changes nothing.
//
// Pages are matched by slug. A created page without a declared rank gets the
// first free rank from ParkedRankBase plus its index among its declared
// siblings.
func (t *Tree) Park(ctx context.Context, declarations []ParkedPage) error {
	unlock, err := t.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	for i, d := range declarations {
		if err := t.park(ctx, d, i); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) park(ctx context.Context, d ParkedPage, index int) error {
	if d.Slug == "" {
		return fmt.Errorf("parked page %d has no slug", index)
	}

	var page *models.Page
	steps := []step{
		{"find", func(ctx context.Context) error {
			existing, err := t.bySlug(ctx, d.Slug)
			if err != nil {
				return fmt.Errorf("load parked page %s: %w", d.Slug, err)
			}
			page = existing
			return nil
		}},
		{"enforce", func(ctx context.Context) error {
			if page == nil {
				created, err := t.createParked(ctx, d, index)
				page = created
				return err
			}
			update := forcedUpdate(page, d)
			if d.Rank == nil && !page.IsRoot() && page.Rank < models.ParkedRankBase {
				rank, err := t.adoptedRank(ctx, page, index)
				if err != nil {
					return err
				}
				update.Rank = &rank
			}
			if update.IsZero() {
				return nil
			}
			if err := t.store.UpdateOne(ctx, page.ID, update); err != nil {
				return fmt.Errorf("update parked page %s: %w", d.Slug, err)
			}
			t.log.Info().Str("slug", d.Slug).Msg("parked page updated")
			return nil
		}},
	}
	if err := t.run(ctx, "park", steps); err != nil {
		return err
	}

	for i, child := range d.Children {
		child.Parent = d.Slug
		if err := t.park(ctx, child, i); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) createParked(ctx context.Context, d ParkedPage, index int) (*models.Page, error) {
	page := &models.Page{
		Type:       d.Type,
		Title:      d.Title,
		Slug:       d.Slug,
		Parked:     true,
		Properties: models.JSONMap{},
	}
	if page.Type == "" {
		page.Type = models.TypeDefault
	}
	if page.Title == "" {
		page.Title = d.Defaults.Title
	}
	if d.Published != nil {
		page.Published = *d.Published
	} else if d.Defaults.Published != nil {
		page.Published = *d.Defaults.Published
	}
	for k, v := range d.Defaults.Fields {
		page.Properties[k] = v
	}
	for k, v := range d.Fields {
		page.Properties[k] = v
	}

	if d.Slug == models.RootPath {
		page.Path = models.RootPath
		if page.Title == "" {
			page.Title = "Home"
		}
	} else {
		parentSlug := d.Parent
		if parentSlug == "" {
			parentSlug = models.RootPath
		}
		parent, err := t.bySlug(ctx, parentSlug)
		if err != nil {
			return nil, fmt.Errorf("load parent %s: %w", parentSlug, err)
		}
		if parent == nil {
			return nil, newError(KindNoSuchParent, "parked page %s needs parent %s", d.Slug, parentSlug)
		}

		segment := segmentFor(models.LastSegment(d.Slug))
		if page.Title == "" {
			page.Title = models.LastSegment(d.Slug)
		}
		if page.Path, err = t.uniquePath(ctx, models.JoinPath(parent.Path, segment)); err != nil {
			return nil, fmt.Errorf("allocate path: %w", err)
		}
		page.Level = parent.Level + 1
		page.Trash = parent.Trash
		if d.Rank != nil {
			page.Rank = *d.Rank
		} else if page.Rank, err = t.freeRank(ctx, parent, models.ParkedRankBase+index); err != nil {
			return nil, err
		}
	}
	if d.Trash != nil {
		page.Trash = *d.Trash
	}

	if err := t.store.Insert(ctx, page); err != nil {
		return nil, fmt.Errorf("insert parked page %s: %w", d.Slug, err)
	}
	t.log.Info().Str("slug", d.Slug).Str("path", page.Path).Msg("parked page created")
	return page, nil
}

// freeRank returns the lowest rank at or above from that no child of parent
// holds.
func (t *Tree) freeRank(ctx context.Context, parent *models.Page, from int) (int, error) {
	filter := childrenFilter(parent)
	filter.MinRank = &from
	taken, err := t.store.Find(ctx, filter, store.FindOptions{Sort: []store.Sort{{Field: store.SortByRank}}})
	if err != nil {
		return 0, fmt.Errorf("find parked ranks under %s: %w", parent.Path, err)
	}
	rank := from
	for _, p := range taken {
		if p.Rank > rank {
			break
		}
		if p.Rank == rank {
			rank++
		}
	}
	return rank, nil
}

// adoptedRank is the rank given to an existing ordinary page when Park takes
// it over without a declared rank.
func (t *Tree) adoptedRank(ctx context.Context, page *models.Page, index int) (int, error) {
	parent, err := t.parentOf(ctx, page)
	if err != nil {
		return 0, fmt.Errorf("load parent of %s: %w", page.Path, err)
	}
	if parent == nil {
		return 0, newError(KindNoSuchParent, "parked page %s has no parent", page.Path)
	}
	return t.freeRank(ctx, parent, models.ParkedRankBase+index)
}

// forcedUpdate returns the writes needed to bring page in line with d. It
// never touches fields d leaves unset.
func forcedUpdate(page *models.Page, d ParkedPage) store.Update {
	var u store.Update
	if !page.Parked {
		u.Parked = store.Bool(true)
	}
	if d.Type != "" && page.Type != d.Type {
		u.Type = &d.Type
	}
	if d.Title != "" && page.Title != d.Title {
		u.Title = &d.Title
	}
	if d.Published != nil && page.Published != *d.Published {
		u.Published = d.Published
	}
	if d.Trash != nil && page.Trash != *d.Trash {
		u.Trash = d.Trash
	}
	if d.Rank != nil && page.Rank != *d.Rank {
		u.Rank = d.Rank
	}
	for k, v := range d.Fields {
		if current, ok := page.Properties[k]; !ok || !reflect.DeepEqual(normalize(current), normalize(v)) {
			if u.Properties == nil {
				u.Properties = models.JSONMap{}
			}
			u.Properties[k] = v
		}
	}
	return u
}

// normalize widens every number in v to float64. Stores decode numbers as
// int32, int64 or float64 depending on the backend, while declarations hold
// whatever the TOML decoder produced.
func normalize(v any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = normalize(iter.Value().Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return v
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = normalize(rv.Index(i).Interface())
		}
		return out
	}
	return v
}
