// Package surrealdb provides a SurrealDB implementation of
// [github.com/surrealdb/pagetree/pkg/store.PageStore] using native SurrealQL.
//
// Pages are stored in the pages table keyed by RecordIDs of the form
// pages:<uuid>; [github.com/surrealdb/pagetree/pkg/models.PageID] marshals to that
// RecordID on its own, so the application model is written as-is.
//
// # Query Safety
//
// Every value reaches SurrealDB as a query parameter ($name). Only field
// names chosen from a fixed set are ever interpolated into query text.
//
// # Atomicity
//
// Each statement runs atomically. UpdateMany is one UPDATE statement and
// therefore atomic per record; there is no multi-statement transaction, in
// line with the store contract.
//
// # Usage Example
//
//	s, err := surrealdb.New(ctx, surrealdb.Config{
//		URL:       "ws://localhost:8000/rpc",
//		Namespace: "pagetree",
//		Database:  "pagetree",
//		Username:  "root",
//		Password:  "root",
//	})
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	if err := s.Migrate(ctx); err != nil {
//		return err
//	}
package surrealdb

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/surrealdb/surrealdb.go/surrealcbor"

	"github.com/surrealdb/pagetree/pkg/models"
	"github.com/surrealdb/pagetree/pkg/store"
)

// Config holds the connection settings for a SurrealDB store.
type Config struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
}

// Store implements store.PageStore on SurrealDB.
type Store struct {
	db *surrealdb.DB
}

// New connects to SurrealDB, signs in when credentials are given and
// selects the namespace and database.
//
// The connection is configured with the surrealcbor codec so that
// time.Time and RecordID values round-trip in SurrealDB's native format.
func New(ctx context.Context, cfg Config) (*Store, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse URL")
	}

	conf := connection.NewConfig(u)
	codec := surrealcbor.New()
	conf.Marshaler = codec
	conf.Unmarshaler = codec

	db, err := surrealdb.FromConnection(ctx, gorillaws.New(conf))
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to SurrealDB")
	}

	if cfg.Username != "" && cfg.Password != "" {
		if _, err := db.SignIn(ctx, map[string]any{
			"user": cfg.Username,
			"pass": cfg.Password,
		}); err != nil {
			return nil, errors.Wrap(err, "failed to authenticate")
		}
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		return nil, errors.Wrap(err, "failed to use namespace/database")
	}

	return &Store{db: db}, nil
}

// Migrate defines the pages table and its indexes. The unique index on path
// is what turns a colliding write into store.ErrDuplicatePath.
func (s *Store) Migrate(ctx context.Context) error {
	const schema = `
DEFINE TABLE IF NOT EXISTS pages SCHEMALESS;
DEFINE INDEX IF NOT EXISTS pages_path ON TABLE pages FIELDS path UNIQUE;
DEFINE INDEX IF NOT EXISTS pages_slug ON TABLE pages FIELDS slug;
DEFINE INDEX IF NOT EXISTS pages_level_rank ON TABLE pages FIELDS level, rank;
`
	if _, err := surrealdb.Query[any](ctx, s.db, schema, nil); err != nil {
		return errors.Wrap(err, "failed to define pages schema")
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close(context.Background())
}

func (s *Store) FindOne(ctx context.Context, filter store.Filter, opts store.FindOptions) (*models.Page, error) {
	opts.Limit = 1
	pages, err := s.Find(ctx, filter, opts)
	if err != nil || len(pages) == 0 {
		return nil, err
	}
	return pages[0], nil
}

func (s *Store) Find(ctx context.Context, filter store.Filter, opts store.FindOptions) ([]*models.Page, error) {
	vars := map[string]any{}
	var sb strings.Builder
	sb.WriteString("SELECT * FROM pages")
	conds := whereConditions(filter, vars)
	if opts.AfterID != nil {
		conds = append(conds, "id > $after")
		vars["after"] = opts.AfterID.RecordID()
	}
	writeWhere(&sb, conds)
	if len(opts.Sort) > 0 {
		sb.WriteString(" ORDER BY ")
		for i, o := range opts.Sort {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fieldName(o.Field))
			if o.Desc {
				sb.WriteString(" DESC")
			} else {
				sb.WriteString(" ASC")
			}
		}
	}
	if opts.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", opts.Limit)
	}

	result, err := surrealdb.Query[[]models.Page](ctx, s.db, sb.String(), vars)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find pages")
	}

	pages := make([]*models.Page, 0)
	if result == nil || len(*result) == 0 {
		return pages, nil
	}
	for i := range (*result)[0].Result {
		pages = append(pages, &(*result)[0].Result[i])
	}
	return pages, nil
}

func (s *Store) Insert(ctx context.Context, page *models.Page) error {
	if page.ID.IsZero() {
		page.ID = models.NewPageID()
	}
	if page.CreatedAt.IsZero() {
		page.CreatedAt = time.Now()
	}
	if page.UpdatedAt.IsZero() {
		page.UpdatedAt = time.Now()
	}

	_, err := surrealdb.Query[[]models.Page](ctx, s.db, "CREATE $id CONTENT $content", map[string]any{
		"id":      page.ID.RecordID(),
		"content": page,
	})
	if err != nil {
		return translate(err, "failed to create page")
	}
	return nil
}

func (s *Store) UpdateOne(ctx context.Context, id models.PageID, update store.Update) error {
	vars := map[string]any{"id": id.RecordID()}
	n, err := s.update(ctx, "$id", nil, update, vars)
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrapf(store.ErrNotFound, "page %s", id)
	}
	return nil
}

func (s *Store) UpdateMany(ctx context.Context, filter store.Filter, update store.Update) (int64, error) {
	vars := map[string]any{}
	return s.update(ctx, "pages", whereConditions(filter, vars), update, vars)
}

// update runs a SET statement and, when properties are updated, a MERGE
// statement on the same target. It returns the number of records touched.
func (s *Store) update(ctx context.Context, target string, conds []string, update store.Update, vars map[string]any) (int64, error) {
	var where strings.Builder
	writeWhere(&where, conds)

	sets := setClauses(update, vars)
	sets = append(sets, "updated_at = time::now()")

	statements := []string{
		"UPDATE " + target + " SET " + strings.Join(sets, ", ") + where.String() + " RETURN id",
	}
	if len(update.Properties) > 0 {
		vars["properties"] = map[string]any(update.Properties)
		statements = append(statements,
			"UPDATE "+target+" MERGE { properties: $properties }"+where.String()+" RETURN id")
	}

	type touched struct {
		ID models.PageID `json:"id"`
	}
	result, err := surrealdb.Query[[]touched](ctx, s.db, strings.Join(statements, ";\n"), vars)
	if err != nil {
		return 0, translate(err, "failed to update pages")
	}
	if result == nil || len(*result) == 0 {
		return 0, nil
	}
	return int64(len((*result)[0].Result)), nil
}

func setClauses(u store.Update, vars map[string]any) []string {
	var sets []string
	set := func(field string, v any) {
		vars["set_"+field] = v
		sets = append(sets, field+" = $set_"+field)
	}
	if u.Path != nil {
		set("path", *u.Path)
	}
	if u.Slug != nil {
		set("slug", *u.Slug)
	}
	if u.Level != nil {
		set("level", *u.Level)
	}
	if u.Rank != nil {
		set("rank", *u.Rank)
	}
	if u.Trash != nil {
		set("trash", *u.Trash)
	}
	if u.Parked != nil {
		set("parked", *u.Parked)
	}
	if u.Published != nil {
		set("published", *u.Published)
	}
	if u.Title != nil {
		set("title", *u.Title)
	}
	if u.Type != nil {
		set("type", *u.Type)
	}
	if u.IncRank != 0 {
		vars["inc_rank"] = u.IncRank
		sets = append(sets, "rank += $inc_rank")
	}
	return sets
}

func whereConditions(f store.Filter, vars map[string]any) []string {
	var conds []string
	if len(f.IDs) > 0 {
		ids := make([]surrealmodels.RecordID, len(f.IDs))
		for i, id := range f.IDs {
			ids[i] = id.RecordID()
		}
		vars["ids"] = ids
		conds = append(conds, "id INSIDE $ids")
	}
	if f.Slug != "" {
		vars["slug"] = f.Slug
		conds = append(conds, "slug = $slug")
	}
	if f.Paths != nil {
		vars["paths"] = f.Paths
		conds = append(conds, "path INSIDE $paths")
	}
	if f.PathPrefix != "" {
		vars["prefix"] = f.PathPrefix
		conds = append(conds, "string::starts_with(path, $prefix)")
	}
	if f.MinLevel != nil {
		vars["min_level"] = *f.MinLevel
		conds = append(conds, "level >= $min_level")
	}
	if f.MaxLevel != nil {
		vars["max_level"] = *f.MaxLevel
		conds = append(conds, "level <= $max_level")
	}
	if f.MinRank != nil {
		vars["min_rank"] = *f.MinRank
		conds = append(conds, "rank >= $min_rank")
	}
	if f.MaxRank != nil {
		vars["max_rank"] = *f.MaxRank
		conds = append(conds, "rank <= $max_rank")
	}
	if f.Trash != nil {
		vars["trash"] = *f.Trash
		conds = append(conds, "trash = $trash")
	}
	if f.Parked != nil {
		vars["parked"] = *f.Parked
		conds = append(conds, "parked = $parked")
	}
	return conds
}

func writeWhere(sb *strings.Builder, conds []string) {
	if len(conds) == 0 {
		return
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(strings.Join(conds, " AND "))
}

func fieldName(f store.SortField) string {
	switch f {
	case store.SortByLevel:
		return "level"
	case store.SortByRank:
		return "rank"
	case store.SortByPath:
		return "path"
	default:
		return "id"
	}
}

// translate maps unique-index violations on path to store.ErrDuplicatePath.
func translate(err error, msg string) error {
	if strings.Contains(err.Error(), "pages_path") && strings.Contains(err.Error(), "already contains") {
		return errors.Wrap(store.ErrDuplicatePath, err.Error())
	}
	return errors.Wrap(err, msg)
}
