// Package mongo provides a MongoDB implementation of
// [github.com/surrealdb/pagetree/pkg/store.PageStore].
//
// Pages are documents in the pages collection with the page id as a string
// _id. Prefix scans are anchored, literal-quoted $regex matches, which MongoDB
// serves from the unique index on path. Multi-record updates are a single
// updateMany; each document is updated atomically, the set is not.
package mongo

import (
	"context"
	"regexp"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/surrealdb/pagetree/pkg/models"
	"github.com/surrealdb/pagetree/pkg/store"
)

// Config holds the connection settings for a MongoDB store.
type Config struct {
	URI      string
	Database string
	// Collection defaults to models.PagesTable.
	Collection string
}

// Store implements store.PageStore on MongoDB.
type Store struct {
	client *mongo.Client
	pages  *mongo.Collection
}

// New connects to MongoDB and verifies the connection with a ping.
func New(ctx context.Context, cfg Config) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to MongoDB")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(err, "failed to ping MongoDB")
	}
	collection := cfg.Collection
	if collection == "" {
		collection = models.PagesTable
	}
	return &Store{
		client: client,
		pages:  client.Database(cfg.Database).Collection(collection),
	}, nil
}

// Migrate creates the unique path index and the slug and (level, rank)
// indexes.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pages.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "path", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "slug", Value: 1}}},
		{Keys: bson.D{{Key: "level", Value: 1}, {Key: "rank", Value: 1}}},
	})
	return errors.Wrap(err, "failed to create page indexes")
}

// Drop removes the collection. Used by tests to start from an empty store.
func (s *Store) Drop(ctx context.Context) error {
	return s.pages.Drop(ctx)
}

func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
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
	q := query(filter)
	if opts.AfterID != nil {
		q["_id"] = mergeOp(q["_id"], "$gt", *opts.AfterID)
	}

	findOpts := options.Find()
	if len(opts.Sort) > 0 {
		sort := bson.D{}
		for _, o := range opts.Sort {
			dir := 1
			if o.Desc {
				dir = -1
			}
			sort = append(sort, bson.E{Key: fieldName(o.Field), Value: dir})
		}
		findOpts.SetSort(sort)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}

	cursor, err := s.pages.Find(ctx, q, findOpts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find pages")
	}
	defer cursor.Close(ctx)

	pages := make([]*models.Page, 0)
	for cursor.Next(ctx) {
		var p models.Page
		if err := cursor.Decode(&p); err != nil {
			return nil, errors.Wrap(err, "failed to decode page")
		}
		pages = append(pages, &p)
	}
	if err := cursor.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate pages")
	}
	return pages, nil
}

func (s *Store) Insert(ctx context.Context, page *models.Page) error {
	if page.ID.IsZero() {
		page.ID = models.NewPageID()
	}
	now := time.Now().UTC()
	if page.CreatedAt.IsZero() {
		page.CreatedAt = now
	}
	if page.UpdatedAt.IsZero() {
		page.UpdatedAt = now
	}
	if _, err := s.pages.InsertOne(ctx, page); err != nil {
		return translate(err, "failed to insert page")
	}
	return nil
}

func (s *Store) UpdateOne(ctx context.Context, id models.PageID, update store.Update) error {
	res, err := s.pages.UpdateOne(ctx, bson.M{"_id": id}, document(update))
	if err != nil {
		return translate(err, "failed to update page")
	}
	if res.MatchedCount == 0 {
		return errors.Wrapf(store.ErrNotFound, "page %s", id)
	}
	return nil
}

func (s *Store) UpdateMany(ctx context.Context, filter store.Filter, update store.Update) (int64, error) {
	res, err := s.pages.UpdateMany(ctx, query(filter), document(update))
	if err != nil {
		return 0, translate(err, "failed to update pages")
	}
	return res.MatchedCount, nil
}

func query(f store.Filter) bson.M {
	q := bson.M{}
	if len(f.IDs) > 0 {
		q["_id"] = bson.M{"$in": f.IDs}
	}
	if f.Slug != "" {
		q["slug"] = f.Slug
	}
	if f.Paths != nil {
		q["path"] = bson.M{"$in": f.Paths}
	}
	if f.PathPrefix != "" {
		q["path"] = mergeOp(q["path"], "$regex", "^"+regexp.QuoteMeta(f.PathPrefix))
	}
	if f.MinLevel != nil {
		q["level"] = mergeOp(q["level"], "$gte", *f.MinLevel)
	}
	if f.MaxLevel != nil {
		q["level"] = mergeOp(q["level"], "$lte", *f.MaxLevel)
	}
	if f.MinRank != nil {
		q["rank"] = bson.M{"$gte": *f.MinRank}
	}
	if f.MaxRank != nil {
		q["rank"] = mergeOp(q["rank"], "$lte", *f.MaxRank)
	}
	if f.Trash != nil {
		q["trash"] = *f.Trash
	}
	if f.Parked != nil {
		q["parked"] = *f.Parked
	}
	return q
}

// mergeOp adds an operator to the condition already present for a field.
func mergeOp(existing any, op string, v any) bson.M {
	m, ok := existing.(bson.M)
	if !ok {
		m = bson.M{}
	}
	m[op] = v
	return m
}

func document(u store.Update) bson.M {
	set := bson.M{"updated_at": time.Now().UTC()}
	if u.Path != nil {
		set["path"] = *u.Path
	}
	if u.Slug != nil {
		set["slug"] = *u.Slug
	}
	if u.Level != nil {
		set["level"] = *u.Level
	}
	if u.Rank != nil {
		set["rank"] = *u.Rank
	}
	if u.Trash != nil {
		set["trash"] = *u.Trash
	}
	if u.Parked != nil {
		set["parked"] = *u.Parked
	}
	if u.Published != nil {
		set["published"] = *u.Published
	}
	if u.Title != nil {
		set["title"] = *u.Title
	}
	if u.Type != nil {
		set["type"] = *u.Type
	}
	for k, v := range u.Properties {
		set["properties."+k] = v
	}

	doc := bson.M{"$set": set}
	if u.IncRank != 0 {
		doc["$inc"] = bson.M{"rank": u.IncRank}
	}
	return doc
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
		return "_id"
	}
}

func translate(err error, msg string) error {
	if mongo.IsDuplicateKeyError(err) {
		return errors.Wrap(store.ErrDuplicatePath, err.Error())
	}
	return errors.Wrap(err, msg)
}
