// Package store defines the Page-Store contract the page tree is built on.
//
// Pages live as flat records. The store offers single-record atomic insert and
// update, plus multi-record scans and updates filtered by materialized-path
// prefix, exact path set, level range and rank lower bound. There are no
// multi-record transactions; callers that mutate several records do so as a
// sequence of independent writes.
//
// # Implementations
//
//   - [github.com/surrealdb/pagetree/pkg/store/memory.Store]: in-process, used by tests
//     and single-node deployments
//   - [github.com/surrealdb/pagetree/pkg/store/surrealdb.Store]: native SurrealQL over
//     the SurrealDB Go SDK
//   - [github.com/surrealdb/pagetree/pkg/store/postgres.Store]: PostgreSQL through GORM
//   - [github.com/surrealdb/pagetree/pkg/store/mongo.Store]: MongoDB through the
//     official driver
//
// Every implementation runs the contract suite in
// [github.com/surrealdb/pagetree/pkg/store/storetest].
package store

import (
	"context"
	"errors"

	"github.com/surrealdb/pagetree/pkg/models"
)

var (
	// ErrNotFound is returned by UpdateOne when no record has the given id.
	ErrNotFound = errors.New("page not found")
	// ErrDuplicatePath is returned by Insert and UpdateOne when the write would
	// give two records the same path.
	ErrDuplicatePath = errors.New("duplicate page path")
	// ErrReadOnly is returned by ReadOnlyStore for every write while read-only
	// mode is on.
	ErrReadOnly = errors.New("operation denied: store is in read-only mode")
)

// PageStore is the persistence contract of the page tree.
//
// Read methods return copies: mutating a returned page never changes the
// stored record. FindOne returns nil without error when nothing matches.
// Find returns an empty slice, never an error, for no matches.
type PageStore interface {
	// FindOne returns the first record matching filter in opts order.
	FindOne(ctx context.Context, filter Filter, opts FindOptions) (*models.Page, error)

	// Find returns every record matching filter, sorted and limited by opts.
	Find(ctx context.Context, filter Filter, opts FindOptions) ([]*models.Page, error)

	// Insert persists a new record. A zero ID is replaced with a fresh one and
	// zero timestamps are set to the current time.
	Insert(ctx context.Context, page *models.Page) error

	// UpdateOne applies update to the record with the given id atomically.
	// Returns ErrNotFound if there is no such record.
	UpdateOne(ctx context.Context, id models.PageID, update Update) error

	// UpdateMany applies update to every record matching filter and returns
	// the number of records matched. Each record is updated atomically; the
	// set as a whole is not.
	UpdateMany(ctx context.Context, filter Filter, update Update) (int64, error)

	// Migrate creates the tables, collections and indexes the store needs,
	// including the unique index on path. Safe to run repeatedly.
	Migrate(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}
