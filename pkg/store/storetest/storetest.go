// Package storetest provides the contract test suite every
// [github.com/surrealdb/pagetree/pkg/store.PageStore] implementation runs,
// plus helpers to locate live database servers for integration tests.
//
// Backends that need a server read its address from the environment and
// skip when it is not set:
//
//	SURREALDB_URL  - SurrealDB WebSocket URL, e.g. ws://localhost:8000/rpc
//	POSTGRES_DSN   - PostgreSQL connection string
//	MONGO_URI      - MongoDB connection string
package storetest

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/surrealdb/pagetree/pkg/models"
	"github.com/surrealdb/pagetree/pkg/store"
)

const (
	EnvSurrealDBURL = "SURREALDB_URL"
	EnvPostgresDSN  = "POSTGRES_DSN"
	EnvMongoURI     = "MONGO_URI"
)

// RequireEnv returns the value of the environment variable key, skipping
// the test when it is unset.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	v := os.Getenv(key)
	if v == "" {
		t.Skipf("%s not set, skipping integration test", key)
	}
	return v
}

// Factory opens a fresh, empty store for one test.
type Factory func(t *testing.T) store.PageStore

// Suite exercises the PageStore contract against the store built by New.
type Suite struct {
	suite.Suite
	New Factory

	ctx   context.Context
	store store.PageStore
}

// Run runs the contract suite against the stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	suite.Run(t, &Suite{New: newStore})
}

func (s *Suite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.New(s.T())
	s.Require().NoError(s.store.Migrate(s.ctx))
}

func (s *Suite) TearDownTest() {
	if s.store != nil {
		s.Require().NoError(s.store.Close())
	}
}

func (s *Suite) insert(path, slug string, level, rank int) *models.Page {
	p := &models.Page{
		Title: models.LastSegment(path),
		Type:  models.TypeDefault,
		Path:  path,
		Slug:  slug,
		Level: level,
		Rank:  rank,
	}
	s.Require().NoError(s.store.Insert(s.ctx, p))
	s.Require().False(p.ID.IsZero())
	return p
}

func (s *Suite) seed() {
	s.insert("/", "/", 0, 0)
	s.insert("/a", "/a", 1, 0)
	s.insert("/a/x", "/a/x", 2, 0)
	s.insert("/a/y", "/a/y", 2, 1)
	s.insert("/a/y/z", "/a/y/z", 3, 0)
	s.insert("/ab", "/ab", 1, 1)
}

func paths(pages []*models.Page) []string {
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.Path
	}
	return out
}

func (s *Suite) TestFindOneMissing() {
	p, err := s.store.FindOne(s.ctx, store.Filter{Slug: "/nope"}, store.FindOptions{})
	s.Require().NoError(err)
	s.Nil(p)
}

func (s *Suite) TestInsertAndFindByID() {
	p := s.insert("/", "/", 0, 0)

	got, err := s.store.FindOne(s.ctx, store.Filter{IDs: []models.PageID{p.ID}}, store.FindOptions{})
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(p.ID, got.ID)
	s.Equal("/", got.Path)
	s.Equal(0, got.Level)
	s.False(got.CreatedAt.IsZero())
}

func (s *Suite) TestInsertDuplicatePath() {
	s.insert("/a", "/a", 1, 0)
	err := s.store.Insert(s.ctx, &models.Page{Path: "/a", Slug: "/a-2", Level: 1, Type: models.TypeDefault})
	s.Require().Error(err)
	s.True(errors.Is(err, store.ErrDuplicatePath), "got %v", err)
}

func (s *Suite) TestFindByExactPaths() {
	s.seed()
	pages, err := s.store.Find(s.ctx, store.Filter{Paths: []string{"/", "/a", "/a/y"}},
		store.FindOptions{Sort: store.ByLevelAndRank})
	s.Require().NoError(err)
	s.Equal([]string{"/", "/a", "/a/y"}, paths(pages))
}

func (s *Suite) TestFindByPrefixAndLevel() {
	s.seed()
	pages, err := s.store.Find(s.ctx, store.Filter{
		PathPrefix: "/a/",
		MinLevel:   store.Int(2),
		MaxLevel:   store.Int(2),
	}, store.FindOptions{Sort: store.ByLevelAndRank})
	s.Require().NoError(err)
	s.Equal([]string{"/a/x", "/a/y"}, paths(pages))
}

func (s *Suite) TestFindPrefixIsLiteral() {
	s.insert("/a_b", "/a_b", 1, 0)
	s.insert("/axb", "/axb", 1, 1)
	s.insert("/a%b", "/a%b", 1, 2)

	pages, err := s.store.Find(s.ctx, store.Filter{PathPrefix: "/a_"}, store.FindOptions{})
	s.Require().NoError(err)
	s.Equal([]string{"/a_b"}, paths(pages))

	pages, err = s.store.Find(s.ctx, store.Filter{PathPrefix: "/a%"}, store.FindOptions{})
	s.Require().NoError(err)
	s.Equal([]string{"/a%b"}, paths(pages))
}

func (s *Suite) TestFindMaxRankDescending() {
	s.seed()
	top, err := s.store.FindOne(s.ctx, store.Filter{PathPrefix: "/a/", MinLevel: store.Int(2), MaxLevel: store.Int(2)},
		store.FindOptions{Sort: []store.Sort{{Field: store.SortByRank, Desc: true}}})
	s.Require().NoError(err)
	s.Require().NotNil(top)
	s.Equal("/a/y", top.Path)
}

func (s *Suite) TestFindRankRange() {
	s.seed()
	s.insert("/a/parked", "/a/parked", 2, models.ParkedRankBase)

	top, err := s.store.FindOne(s.ctx, store.Filter{
		PathPrefix: "/a/",
		MinLevel:   store.Int(2),
		MaxLevel:   store.Int(2),
		MaxRank:    store.Int(models.ParkedRankBase - 1),
	}, store.FindOptions{Sort: []store.Sort{{Field: store.SortByRank, Desc: true}}})
	s.Require().NoError(err)
	s.Require().NotNil(top)
	s.Equal("/a/y", top.Path)

	pages, err := s.store.Find(s.ctx, store.Filter{PathPrefix: "/a/", MinRank: store.Int(1), MaxRank: store.Int(1)},
		store.FindOptions{Sort: []store.Sort{{Field: store.SortByPath}}})
	s.Require().NoError(err)
	s.Equal([]string{"/a/y"}, paths(pages))
}

func (s *Suite) TestFindKeysetPagination() {
	s.seed()
	var seen []string
	var after *models.PageID
	for {
		batch, err := s.store.Find(s.ctx, store.Filter{}, store.FindOptions{
			Sort:    []store.Sort{{Field: store.SortByID}},
			Limit:   4,
			AfterID: after,
		})
		s.Require().NoError(err)
		if len(batch) == 0 {
			break
		}
		seen = append(seen, paths(batch)...)
		last := batch[len(batch)-1].ID
		after = &last
	}
	s.ElementsMatch([]string{"/", "/a", "/a/x", "/a/y", "/a/y/z", "/ab"}, seen)
}

func (s *Suite) TestUpdateOne() {
	p := s.insert("/a", "/a", 1, 0)

	err := s.store.UpdateOne(s.ctx, p.ID, store.Update{
		Path:       store.String("/b"),
		Slug:       store.String("/bee"),
		Level:      store.Int(1),
		Rank:       store.Int(7),
		Trash:      store.Bool(true),
		Properties: models.JSONMap{"color": "red"},
	})
	s.Require().NoError(err)

	got, err := s.store.FindOne(s.ctx, store.Filter{IDs: []models.PageID{p.ID}}, store.FindOptions{})
	s.Require().NoError(err)
	s.Equal("/b", got.Path)
	s.Equal("/bee", got.Slug)
	s.Equal(7, got.Rank)
	s.True(got.Trash)
	s.Equal("red", got.Properties["color"])
	s.Equal("a", got.Title)
}

func (s *Suite) TestUpdateOneMissing() {
	err := s.store.UpdateOne(s.ctx, models.NewPageID(), store.Update{Rank: store.Int(1)})
	s.Require().Error(err)
	s.True(errors.Is(err, store.ErrNotFound), "got %v", err)
}

func (s *Suite) TestUpdateManyIncRank() {
	s.seed()
	n, err := s.store.UpdateMany(s.ctx, store.Filter{
		PathPrefix: "/a/",
		MinLevel:   store.Int(2),
		MaxLevel:   store.Int(2),
		MinRank:    store.Int(1),
	}, store.Update{IncRank: 1})
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	pages, err := s.store.Find(s.ctx, store.Filter{PathPrefix: "/a/", MinLevel: store.Int(2), MaxLevel: store.Int(2)},
		store.FindOptions{Sort: store.ByLevelAndRank})
	s.Require().NoError(err)
	s.Require().Len(pages, 2)
	s.Equal(0, pages[0].Rank)
	s.Equal(2, pages[1].Rank)
}

func (s *Suite) TestUpdateManyTrash() {
	s.seed()
	n, err := s.store.UpdateMany(s.ctx, store.Filter{PathPrefix: "/a/"}, store.Update{Trash: store.Bool(true)})
	s.Require().NoError(err)
	s.Equal(int64(3), n)

	trashed, err := s.store.Find(s.ctx, store.Filter{Trash: store.Bool(true)}, store.FindOptions{Sort: []store.Sort{{Field: store.SortByPath}}})
	s.Require().NoError(err)
	s.Equal([]string{"/a/x", "/a/y", "/a/y/z"}, paths(trashed))
}
