package tree_test

import (
	"context"
	"errors"

	"github.com/surrealdb/pagetree/pkg/models"
	"github.com/surrealdb/pagetree/pkg/store"
	"github.com/surrealdb/pagetree/pkg/tree"
)

func (s *TreeSuite) move(moved, target *models.Page, position models.Position) []tree.SlugChange {
	changes, err := s.tree.Move(s.ctx, tree.Request{Actor: "ed"}, moved.ID, target.ID, position)
	s.Require().NoError(err)
	return changes
}

func (s *TreeSuite) TestMoveInsideCurrentParentIsNoop() {
	a := s.add(s.home, "A")
	a1 := s.add(a, "A1")

	changes := s.move(a1, a, models.PositionInside)
	s.Empty(changes)

	got := s.reload(a1)
	s.Equal("/a/a1", got.Path)
	s.Equal("/a/a1", got.Slug)
	s.Equal(0, got.Rank)
	s.Equal(2, got.Level)
	s.requireConsistent()
}

func (s *TreeSuite) TestMoveAfterSibling() {
	blog := s.add(s.home, "Blog")
	post1 := s.add(blog, "Post1")
	post2 := s.add(blog, "Post2")

	changes := s.move(post1, post2, models.PositionAfter)
	s.Empty(changes)
	s.Equal(2, s.reload(post1).Rank)
	s.Equal(1, s.reload(post2).Rank)
	s.requireConsistent()
}

func (s *TreeSuite) TestMoveBeforeSiblingNudges() {
	blog := s.add(s.home, "Blog")
	post1 := s.add(blog, "Post1")
	post2 := s.add(blog, "Post2")
	post3 := s.add(blog, "Post3")

	s.move(post3, post1, models.PositionBefore)
	s.Equal(0, s.reload(post3).Rank)
	s.Equal(1, s.reload(post1).Rank)
	s.Equal(2, s.reload(post2).Rank)
	s.requireConsistent()
}

func (s *TreeSuite) TestMoveInsideTakesFirstPlace() {
	blog := s.add(s.home, "Blog")
	existing := s.add(blog, "Existing")
	about := s.add(s.home, "About")

	s.move(about, blog, models.PositionInside)
	got := s.reload(about)
	s.Equal("/blog/about", got.Path)
	s.Equal(0, got.Rank)
	s.Equal(2, got.Level)
	s.Equal(1, s.reload(existing).Rank)
	s.requireConsistent()
}

func (s *TreeSuite) TestMoveRebasesInheritedSlug() {
	blog := s.add(s.home, "Blog")
	archive := s.add(s.home, "Archive")
	post := s.add(blog, "Post 1")
	custom := s.addWithSlug(blog, "Custom", "/custom-name")
	s.Equal("/blog/post-1", post.Slug)

	changes := s.move(post, archive, models.PositionInside)
	s.Equal([]tree.SlugChange{{ID: post.ID, Slug: "/archive/post-1"}}, changes)
	s.Equal("/archive/post-1", s.reload(post).Slug)

	changes = s.move(custom, archive, models.PositionInside)
	s.Empty(changes)
	got := s.reload(custom)
	s.Equal("/custom-name", got.Slug)
	s.Equal("/archive/custom", got.Path)
	s.requireConsistent()
}

func (s *TreeSuite) TestMoveCascadesDescendants() {
	blog := s.add(s.home, "Blog")
	archive := s.add(s.home, "Archive")
	var posts []*models.Page
	for _, title := range []string{"One", "Two", "Three", "Four", "Five"} {
		posts = append(posts, s.add(blog, title))
	}
	comment := s.add(posts[0], "Comment")
	custom := s.addWithSlug(posts[1], "Custom", "/elsewhere")

	changes := s.move(blog, archive, models.PositionInside)

	s.Require().Len(changes, 7, "blog, five posts and the comment")
	s.Equal(tree.SlugChange{ID: blog.ID, Slug: "/archive/blog"}, changes[0])
	s.Contains(changes, tree.SlugChange{ID: comment.ID, Slug: "/archive/blog/one/comment"})

	got := s.reload(comment)
	s.Equal("/archive/blog/one/comment", got.Path)
	s.Equal(4, got.Level)
	for i, p := range posts {
		got := s.reload(p)
		s.Equal(3, got.Level)
		s.Equal(i, got.Rank)
		s.Equal("/archive/blog/"+models.LastSegment(p.Path), got.Path)
	}
	got = s.reload(custom)
	s.Equal("/elsewhere", got.Slug)
	s.Equal("/archive/blog/two/custom", got.Path)

	s.Require().Len(s.events.events, 1)
	event := s.events.events[0]
	s.Equal("/blog", event.OldPath)
	s.Equal("/blog", event.OldSlug)
	s.Equal("/archive/blog", event.Page.Path)
	s.Equal("ed", event.Actor)
	s.Len(event.Changes, 6)
	s.requireConsistent()
}

func (s *TreeSuite) TestMoveWithinParentHasEmptyCascade() {
	blog := s.add(s.home, "Blog")
	post := s.add(blog, "Post")
	s.add(post, "Child")
	other := s.add(blog, "Other")

	changes := s.move(post, other, models.PositionAfter)
	s.Empty(changes)
	s.Equal("/blog/post", s.reload(post).Path)
	s.Require().Len(s.events.events, 1)
	s.Empty(s.events.events[0].Changes)
}

func (s *TreeSuite) TestMoveIntoTrashAndBack() {
	page := s.add(s.home, "Page")
	child := s.add(page, "Child")
	odd := s.addWithSlug(child, "Odd", "/odd")

	s.move(page, s.trash, models.PositionInside)
	for _, p := range []*models.Page{page, child, odd} {
		got := s.reload(p)
		s.True(got.Trash, got.Path)
	}
	s.Equal("/trash/page/child/odd", s.reload(odd).Path)
	s.Equal("/odd", s.reload(odd).Slug)
	s.requireConsistent()

	s.move(page, s.home, models.PositionInside)
	for _, p := range []*models.Page{page, child, odd} {
		got := s.reload(p)
		s.False(got.Trash, got.Path)
	}
	s.Equal("/page", s.reload(page).Path)
	s.requireConsistent()
}

func (s *TreeSuite) TestMoveBeforeTrash() {
	first := s.add(s.home, "First")
	blog := s.add(s.home, "Blog")
	page := s.add(blog, "Page")

	s.move(page, s.trash, models.PositionBefore)
	got := s.reload(page)
	s.Equal("/page", got.Path)
	s.Equal(2, got.Rank, "after the last ordinary sibling")
	s.False(got.Trash)
	s.Equal(0, s.reload(first).Rank)
	s.Equal(1, s.reload(blog).Rank)
	s.Equal(models.ParkedRankBase, s.reload(s.trash).Rank)
	s.requireConsistent()
}

func (s *TreeSuite) TestMoveKeepsParkedRanks() {
	decls := append(tree.DefaultParked(), tree.ParkedPage{Slug: "/help"})
	s.Require().NoError(s.tree.Park(s.ctx, decls))
	help := s.bySlug("/help")
	s.True(help.Parked)
	helpRank := help.Rank

	a := s.add(s.home, "A")
	b := s.add(s.home, "B")
	c := s.add(a, "C")
	d := s.add(a, "D")

	s.move(c, s.trash, models.PositionBefore)
	s.move(d, s.home, models.PositionInside)
	s.move(b, help, models.PositionAfter)
	last := s.add(s.home, "Last")
	s.move(c, last, models.PositionAfter)

	s.Equal(models.ParkedRankBase, s.reload(s.trash).Rank)
	s.Equal(helpRank, s.reload(help).Rank)
	for _, p := range []*models.Page{a, b, c, d, last} {
		got := s.reload(p)
		s.Less(got.Rank, models.ParkedRankBase, got.Path)
	}
	s.requireConsistent()

	before := s.all()
	s.Require().NoError(s.tree.Park(s.ctx, decls))
	s.Equal(before, s.all())
	s.requireConsistent()
}

func (s *TreeSuite) TestMoveRefusals() {
	page := s.add(s.home, "Page")
	child := s.add(page, "Child")
	missing := &models.Page{ID: models.NewPageID()}

	tests := []struct {
		name     string
		moved    *models.Page
		target   *models.Page
		position models.Position
		want     error
	}{
		{"missing moved page", missing, s.home, models.PositionInside, tree.ErrNoSuchPage},
		{"missing target", page, missing, models.PositionInside, tree.ErrNoSuchPage},
		{"root", s.home, page, models.PositionInside, tree.ErrCannotMoveRoot},
		{"parked", s.trash, page, models.PositionInside, tree.ErrCannotMoveParked},
		{"after trash", page, s.trash, models.PositionAfter, tree.ErrTrashMustBeLast},
		{"unknown position", page, child, models.Position("sideways"), tree.ErrInvalidPosition},
		{"beside root", page, s.home, models.PositionBefore, tree.ErrInvalidPosition},
		{"into itself", page, page, models.PositionInside, tree.ErrCannotMoveIntoSelf},
		{"into descendant", page, child, models.PositionInside, tree.ErrCannotMoveIntoSelf},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			before := s.all()
			_, err := s.tree.Move(s.ctx, tree.Request{Actor: "ed"}, tt.moved.ID, tt.target.ID, tt.position)
			s.ErrorIs(err, tt.want)
			s.Equal(before, s.all(), "a refused move writes nothing")
		})
	}
}

func (s *TreeSuite) TestMoveTrashRoot() {
	s.Require().NoError(s.store.UpdateOne(s.ctx, s.trash.ID, store.Update{Parked: store.Bool(false)}))
	page := s.add(s.home, "Page")

	_, err := s.tree.Move(s.ctx, tree.Request{}, s.trash.ID, page.ID, models.PositionInside)
	s.ErrorIs(err, tree.ErrCannotMoveTrashRoot)
}

// policy grants publish and edit rights independently.
type policy struct {
	publish bool
	edit    bool
}

func (p policy) CanPublish(context.Context, tree.Request, *models.Page) bool { return p.publish }
func (p policy) CanEdit(context.Context, tree.Request, *models.Page) bool    { return p.edit }

func (s *TreeSuite) TestMovePermissions() {
	blog := s.add(s.home, "Blog")
	a := s.add(blog, "A")
	b := s.add(blog, "B")
	archive := s.add(s.home, "Archive")

	noPublish := s.newTree(s.store, tree.WithPermissions(policy{publish: false, edit: true}))
	_, err := noPublish.Move(s.ctx, tree.Request{}, a.ID, b.ID, models.PositionAfter)
	s.ErrorIs(err, tree.ErrForbidden)

	publishOnly := s.newTree(s.store, tree.WithPermissions(policy{publish: true}))
	_, err = publishOnly.Move(s.ctx, tree.Request{}, a.ID, archive.ID, models.PositionInside)
	s.ErrorIs(err, tree.ErrForbidden)

	// Reordering under the same parent needs no edit rights on it.
	_, err = publishOnly.Move(s.ctx, tree.Request{}, a.ID, b.ID, models.PositionAfter)
	s.NoError(err)

	// Neither does moving into the trash.
	_, err = publishOnly.Move(s.ctx, tree.Request{}, a.ID, s.trash.ID, models.PositionInside)
	s.NoError(err)
	s.True(s.reload(a).Trash)
}

func (s *TreeSuite) TestMoveManagerHooks() {
	s.registry.Register("leaf", noChildren{})
	s.registry.Register("locked", refuseMoves{})
	leaf, err := s.tree.Insert(s.ctx, s.home, &models.Page{Title: "Leaf", Type: "leaf"})
	s.Require().NoError(err)
	locked, err := s.tree.Insert(s.ctx, s.home, &models.Page{Title: "Locked", Type: "locked"})
	s.Require().NoError(err)
	page := s.add(s.home, "Page")

	_, err = s.tree.Move(s.ctx, tree.Request{}, page.ID, leaf.ID, models.PositionInside)
	s.ErrorIs(err, tree.ErrForbidden)

	before := s.all()
	_, err = s.tree.Move(s.ctx, tree.Request{}, locked.ID, page.ID, models.PositionAfter)
	s.ErrorIs(err, errVetoed)
	s.Equal(before, s.all())
}

// faultyStore fails the n-th UpdateOne call.
type faultyStore struct {
	store.PageStore
	failAt  int
	updates int
}

var errStorage = errors.New("storage unavailable")

func (f *faultyStore) UpdateOne(ctx context.Context, id models.PageID, u store.Update) error {
	f.updates++
	if f.updates == f.failAt {
		return errStorage
	}
	return f.PageStore.UpdateOne(ctx, id, u)
}

func (s *TreeSuite) TestMovePartialFailureCanBeResumed() {
	blog := s.add(s.home, "Blog")
	archive := s.add(s.home, "Archive")
	for _, title := range []string{"One", "Two", "Three", "Four"} {
		s.add(blog, title)
	}

	// The first update commits the move, the second rewrites one
	// descendant and the third fails.
	faulty := &faultyStore{PageStore: s.store, failAt: 3}
	changes, err := s.newTree(faulty).Move(s.ctx, tree.Request{}, blog.ID, archive.ID, models.PositionInside)
	s.Nil(changes)
	s.ErrorIs(err, errStorage)

	var cascadeErr *tree.CascadeError
	s.Require().True(errors.As(err, &cascadeErr))
	s.Equal("/blog", cascadeErr.Request.OldPath)
	s.Equal("/archive/blog", cascadeErr.Request.NewPath)
	s.Equal(1, cascadeErr.Request.LevelDelta)
	s.Len(cascadeErr.Changes, 2, "the moved page and one descendant")

	s.Equal("/archive/blog", s.reload(blog).Path)
	s.NotEmpty(tree.Check(s.all()), "the subtree is half moved")

	rest, err := s.tree.Cascade(s.ctx, cascadeErr.Request)
	s.Require().NoError(err)
	s.Len(rest, 3)
	s.requireConsistent()

	again, err := s.tree.Cascade(s.ctx, cascadeErr.Request)
	s.Require().NoError(err)
	s.Empty(again)
}
