package tree_test

import (
	"github.com/surrealdb/pagetree/pkg/models"
	"github.com/surrealdb/pagetree/pkg/tree"
)

func titles(pages []*models.Page) []string {
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.Title
	}
	return out
}

// site builds:
//
//	/ (home)
//	├── blog
//	│   ├── post-a
//	│   │   └── comment
//	│   └── post-b
//	├── about
//	└── trash
//	    └── old
func (s *TreeSuite) site() (blog, postA, postB, comment *models.Page) {
	blog = s.add(s.home, "Blog")
	postA = s.add(blog, "Post A")
	postB = s.add(blog, "Post B")
	comment = s.add(postA, "Comment")
	s.add(s.home, "About")
	s.add(s.trash, "Old")
	return
}

func (s *TreeSuite) TestGetChildren() {
	s.site()

	home, err := s.tree.Get(s.ctx, s.home.ID, tree.ExpandOptions{Children: &tree.ChildOptions{}})
	s.Require().NoError(err)
	s.Equal([]string{"Blog", "About"}, titles(home.Children))
	s.Empty(home.Children[0].Children)

	home, err = s.tree.Get(s.ctx, s.home.ID, tree.ExpandOptions{Children: &tree.ChildOptions{Depth: 2, IncludeTrash: true}})
	s.Require().NoError(err)
	s.Equal([]string{"Blog", "About", "Trash"}, titles(home.Children))
	s.Equal([]string{"Post A", "Post B"}, titles(home.Children[0].Children))
	s.Equal([]string{"Old"}, titles(home.Children[2].Children))
	s.Empty(home.Children[0].Children[0].Children, "comment is three levels down")
}

func (s *TreeSuite) TestTrashChildrenAreShownUnderTrash() {
	s.site()
	trash, err := s.tree.GetBySlug(s.ctx, "/trash", tree.ExpandOptions{Children: &tree.ChildOptions{}})
	s.Require().NoError(err)
	s.Equal([]string{"Old"}, titles(trash.Children))
}

func (s *TreeSuite) TestGetAncestors() {
	_, _, _, comment := s.site()

	got, err := s.tree.Get(s.ctx, comment.ID, tree.ExpandOptions{Ancestors: &tree.AncestorOptions{}})
	s.Require().NoError(err)
	s.Equal([]string{"Home", "Blog", "Post A"}, titles(got.Ancestors))

	got, err = s.tree.Get(s.ctx, comment.ID, tree.ExpandOptions{Ancestors: &tree.AncestorOptions{Depth: 1}})
	s.Require().NoError(err)
	s.Equal([]string{"Post A"}, titles(got.Ancestors))

	home, err := s.tree.Get(s.ctx, s.home.ID, tree.ExpandOptions{Ancestors: &tree.AncestorOptions{}})
	s.Require().NoError(err)
	s.Empty(home.Ancestors)
}

func (s *TreeSuite) TestExpandGivesEveryContainerItsOwnCopies() {
	_, postA, postB, _ := s.site()
	pages := []*models.Page{s.reload(postA), s.reload(postB)}

	err := s.tree.Expand(s.ctx, pages, tree.ExpandOptions{
		Ancestors: &tree.AncestorOptions{Children: &tree.ChildOptions{}},
		Children:  &tree.ChildOptions{},
	})
	s.Require().NoError(err)

	blogFromA := pages[0].Ancestors[1]
	blogFromB := pages[1].Ancestors[1]
	s.Equal([]string{"Post A", "Post B"}, titles(blogFromA.Children))
	s.Equal([]string{"Post A", "Post B"}, titles(blogFromB.Children))
	s.NotSame(blogFromA, blogFromB)
	s.NotSame(blogFromA.Children[0], blogFromB.Children[0])
	s.NotSame(pages[0], blogFromA.Children[0])

	s.Equal([]string{"Comment"}, titles(pages[0].Children))
	s.Empty(pages[1].Children)
}

func (s *TreeSuite) TestGetMissing() {
	_, err := s.tree.Get(s.ctx, models.NewPageID(), tree.ExpandOptions{})
	s.ErrorIs(err, tree.ErrNoSuchPage)

	_, err = s.tree.GetBySlug(s.ctx, "/nope", tree.ExpandOptions{})
	s.ErrorIs(err, tree.ErrNoSuchPage)
}

func (s *TreeSuite) TestVerify() {
	s.site()
	violations, err := s.tree.Verify(s.ctx)
	s.Require().NoError(err)
	s.Empty(violations)
}
