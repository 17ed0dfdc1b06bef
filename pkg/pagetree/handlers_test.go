package pagetree

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"

	"github.com/surrealdb/pagetree/pkg/models"
	"github.com/surrealdb/pagetree/pkg/store/memory"
	"github.com/surrealdb/pagetree/pkg/tree"
)

type HandlersSuite struct {
	suite.Suite
	app    *App
	server *httptest.Server
	home   *models.Page
}

func TestHandlersSuite(t *testing.T) {
	suite.Run(t, new(HandlersSuite))
}

func (s *HandlersSuite) SetupTest() {
	s.app = NewWithStore(&Config{Store: StoreMemory}, memory.New(), zerolog.Nop())
	s.Require().NoError(s.app.Park(context.Background(), &ParkCommand{}))
	s.server = httptest.NewServer(s.app.Routes())

	home, err := s.app.Tree().GetBySlug(context.Background(), models.RootPath, tree.ExpandOptions{})
	s.Require().NoError(err)
	s.home = home
}

func (s *HandlersSuite) TearDownTest() {
	s.server.Close()
	s.NoError(s.app.Close())
}

func (s *HandlersSuite) do(method, path, actor string, body any, out any) int {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	s.Require().NoError(err)
	if actor != "" {
		req.Header.Set(ActorHeader, actor)
	}
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal("application/json", resp.Header.Get("Content-Type"))
	if out != nil {
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s *HandlersSuite) insert(parent models.PageID, title string) *models.Page {
	var page models.Page
	status := s.do("POST", "/api/pages/"+parent.String()+"/children", "ed", InsertRequest{Title: title}, &page)
	s.Require().Equal(http.StatusCreated, status)
	return &page
}

func (s *HandlersSuite) TestHealth() {
	var body map[string]any
	s.Equal(http.StatusOK, s.do("GET", "/api/health", "", nil, &body))
	s.Equal("healthy", body["status"])
	s.Equal(StoreMemory, body["store"])
	s.Equal(false, body["read_only"])
}

func (s *HandlersSuite) TestInsertAndGet() {
	blog := s.insert(s.home.ID, "Blog")
	post := s.insert(blog.ID, "First Post")
	s.Equal("/blog/first-post", post.Path)
	s.Equal(2, post.Level)

	var got models.Page
	s.Equal(http.StatusOK, s.do("GET", "/api/pages/"+post.ID.String()+"?ancestors=0", "", nil, &got))
	s.Equal(post.ID, got.ID)
	s.Require().Len(got.Ancestors, 2)
	s.Equal("Home", got.Ancestors[0].Title)
	s.Equal("Blog", got.Ancestors[1].Title)

	s.Equal(http.StatusOK, s.do("GET", "/api/pages?slug="+url.QueryEscape("/blog")+"&children=1", "", nil, &got))
	s.Equal(blog.ID, got.ID)
	s.Require().Len(got.Children, 1)
	s.Equal("First Post", got.Children[0].Title)
}

func (s *HandlersSuite) TestInsertRequiresActor() {
	var body map[string]string
	status := s.do("POST", "/api/pages/"+s.home.ID.String()+"/children", "", InsertRequest{Title: "Anon"}, &body)
	s.Equal(http.StatusForbidden, status)
	s.Equal(string(tree.KindParentNotPublishable), body["kind"])
}

func (s *HandlersSuite) TestInsertValidation() {
	var body map[string]string
	s.Equal(http.StatusBadRequest, s.do("POST", "/api/pages/nope/children", "ed", InsertRequest{Title: "x"}, &body))
	s.Equal(http.StatusBadRequest, s.do("POST", "/api/pages/"+s.home.ID.String()+"/children", "ed", InsertRequest{}, &body))
	s.Equal(http.StatusNotFound, s.do("POST", "/api/pages/"+models.NewPageID().String()+"/children", "ed", InsertRequest{Title: "x"}, &body))
	s.Equal(string(tree.KindNoSuchParent), body["kind"])
}

func (s *HandlersSuite) TestGetMissing() {
	var body map[string]string
	s.Equal(http.StatusNotFound, s.do("GET", "/api/pages/"+models.NewPageID().String(), "", nil, &body))
	s.Equal(string(tree.KindNoSuchPage), body["kind"])
	s.Equal(http.StatusBadRequest, s.do("GET", "/api/pages/"+s.home.ID.String()+"?children=-1", "", nil, &body))
}

func (s *HandlersSuite) TestMove() {
	blog := s.insert(s.home.ID, "Blog")
	archive := s.insert(s.home.ID, "Archive")
	post := s.insert(blog.ID, "Post")
	comment := s.insert(post.ID, "Comment")

	var resp MoveResponse
	status := s.do("POST", "/api/pages/"+post.ID.String()+"/move", "ed",
		MoveRequest{Target: archive.ID, Position: models.PositionInside}, &resp)
	s.Require().Equal(http.StatusOK, status)
	s.Equal("/archive/post", resp.Page.Path)
	s.Equal("/archive/post", resp.Page.Slug)
	s.ElementsMatch([]tree.SlugChange{
		{ID: post.ID, Slug: "/archive/post"},
		{ID: comment.ID, Slug: "/archive/post/comment"},
	}, resp.Changes)
}

func (s *HandlersSuite) TestMoveRefusals() {
	blog := s.insert(s.home.ID, "Blog")
	trash, err := s.app.Tree().GetBySlug(context.Background(), "/trash", tree.ExpandOptions{})
	s.Require().NoError(err)

	tests := []struct {
		name   string
		moved  models.PageID
		body   MoveRequest
		status int
		kind   tree.Kind
	}{
		{"root", s.home.ID, MoveRequest{Target: blog.ID, Position: models.PositionInside}, http.StatusConflict, tree.KindCannotMoveRoot},
		{"parked", trash.ID, MoveRequest{Target: blog.ID, Position: models.PositionBefore}, http.StatusConflict, tree.KindCannotMoveParked},
		{"after trash", blog.ID, MoveRequest{Target: trash.ID, Position: models.PositionAfter}, http.StatusConflict, tree.KindTrashMustBeLast},
		{"bad position", blog.ID, MoveRequest{Target: trash.ID, Position: "under"}, http.StatusBadRequest, tree.KindInvalidPosition},
		{"missing target", blog.ID, MoveRequest{Target: models.NewPageID(), Position: models.PositionInside}, http.StatusNotFound, tree.KindNoSuchPage},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			var body map[string]string
			status := s.do("POST", "/api/pages/"+tt.moved.String()+"/move", "ed", tt.body, &body)
			s.Equal(tt.status, status)
			s.Equal(string(tt.kind), body["kind"])
		})
	}
}

func (s *HandlersSuite) TestReadOnly() {
	s.app.SetReadOnly(true)
	var body map[string]string
	status := s.do("POST", "/api/pages/"+s.home.ID.String()+"/children", "ed", InsertRequest{Title: "x"}, &body)
	s.Equal(http.StatusServiceUnavailable, status)

	s.app.SetReadOnly(false)
	s.insert(s.home.ID, "x")
}

func (s *HandlersSuite) TestCheck() {
	s.insert(s.home.ID, "Blog")
	s.NoError(s.app.Check(context.Background(), &CheckCommand{}))
}
