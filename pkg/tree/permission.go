package tree

import (
	"context"

	"github.com/surrealdb/pagetree/pkg/models"
)

// Request identifies who is acting.
type Request struct {
	Actor string
}

// Permissions decides whether the actor of a request may change a page. Only
// the yes/no answer is used.
type Permissions interface {
	CanPublish(ctx context.Context, req Request, page *models.Page) bool
	CanEdit(ctx context.Context, req Request, page *models.Page) bool
}

// AllowAll grants everything. It is the default policy of a Tree.
type AllowAll struct{}

func (AllowAll) CanPublish(context.Context, Request, *models.Page) bool { return true }
func (AllowAll) CanEdit(context.Context, Request, *models.Page) bool    { return true }

// AuthenticatedPolicy grants everything to any request with an actor and
// nothing to anonymous requests.
type AuthenticatedPolicy struct{}

func (AuthenticatedPolicy) CanPublish(_ context.Context, req Request, _ *models.Page) bool {
	return req.Actor != ""
}

func (AuthenticatedPolicy) CanEdit(_ context.Context, req Request, _ *models.Page) bool {
	return req.Actor != ""
}
