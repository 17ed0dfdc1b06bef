package pagetree

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/surrealdb/pagetree/pkg/models"
	"github.com/surrealdb/pagetree/pkg/store"
	"github.com/surrealdb/pagetree/pkg/tree"
)

// ActorHeader carries the identity a write request acts as.
const ActorHeader = "X-Actor"

// InsertRequest is the body of POST /api/pages/{id}/children.
type InsertRequest struct {
	Title      string         `json:"title"`
	Slug       string         `json:"slug,omitempty"`
	Type       string         `json:"type,omitempty"`
	Published  bool           `json:"published"`
	Properties models.JSONMap `json:"properties,omitempty"`
}

// MoveRequest is the body of POST /api/pages/{id}/move.
type MoveRequest struct {
	Target   models.PageID   `json:"target"`
	Position models.Position `json:"position"`
}

// MoveResponse reports the moved page and every slug the move rewrote,
// the moved page's own included.
type MoveResponse struct {
	Page    *models.Page      `json:"page"`
	Changes []tree.SlugChange `json:"changes"`
}

func requestFrom(r *http.Request) tree.Request {
	return tree.Request{Actor: r.Header.Get(ActorHeader)}
}

func pageID(r *http.Request) (models.PageID, bool) {
	id, err := models.ParsePageID(mux.Vars(r)["id"])
	return id, err == nil
}

// expandOptions reads ?ancestors=N, ?children=N and ?trash=true. N=0 asks
// for every ancestor; a missing parameter skips that expansion.
func expandOptions(r *http.Request) (tree.ExpandOptions, bool) {
	var opts tree.ExpandOptions
	q := r.URL.Query()
	if v := q.Get("ancestors"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, false
		}
		opts.Ancestors = &tree.AncestorOptions{Depth: n}
	}
	if v := q.Get("children"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, false
		}
		opts.Children = &tree.ChildOptions{Depth: n, IncludeTrash: q.Get("trash") == "true"}
	}
	return opts, true
}

func (a *App) handleGetPage(w http.ResponseWriter, r *http.Request) {
	id, ok := pageID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid page ID")
		return
	}
	opts, ok := expandOptions(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid expansion depth")
		return
	}

	page, err := a.tree.Get(r.Context(), id, opts)
	if err != nil {
		a.respondTreeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (a *App) handleGetPageBySlug(w http.ResponseWriter, r *http.Request) {
	opts, ok := expandOptions(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid expansion depth")
		return
	}

	page, err := a.tree.GetBySlug(r.Context(), mux.Vars(r)["slug"], opts)
	if err != nil {
		a.respondTreeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (a *App) handleInsertPage(w http.ResponseWriter, r *http.Request) {
	parentID, ok := pageID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid page ID")
		return
	}
	var body InsertRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if body.Title == "" {
		respondError(w, http.StatusBadRequest, "Title is required")
		return
	}

	page, err := a.tree.InsertByID(r.Context(), requestFrom(r), parentID, &models.Page{
		Title:      body.Title,
		Slug:       body.Slug,
		Type:       body.Type,
		Published:  body.Published,
		Properties: body.Properties,
	})
	if err != nil {
		a.respondTreeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, page)
}

func (a *App) handleMovePage(w http.ResponseWriter, r *http.Request) {
	movedID, ok := pageID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid page ID")
		return
	}
	var body MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	changes, err := a.tree.Move(r.Context(), requestFrom(r), movedID, body.Target, body.Position)
	if err != nil {
		a.respondTreeError(w, r, err)
		return
	}
	page, err := a.tree.Get(r.Context(), movedID, tree.ExpandOptions{})
	if err != nil {
		a.respondTreeError(w, r, err)
		return
	}
	if changes == nil {
		changes = []tree.SlugChange{}
	}
	respondJSON(w, http.StatusOK, MoveResponse{Page: page, Changes: changes})
}

// handleHealth reports liveness and the current read-only state.
//
//	GET /api/health
//	Response: {"status":"healthy","store":"memory","read_only":false,"time":1640995200}
func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":    "healthy",
		"store":     a.config.Store,
		"read_only": a.IsReadOnly(),
		"time":      time.Now().Unix(),
	}
	respondJSON(w, http.StatusOK, response)
}

// statusFor maps a tree error kind to its HTTP status.
func statusFor(kind tree.Kind) int {
	switch kind {
	case tree.KindNoSuchPage, tree.KindNoSuchParent:
		return http.StatusNotFound
	case tree.KindForbidden, tree.KindParentNotPublishable:
		return http.StatusForbidden
	case tree.KindInvalidPosition:
		return http.StatusBadRequest
	case tree.KindCannotMoveRoot, tree.KindCannotMoveParked, tree.KindCannotMoveTrashRoot,
		tree.KindTrashMustBeLast, tree.KindCannotMoveAfterParked, tree.KindCannotMoveIntoSelf:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (a *App) respondTreeError(w http.ResponseWriter, r *http.Request, err error) {
	if kind := tree.KindOf(err); kind != "" {
		respondJSON(w, statusFor(kind), map[string]string{"error": err.Error(), "kind": string(kind)})
		return
	}
	if errors.Is(err, store.ErrReadOnly) {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	var cascadeErr *tree.CascadeError
	if errors.As(err, &cascadeErr) {
		a.log.Error().Err(cascadeErr.Err).
			Str("old_path", cascadeErr.Request.OldPath).
			Str("new_path", cascadeErr.Request.NewPath).
			Int("rewritten", len(cascadeErr.Changes)).
			Msg("move committed but cascade failed")
	} else {
		a.log.Error().Err(err).Str("method", r.Method).Str("url", r.URL.Path).Msg("request failed")
	}
	respondError(w, http.StatusInternalServerError, err.Error())
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_, _ = w.Write(response)
	}
}

// respondError writes {"error": message} with the given status.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
