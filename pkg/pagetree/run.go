package pagetree

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

const shutdownTimeout = 5 * time.Second

// Routes returns the HTTP API.
//
//	GET  /api/health                  - Service health status
//	GET  /api/pages?slug=/a/b         - Page by slug
//	GET  /api/pages/{id}              - Page by ID, ?ancestors=N&children=N&trash=true
//	POST /api/pages/{id}/children     - Insert a page as the last child
//	POST /api/pages/{id}/move         - Move a page relative to a target
//	GET  /api/events                  - WebSocket feed of completed moves
//
// Write requests act as the identity in the X-Actor header.
func (a *App) Routes() http.Handler {
	router := mux.NewRouter()

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", a.handleHealth).Methods("GET")
	api.HandleFunc("/pages", a.handleGetPageBySlug).Methods("GET").Queries("slug", "{slug}")
	api.HandleFunc("/pages/{id}", a.handleGetPage).Methods("GET")
	api.HandleFunc("/pages/{id}/children", a.handleInsertPage).Methods("POST")
	api.HandleFunc("/pages/{id}/move", a.handleMovePage).Methods("POST")
	api.Handle("/events", a.hub).Methods("GET")

	return router
}

// Run enforces the parked pages and serves the HTTP API until ctx is
// cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context, _ *RunCommand) error {
	if !a.IsReadOnly() {
		if err := a.Park(ctx, &ParkCommand{}); err != nil {
			return err
		}
	}

	addr := fmt.Sprintf(":%s", a.config.ServerPort)
	server := &http.Server{
		Addr:              addr,
		Handler:           a.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.log.Info().Str("addr", addr).Bool("read_only", a.IsReadOnly()).Msg("starting pagetree server")

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutting down server")
		_ = a.hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}
}
