// Package api serves the read-only HTTP surface over indexer, exchange,
// and dimension data: a thin layer of handlers backed directly by
// internal/store, with no caching of its own.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rogue-hub/marketplace-indexer/internal/store"
	"github.com/rogue-hub/marketplace-indexer/pkg/logging"
)

// Store is the subset of internal/store.Store the read API needs.
type Store interface {
	ListCursors(ctx context.Context) ([]store.Cursor, error)
	ListExchanges(ctx context.Context, filter store.ExchangeFilter) ([]store.Exchange, error)
	ListPlayers(ctx context.Context, walletAddress string) ([]store.Player, error)
	ListTokens(ctx context.Context) ([]store.Token, error)
	Ping(ctx context.Context) error
}

// Server holds the dependencies every handler needs: the store and a
// component logger.
type Server struct {
	store Store
	log   *logging.Logger
}

// New creates a Server backed by st.
func New(st Store) *Server {
	return &Server{
		store: st,
		log:   logging.GetDefault().Component("api"),
	}
}

// Routes builds the chi router for this server's handlers.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/indexers", s.handleListIndexers)
	r.Get("/exchanges", s.handleListExchanges)
	r.Get("/players", s.handleListPlayers)
	r.Get("/tokens", s.handleListTokens)

	return r
}
