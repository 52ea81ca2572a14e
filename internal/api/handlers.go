package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rogue-hub/marketplace-indexer/internal/store"
)

// writeJSON marshals v as the response body and sets the JSON content type.
// Handlers are thin by design: parse params, call one Store method, marshal.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("write response", "error", err)
	}
}

// writeError maps a Store error to its HTTP status: ErrNotFound becomes
// 404, anything else is logged in detail and returned as an opaque 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	s.log.Error("request failed", "error", err)
	s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListIndexers(w http.ResponseWriter, r *http.Request) {
	cursors, err := s.store.ListCursors(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cursors)
}

// handleListExchanges applies buyer_id > seller_id > asset_id priority: if
// more than one filter query param is present, only the first populated one
// in that order is passed through to the store.
func (s *Server) handleListExchanges(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var filter store.ExchangeFilter
	switch {
	case q.Get("buyer_id") != "":
		id, err := strconv.ParseInt(q.Get("buyer_id"), 10, 64)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid buyer_id"})
			return
		}
		filter.BuyerID = id
	case q.Get("seller_id") != "":
		id, err := strconv.ParseInt(q.Get("seller_id"), 10, 64)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid seller_id"})
			return
		}
		filter.SellerID = id
	case q.Get("asset_id") != "":
		id, err := strconv.ParseInt(q.Get("asset_id"), 10, 64)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid asset_id"})
			return
		}
		filter.AssetID = id
	}

	exchanges, err := s.store.ListExchanges(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, exchanges)
}

func (s *Server) handleListPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := s.store.ListPlayers(r.Context(), r.URL.Query().Get("wallet_address"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, players)
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.store.ListTokens(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tokens)
}
