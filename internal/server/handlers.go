package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/busantrip/map-explorer/internal/explorer"
	"github.com/busantrip/map-explorer/internal/model"
	"github.com/busantrip/map-explorer/internal/surface"
)

type pointRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type selectRequest struct {
	ItemID int64 `json:"item_id"`
}

type trendingResponse struct {
	Regions []trendingRegion `json:"regions"`
}

type trendingRegion struct {
	Region string  `json:"region"`
	Score  float64 `json:"score"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := explorer.NewSession(r.Context(), explorer.SessionConfig{
		Manager:  s.manager,
		Features: s.boundaries.Features(r.Context()),
		Resolver: s.resolver,
		Fetcher:  s.fetcher,
		Trending: s.trending,
		Logger:   s.logger,
	})
	if err != nil {
		if errors.Is(err, surface.ErrUnavailable) {
			http.Error(w, "map provider unavailable", http.StatusServiceUnavailable)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := s.registry.add(sess); err != nil {
		sess.Close()
		http.Error(w, err.Error(), http.StatusTooManyRequests)
		return
	}

	s.logger.Info("session created", "session_id", sess.ID, "open", s.registry.count())

	writeJSON(w, http.StatusCreated, sess.View())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.registry.get(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	s.handlePointEvent(w, r, func(sess *explorer.Session, pt model.LatLng) {
		sess.Click(pt)
	})
}

func (s *Server) handleHover(w http.ResponseWriter, r *http.Request) {
	s.handlePointEvent(w, r, func(sess *explorer.Session, pt model.LatLng) {
		sess.Hover(pt)
	})
}

func (s *Server) handlePointEvent(w http.ResponseWriter, r *http.Request, apply func(*explorer.Session, model.LatLng)) {
	sess, ok := s.registry.get(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	var req pointRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validatePoint(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	apply(sess, model.LatLng{Lat: req.Lat, Lng: req.Lng})
	writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.registry.get(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	var req selectRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !sess.SelectItem(req.ItemID) {
		http.Error(w, "item not in the current list", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.registry.get(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	sess.Back()
	writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.registry.remove(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	sess.Close()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := parseLimit(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		limit = n
	}
	top := s.trending.Top(limit)
	out := trendingResponse{Regions: make([]trendingRegion, 0, len(top))}
	for _, rs := range top {
		out.Regions = append(out.Regions, trendingRegion{Region: rs.Region, Score: rs.Score})
	}
	writeJSON(w, http.StatusOK, out)
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}

func validatePoint(req pointRequest) error {
	if req.Lat < -90 || req.Lat > 90 {
		return errors.New("lat must be in [-90,90]")
	}
	if req.Lng < -180 || req.Lng > 180 {
		return errors.New("lng must be in [-180,180]")
	}
	return nil
}

func parseLimit(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	if n > 100 {
		n = 100
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
