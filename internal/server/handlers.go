package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/search"
	"github.com/hyperjump/kensaku/internal/solr"
)

const (
	maxBodyBytes = 1 << 20
	maxBatchSize = 50
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var input models.SearchInput
	if !s.decodeBody(w, r, &input) {
		return
	}
	req, err := input.Request(s.engine.Snapshot().RequestDefaults()...)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.search(w, r, req)
}

// handleSearchQuery serves GET /api/v1/search?q=...&rows=&start=&sort=&grouping=&highlight=.
func (s *Server) handleSearchQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := []models.RequestOption{
		models.WithPhrase(q.Get("q")),
		models.WithSort(q.Get("sort")),
		models.WithFieldGroup(q.Get("field_group")),
	}
	for _, name := range []string{"start", "rows"} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s %q", name, v))
			return
		}
		if name == "start" {
			opts = append(opts, models.WithStart(n))
		} else {
			opts = append(opts, models.WithRows(n))
		}
	}
	if isTrue(q.Get("grouping")) {
		opts = append(opts, models.WithGrouping())
	}
	if isTrue(q.Get("highlight")) {
		opts = append(opts, models.WithHighlight("", nil, 0))
	}
	req, err := s.engine.NewRequest(opts...)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.search(w, r, req)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request, req *models.SearchRequest) {
	s.logger.Debug("search request", zap.String("q", req.Query.Text), zap.Int("rows", req.Rows), zap.Bool("grouping", req.Grouping))
	response, err := s.engine.Search(r.Context(), req)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleSearchBatch(w http.ResponseWriter, r *http.Request) {
	var inputs []models.SearchInput
	if !s.decodeBody(w, r, &inputs) {
		return
	}
	if len(inputs) == 0 || len(inputs) > maxBatchSize {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("batch must hold 1 to %d requests", maxBatchSize))
		return
	}
	defaults := s.engine.Snapshot().RequestDefaults()
	reqs := make([]*models.SearchRequest, len(inputs))
	for i := range inputs {
		req, err := inputs[i].Request(defaults...)
		if err != nil {
			s.respondFailure(w, fmt.Errorf("batch request %d: %w", i, err))
			return
		}
		reqs[i] = req
	}
	responses, err := s.engine.SearchBatch(r.Context(), reqs)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"responses": responses})
}

func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	var input models.SearchInput
	if !s.decodeBody(w, r, &input) {
		return
	}
	req, err := input.Request(s.engine.Snapshot().RequestDefaults()...)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	params, err := s.engine.Compile(req)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"params": params.List()})
}

func (s *Server) handleGetObject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, err := s.engine.Object(r.Context(), id)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, item)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Snapshot()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"field_groups": snap.Resolver.Groups(),
		"sorts":        snap.Catalog.SortIDs(),
	})
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// statusFor maps engine errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, search.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, search.ErrNotUnique):
		return http.StatusConflict
	case errors.Is(err, solr.ErrBackend):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondFailure(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

func isTrue(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
