// Package api serves search, answers and stored decisions over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/code-sleuth/caselaw-go/internal/manager/models"
	"github.com/code-sleuth/caselaw-go/internal/manager/repository"
	"github.com/code-sleuth/caselaw-go/internal/manager/services"
	"github.com/code-sleuth/caselaw-go/pkg/util"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const (
	dateLayout     = "2006-01-02"
	maxRequestBody = 1 << 20
	requestTimeout = 2 * time.Minute
)

var ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")

// Server exposes the retrieval and answer services.
type Server struct {
	search *services.SearchService
	answer *services.AnswerService
	logger zerolog.Logger
}

// NewServer creates a server. answer may be nil, in which case /answer
// reports the service as unavailable.
func NewServer(search *services.SearchService, answer *services.AnswerService) *Server {
	return &Server{
		search: search,
		answer: answer,
		logger: util.NewLogger(util.LevelFromEnv()),
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", s.handleHealth)
	r.Get("/search", s.handleSearchQuery)
	r.Post("/search", s.handleSearchBody)
	r.Post("/answer", s.handleAnswer)
	r.Get("/decisions/{id}", s.handleDecision)
	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

type answerRequest struct {
	Question string               `json:"question"`
	Filters  models.SearchFilters `json:"filters"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSearchQuery(w http.ResponseWriter, r *http.Request) {
	req, err := searchRequestFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.runSearch(w, r, req)
}

func (s *Server) handleSearchBody(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.runSearch(w, r, &req)
}

func (s *Server) runSearch(w http.ResponseWriter, r *http.Request, req *models.SearchRequest) {
	result, err := s.search.Search(r.Context(), req)
	switch {
	case errors.Is(err, services.ErrInvalidSort):
		writeError(w, http.StatusBadRequest, err)
		return
	case err != nil:
		s.logger.Error().Err(err).Str("query", req.Query).Msg("Search request failed")
		writeError(w, http.StatusInternalServerError, errors.New("search failed"))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	if s.answer == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("answer service not configured"))
		return
	}

	var req answerRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	answer, err := s.answer.Answer(r.Context(), req.Question, req.Filters)
	switch {
	case errors.Is(err, services.ErrEmptyQuestion):
		writeError(w, http.StatusBadRequest, err)
		return
	case err != nil:
		s.logger.Error().Err(err).Msg("Answer request failed")
		writeError(w, http.StatusInternalServerError, errors.New("answer failed"))
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	decision, err := s.search.GetDecision(r.Context(), id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, fmt.Errorf("decision %s not found", id))
		return
	case err != nil:
		s.logger.Error().Err(err).Str("decision_id", id).Msg("Decision lookup failed")
		writeError(w, http.StatusInternalServerError, errors.New("lookup failed"))
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

// searchRequestFromQuery maps ?q=&source=&level=&canton=&language=
// &date_from=&date_to=&sort=&limit=&offset= onto a search request.
func searchRequestFromQuery(q url.Values) (*models.SearchRequest, error) {
	req := &models.SearchRequest{
		Query: q.Get("q"),
		Sort:  q.Get("sort"),
		Filters: models.SearchFilters{
			Level:    q.Get("level"),
			Canton:   q.Get("canton"),
			Language: q.Get("language"),
		},
	}
	for _, raw := range q["source"] {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				req.Filters.SourceIDs = append(req.Filters.SourceIDs, id)
			}
		}
	}

	var err error
	if req.Limit, err = intParam(q, "limit"); err != nil {
		return nil, err
	}
	if req.Offset, err = intParam(q, "offset"); err != nil {
		return nil, err
	}
	if req.Filters.DateFrom, err = dateParam(q, "date_from"); err != nil {
		return nil, err
	}
	if req.Filters.DateTo, err = dateParam(q, "date_to"); err != nil {
		return nil, err
	}
	return req, nil
}

func intParam(q url.Values, key string) (int, error) {
	v := q.Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func dateParam(q url.Values, key string) (*time.Time, error) {
	v := q.Get(key)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, ErrInvalidDate)
	}
	return &t, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
