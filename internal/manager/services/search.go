package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/code-sleuth/caselaw-go/internal/manager/interfaces"
	"github.com/code-sleuth/caselaw-go/internal/manager/models"
	"github.com/code-sleuth/caselaw-go/pkg/util"

	"github.com/rs/zerolog"
)

const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 500

	// rrfK damps the weight of top ranks in reciprocal rank fusion.
	rrfK = 60
)

var ErrInvalidSort = errors.New("invalid sort order")

// searchStore is the read side the search service needs.
type searchStore interface {
	interfaces.SearchStore
	GetDecision(ctx context.Context, id string) (*models.Decision, error)
	GetDecisions(ctx context.Context, ids []string) (map[string]*models.Decision, error)
}

// SearchService fuses lexical and vector retrieval into one ranking.
type SearchService struct {
	store    searchStore
	embedder interfaces.Embedder
	cache    interfaces.QueryCache
	logger   zerolog.Logger
}

// NewSearchService creates a search service. embedder and cache are
// optional; without an embedder relevance ranking is lexical only.
func NewSearchService(store searchStore, embedder interfaces.Embedder, cache interfaces.QueryCache) *SearchService {
	return &SearchService{
		store:    store,
		embedder: embedder,
		cache:    cache,
		logger:   util.NewLogger(util.LevelFromEnv()),
	}
}

// normalizeRequest applies defaults and bounds without touching the caller's copy.
func normalizeRequest(req *models.SearchRequest) (*models.SearchRequest, error) {
	r := *req
	r.Query = strings.TrimSpace(r.Query)
	switch {
	case r.Limit <= 0:
		r.Limit = DefaultSearchLimit
	case r.Limit > MaxSearchLimit:
		r.Limit = MaxSearchLimit
	}
	if r.Offset < 0 {
		r.Offset = 0
	}
	switch r.Sort {
	case "":
		r.Sort = models.SortRelevance
	case models.SortRelevance, models.SortDateDesc, models.SortDateAsc:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidSort, r.Sort)
	}
	return &r, nil
}

// Search returns one page of hits. An empty query browses by date.
func (s *SearchService) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResult, error) {
	r, err := normalizeRequest(req)
	if err != nil {
		return nil, err
	}

	if r.Query == "" || r.Sort != models.SortRelevance {
		return s.searchByDate(ctx, r)
	}
	return s.searchRelevance(ctx, r)
}

func (s *SearchService) searchByDate(ctx context.Context, r *models.SearchRequest) (*models.SearchResult, error) {
	decisions, total, err := s.store.SearchByDate(ctx, r.Query, &r.Filters, r.Sort == models.SortDateAsc, r.Limit, r.Offset)
	if err != nil {
		s.logger.Error().Err(err).Str("query", r.Query).Msg("Date search failed")
		return nil, err
	}

	terms := snippetTerms(r.Query)
	hits := make([]*models.SearchHit, 0, len(decisions))
	for _, d := range decisions {
		hit := newHit(d)
		hit.Snippet = densestWindow(d.ContentText, terms, snippetChars)
		hit.ChunkText = densestWindow(d.ContentText, terms, excerptChars)
		hits = append(hits, hit)
	}
	return &models.SearchResult{Hits: hits, Total: util.IntPtr(total)}, nil
}

// fused is one decision's position in the combined ranking.
type fused struct {
	decisionID string
	score      float64
	lexical    bool
	lexScore   float64
	chunk      *models.VectorMatch
}

func (s *SearchService) searchRelevance(ctx context.Context, r *models.SearchRequest) (*models.SearchResult, error) {
	window := r.Offset + r.Limit
	// one extra row tells whether a list was cut short
	pool := window + 1

	lexical, err := s.store.SearchLexical(ctx, r.Query, &r.Filters, pool)
	if err != nil {
		s.logger.Error().Err(err).Str("query", r.Query).Msg("Lexical search failed")
		return nil, err
	}

	var vector []*models.VectorMatch
	if vec := s.queryVector(ctx, r.Query); vec != nil {
		vector, err = s.store.SearchVector(ctx, vec, &r.Filters, pool)
		if err != nil {
			s.logger.Error().Err(err).Str("query", r.Query).Msg("Vector search failed")
			return nil, err
		}
	}

	ranked := fuse(lexical, vector)
	truncated := len(lexical) > window || len(vector) > window

	var total *int
	if !truncated {
		total = util.IntPtr(len(ranked))
	}

	if r.Offset >= len(ranked) {
		return &models.SearchResult{Hits: []*models.SearchHit{}, Total: total}, nil
	}
	end := r.Offset + r.Limit
	if end > len(ranked) {
		end = len(ranked)
	}
	page := ranked[r.Offset:end]

	ids := make([]string, len(page))
	for i, f := range page {
		ids[i] = f.decisionID
	}
	decisions, err := s.store.GetDecisions(ctx, ids)
	if err != nil {
		return nil, err
	}

	terms := snippetTerms(r.Query)
	hits := make([]*models.SearchHit, 0, len(page))
	for _, f := range page {
		d, ok := decisions[f.decisionID]
		if !ok {
			continue
		}
		hit := newHit(d)
		hit.Score = f.score
		if f.chunk != nil {
			hit.ChunkID = util.StringPtr(f.chunk.ChunkID)
			hit.ChunkText = f.chunk.ChunkText
			hit.Snippet = densestWindow(f.chunk.ChunkText, terms, snippetChars)
		} else {
			hit.ChunkText = densestWindow(d.ContentText, terms, excerptChars)
			hit.Snippet = densestWindow(d.ContentText, terms, snippetChars)
		}
		hits = append(hits, hit)
	}

	s.logger.Debug().
		Str("query", r.Query).
		Int("lexical", len(lexical)).
		Int("vector", len(vector)).
		Int("hits", len(hits)).
		Msg("Search finished")
	return &models.SearchResult{Hits: hits, Total: total}, nil
}

// fuse combines both rankings with reciprocal rank fusion. Ties go to
// decisions with a lexical match, then to the higher lexical score.
func fuse(lexical []*models.LexicalMatch, vector []*models.VectorMatch) []*fused {
	byID := make(map[string]*fused)
	get := func(id string) *fused {
		f, ok := byID[id]
		if !ok {
			f = &fused{decisionID: id}
			byID[id] = f
		}
		return f
	}

	for rank, m := range lexical {
		f := get(m.DecisionID)
		f.score += 1.0 / float64(rrfK+rank+1)
		f.lexical = true
		f.lexScore = m.Score
	}
	for rank, m := range vector {
		f := get(m.DecisionID)
		f.score += 1.0 / float64(rrfK+rank+1)
		f.chunk = m
	}

	out := make([]*fused, 0, len(byID))
	for _, f := range byID {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.lexical != b.lexical {
			return a.lexical
		}
		if a.lexScore != b.lexScore {
			return a.lexScore > b.lexScore
		}
		return a.decisionID < b.decisionID
	})
	return out
}

// queryVector embeds the query through the cache. Failures degrade to
// lexical-only ranking.
func (s *SearchService) queryVector(ctx context.Context, query string) []float32 {
	if s.embedder == nil {
		return nil
	}
	model := s.embedder.GetModelName()

	if s.cache != nil {
		vec, ok, err := s.cache.Get(ctx, model, query)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Query cache read failed")
		}
		if ok {
			return vec
		}
	}

	vectors, err := s.embedder.GenerateEmbeddings(ctx, []string{query})
	if err != nil || len(vectors) != 1 {
		s.logger.Warn().Err(err).Str("model", model).Msg("Query embedding failed, ranking lexically")
		return nil
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, model, query, vectors[0]); err != nil {
			s.logger.Warn().Err(err).Msg("Query cache write failed")
		}
	}
	return vectors[0]
}

func newHit(d *models.Decision) *models.SearchHit {
	return &models.SearchHit{
		DecisionID:   d.ID,
		SourceID:     d.SourceID,
		SourceName:   d.SourceName,
		Level:        d.Level,
		Canton:       d.Canton,
		Court:        d.Court,
		Docket:       d.Docket,
		DecisionDate: d.DecisionDate,
		Title:        d.Title,
		Language:     d.Language,
		URL:          d.URL,
		PDFURL:       d.PDFURL,
	}
}

// GetDecision returns a stored decision, repository.ErrNotFound when absent.
func (s *SearchService) GetDecision(ctx context.Context, id string) (*models.Decision, error) {
	return s.store.GetDecision(ctx, id)
}
