package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/code-sleuth/caselaw-go/internal/manager/interfaces"
	"github.com/code-sleuth/caselaw-go/internal/manager/llms"
	"github.com/code-sleuth/caselaw-go/internal/manager/models"
	"github.com/code-sleuth/caselaw-go/pkg/util"

	"github.com/rs/zerolog"
	"github.com/tiktoken-go/tokenizer"
)

const (
	DefaultAnswerHits    = 12
	excerptTokens        = 600
	noHitsAnswer         = "No indexed decisions match your query yet. Try other terms or widen the filters."
	notConfiguredAnswer  = "LLM is not configured. Set LLM_PROVIDER and API keys."
	providerFailedAnswer = "The language model request failed. Please try again later."
)

const systemPrompt = `You are a legal research assistant for Swiss court decisions.
Answer the question using only the numbered excerpts provided.
Cite every statement with the marker of its excerpt, for example [1] or [2].
Do not invent decisions, docket numbers, dates or quotations.
If the excerpts do not answer the question, say so.
Answer in the language of the question.`

var (
	ErrEmptyQuestion = errors.New("question cannot be empty")

	markerRe = regexp.MustCompile(`\[(\d+(?:\s*,\s*\d+)*)\]`)
)

// AnswerService turns retrieval hits into a cited answer.
type AnswerService struct {
	search   *SearchService
	llm      interfaces.LLM
	maxHits  int
	encoding tokenizer.Codec
	logger   zerolog.Logger
}

// NewAnswerService creates an answer service using at most maxHits hits.
func NewAnswerService(search *SearchService, llm interfaces.LLM, maxHits int) (*AnswerService, error) {
	if maxHits <= 0 {
		maxHits = DefaultAnswerHits
	}
	if llm == nil {
		llm = llms.Disabled{}
	}
	encoding, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, err
	}
	return &AnswerService{
		search:   search,
		llm:      llm,
		maxHits:  maxHits,
		encoding: encoding,
		logger:   util.NewLogger(util.LevelFromEnv()),
	}, nil
}

// Answer retrieves the best hits for question and asks the language model
// to answer from them. Provider problems become user-visible answers, not
// errors.
func (a *AnswerService) Answer(ctx context.Context, question string, filters models.SearchFilters) (*models.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	result, err := a.search.Search(ctx, &models.SearchRequest{
		Query:   question,
		Filters: filters,
		Sort:    models.SortRelevance,
		Limit:   a.maxHits,
	})
	if err != nil {
		return nil, err
	}
	hits := result.Hits
	if len(hits) == 0 {
		return &models.Answer{Answer: noHitsAnswer, Citations: []*models.Citation{}}, nil
	}

	text, err := a.llm.Generate(ctx, systemPrompt, a.buildPrompt(question, hits))
	switch {
	case errors.Is(err, llms.ErrNotConfigured):
		return &models.Answer{Answer: notConfiguredAnswer, Citations: []*models.Citation{}, HitsCount: len(hits)}, nil
	case err != nil:
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.logger.Error().Err(err).Str("model", a.llm.GetModelName()).Msg("Answer generation failed")
		return &models.Answer{Answer: providerFailedAnswer, Citations: []*models.Citation{}, HitsCount: len(hits)}, nil
	}

	return &models.Answer{
		Answer:    text,
		Citations: citationsFor(text, hits),
		HitsCount: len(hits),
	}, nil
}

func (a *AnswerService) buildPrompt(question string, hits []*models.SearchHit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nExcerpts:\n", question)
	for i, hit := range hits {
		fmt.Fprintf(&b, "\n[%d] %s", i+1, hit.SourceName)
		if hit.Docket != nil {
			fmt.Fprintf(&b, ", %s", *hit.Docket)
		}
		if hit.DecisionDate != nil {
			fmt.Fprintf(&b, ", %s", hit.DecisionDate.Format("2006-01-02"))
		}
		fmt.Fprintf(&b, "\n%s\n", a.truncateTokens(hit.ChunkText, excerptTokens))
	}
	return b.String()
}

// truncateTokens cuts text to at most limit tokens.
func (a *AnswerService) truncateTokens(text string, limit int) string {
	ids, _, err := a.encoding.Encode(text)
	if err != nil || len(ids) <= limit {
		return text
	}
	out, err := a.encoding.Decode(ids[:limit])
	if err != nil {
		return text
	}
	return strings.TrimSpace(out) + ellipsis
}

// citationsFor maps the markers referenced in text back to hits, in order of
// first reference. Markers outside the hit list are ignored.
func citationsFor(text string, hits []*models.SearchHit) []*models.Citation {
	citations := []*models.Citation{}
	seen := make(map[int]bool)
	for _, m := range markerRe.FindAllStringSubmatch(text, -1) {
		for _, part := range strings.Split(m[1], ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || n < 1 || n > len(hits) || seen[n] {
				continue
			}
			seen[n] = true
			hit := hits[n-1]
			citations = append(citations, &models.Citation{
				Marker:       "[" + strconv.Itoa(n) + "]",
				DecisionID:   hit.DecisionID,
				ChunkID:      hit.ChunkID,
				SourceName:   hit.SourceName,
				Docket:       hit.Docket,
				DecisionDate: hit.DecisionDate,
				URL:          hit.URL,
				PDFURL:       hit.PDFURL,
			})
		}
	}
	return citations
}
