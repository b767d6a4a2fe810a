package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/code-sleuth/caselaw-go/internal/manager/models"
	"github.com/code-sleuth/caselaw-go/pkg/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAnswerService(t *testing.T, f *searchFixture, withEmbedder bool, llm *fakeLLM) *AnswerService {
	t.Helper()
	var search *SearchService
	if withEmbedder {
		search = NewSearchService(f.store, f.embedder, nil)
	} else {
		search = NewSearchService(f.store, nil, nil)
	}
	var svc *AnswerService
	var err error
	if llm == nil {
		svc, err = NewAnswerService(search, nil, 0)
	} else {
		svc, err = NewAnswerService(search, llm, 0)
	}
	require.NoError(t, err)
	return svc
}

func TestAnswerService_Citations(t *testing.T) {
	f := seedSearchFixture(t)
	llm := &fakeLLM{response: "Die Erhöhung war gültig [2]. Siehe auch [1, 2] sowie [9]."}
	svc := newTestAnswerService(t, f, true, llm)

	answer, err := svc.Answer(context.Background(), "  Mietzinserhöhung ", models.SearchFilters{})
	require.NoError(t, err)

	assert.Equal(t, llm.response, answer.Answer)
	assert.Equal(t, 3, answer.HitsCount)
	require.Len(t, answer.Citations, 2)
	assert.Equal(t, "[2]", answer.Citations[0].Marker)
	assert.Equal(t, f.ids["steuer"], answer.Citations[0].DecisionID)
	assert.Equal(t, "[1]", answer.Citations[1].Marker)
	assert.Equal(t, f.ids["miete"], answer.Citations[1].DecisionID)
	assert.NotNil(t, answer.Citations[1].ChunkID)

	assert.Equal(t, systemPrompt, llm.system)
	assert.True(t, strings.HasPrefix(llm.user, "Question: Mietzinserhöhung\n"))
	assert.Contains(t, llm.user, "[1] Bundesgericht, 2024-03-12\n")
	assert.Contains(t, llm.user, "[3] Bundesgericht\n")
	assert.Contains(t, llm.user, "Mietzinserhöhung im Verfahren")
}

func TestAnswerService_Fallbacks(t *testing.T) {
	tests := []struct {
		name         string
		question     string
		withEmbedder bool
		llm          *fakeLLM
		expected     string
		hits         int
	}{
		{
			name:     "no hits",
			question: "Baubewilligung",
			llm:      &fakeLLM{response: "unused"},
			expected: noHitsAnswer,
		},
		{
			name:     "provider not configured",
			question: "Mietzinserhöhung",
			expected: notConfiguredAnswer,
			hits:     1,
		},
		{
			name:     "provider failure",
			question: "Mietzinserhöhung",
			llm:      &fakeLLM{err: errors.New("upstream 502")},
			expected: providerFailedAnswer,
			hits:     1,
		},
	}

	f := seedSearchFixture(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestAnswerService(t, f, tt.withEmbedder, tt.llm)
			answer, err := svc.Answer(context.Background(), tt.question, models.SearchFilters{})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, answer.Answer)
			assert.Equal(t, tt.hits, answer.HitsCount)
			assert.NotNil(t, answer.Citations)
			assert.Empty(t, answer.Citations)
		})
	}
}

func TestAnswerService_Errors(t *testing.T) {
	f := seedSearchFixture(t)
	svc := newTestAnswerService(t, f, false, &fakeLLM{})

	_, err := svc.Answer(context.Background(), "   ", models.SearchFilters{})
	assert.ErrorIs(t, err, ErrEmptyQuestion)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc = newTestAnswerService(t, f, false, &fakeLLM{err: context.Canceled})
	_, err = svc.Answer(ctx, "Mietzinserhöhung", models.SearchFilters{})
	assert.Error(t, err)
}

func TestCitationsFor(t *testing.T) {
	hits := []*models.SearchHit{
		{DecisionID: "a", SourceName: "BGer", URL: "https://a", ChunkID: util.StringPtr("a-0")},
		{DecisionID: "b", SourceName: "ZH", URL: "https://b"},
	}

	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{name: "first reference order", text: "x [2] y [1]", expected: []string{"b", "a"}},
		{name: "grouped markers", text: "x [1,2] y [2]", expected: []string{"a", "b"}},
		{name: "out of range ignored", text: "x [0] [3] [12]", expected: []string{}},
		{name: "no markers", text: "plain answer", expected: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			citations := citationsFor(tt.text, hits)
			ids := make([]string, len(citations))
			for i, c := range citations {
				ids[i] = c.DecisionID
			}
			assert.Equal(t, tt.expected, ids)
		})
	}
}

func TestTruncateTokens(t *testing.T) {
	svc, err := NewAnswerService(nil, nil, 0)
	require.NoError(t, err)

	short := "Das Bundesgericht weist die Beschwerde ab."
	assert.Equal(t, short, svc.truncateTokens(short, excerptTokens))

	long := strings.Repeat("Die Beschwerdeführerin rügt eine Verletzung des rechtlichen Gehörs. ", 200)
	cut := svc.truncateTokens(long, 50)
	assert.True(t, strings.HasSuffix(cut, ellipsis))
	assert.Less(t, utf8.RuneCountInString(cut), utf8.RuneCountInString(long))
}
