package repository

import (
	"context"
	"testing"
	"time"

	"github.com/code-sleuth/caselaw-go/internal/manager/models"
	"github.com/code-sleuth/caselaw-go/internal/manager/testutil"
	"github.com/code-sleuth/caselaw-go/pkg/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	store := NewPostgresStore(testutil.SetupPostgresDB(t))
	ctx := context.Background()

	date := util.DatePtr(time.Date(2023, 5, 17, 0, 0, 0, 0, time.UTC))
	a := testDecision("a", "Mietrecht: Kündigung", "Die Vermieterin kündigte das Mietverhältnis.", date)
	b := testDecision("b", "Strafrecht", "Nebenbei wird das Mietrecht erwähnt.", nil)
	require.NoError(t, store.InsertDecision(ctx, a))
	require.NoError(t, store.InsertDecision(ctx, b))
	assert.ErrorIs(t, store.InsertDecision(ctx, a), ErrConflict)

	got, err := store.GetDecision(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, *date, *got.DecisionDate)
	assert.Equal(t, "crawler", got.Meta["discovery"])

	require.NoError(t, store.ReplaceChunks(ctx, "a", []*models.Chunk{
		{ID: "a0", DecisionID: "a", Index: 0, Text: "a0", Embedding: []float32{1, 0, 0}},
		{ID: "a1", DecisionID: "a", Index: 1, Text: "a1", Embedding: []float32{0.6, 0.8, 0}},
	}))
	require.NoError(t, store.ReplaceChunks(ctx, "b", []*models.Chunk{
		{ID: "b0", DecisionID: "b", Index: 0, Text: "b0", Embedding: []float32{0, 1, 0}},
	}))

	chunks, err := store.GetChunks(ctx, "a")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, []float32{0.6, 0.8, 0}, chunks[1].Embedding)

	lexical, err := store.SearchLexical(ctx, "mietrecht", nil, 10)
	require.NoError(t, err)
	require.Len(t, lexical, 2)
	assert.Equal(t, "a", lexical[0].DecisionID)

	vector, err := store.SearchVector(ctx, []float32{0, 1, 0}, nil, 10)
	require.NoError(t, err)
	require.Len(t, vector, 2)
	assert.Equal(t, "b", vector[0].DecisionID)
	assert.Equal(t, "a1", vector[1].ChunkID)

	byDate, total, err := store.SearchByDate(ctx, "", nil, true, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "a", byDate[0].ID)
}
