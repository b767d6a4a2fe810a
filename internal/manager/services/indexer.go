package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/code-sleuth/caselaw-go/internal/manager/fingerprint"
	"github.com/code-sleuth/caselaw-go/internal/manager/interfaces"
	"github.com/code-sleuth/caselaw-go/internal/manager/models"
	"github.com/code-sleuth/caselaw-go/pkg/util"

	"github.com/rs/zerolog"
)

const reindexBatchSize = 100

var (
	ErrEmbeddingDeferred = errors.New("embedding deferred")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Indexer chunks decisions, embeds the whole chunk set in one provider call
// and swaps it into the store.
type Indexer struct {
	chunker  interfaces.Chunker
	embedder interfaces.Embedder
	store    interfaces.Store
	logger   zerolog.Logger
}

// NewIndexer creates an indexer. A nil embedder stores chunks without vectors.
func NewIndexer(chunker interfaces.Chunker, embedder interfaces.Embedder, store interfaces.Store) *Indexer {
	return &Indexer{
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		logger:   util.NewLogger(util.LevelFromEnv()),
	}
}

// Index replaces the chunk set of a decision and returns the chunk count.
// When embedding fails the chunks are still stored, without vectors, and the
// returned error wraps ErrEmbeddingDeferred. Chunks carry the hash of text so
// a set left behind by a failed swap is found again by ReindexMissing.
func (i *Indexer) Index(ctx context.Context, decisionID, text string) (int, error) {
	chunks, err := i.chunker.ChunkDocument(decisionID, text)
	if err != nil {
		i.logger.Error().Err(err).Str("decision_id", decisionID).Msg("Chunking failed")
		return 0, err
	}
	hash := fingerprint.ContentHash(text)
	for _, c := range chunks {
		c.ContentHash = hash
	}

	embedErr := i.embed(ctx, decisionID, chunks)

	if err := i.store.ReplaceChunks(ctx, decisionID, chunks); err != nil {
		i.logger.Error().Err(err).Str("decision_id", decisionID).Msg("Failed to store chunks")
		return 0, err
	}

	i.logger.Debug().
		Str("decision_id", decisionID).
		Int("chunks", len(chunks)).
		Bool("embedded", i.embedder != nil && embedErr == nil).
		Msg("Indexed decision")
	return len(chunks), embedErr
}

func (i *Indexer) embed(ctx context.Context, decisionID string, chunks []*models.Chunk) error {
	if i.embedder == nil || len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for n, c := range chunks {
		texts[n] = c.Text
	}

	vectors, err := i.embedder.GenerateEmbeddings(ctx, texts)
	if err != nil {
		i.logger.Warn().Err(err).Str("decision_id", decisionID).Msg("Embedding failed, storing chunks without vectors")
		return fmt.Errorf("%w: %v", ErrEmbeddingDeferred, err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: %d vectors for %d chunks", ErrEmbeddingDeferred, len(vectors), len(chunks))
	}

	dim := i.embedder.GetDimension()
	for _, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: %w: got %d, want %d", ErrEmbeddingDeferred, ErrDimensionMismatch, len(v), dim)
		}
	}

	model := i.embedder.GetModelName()
	for n, c := range chunks {
		c.Embedding = vectors[n]
		c.EmbeddingModel = util.StringPtr(model)
	}
	return nil
}

// ReindexDecision rebuilds the chunks of one stored decision.
func (i *Indexer) ReindexDecision(ctx context.Context, decisionID string) (int, error) {
	decision, err := i.store.GetDecision(ctx, decisionID)
	if err != nil {
		return 0, err
	}
	return i.Index(ctx, decision.ID, decision.ContentText)
}

// ReindexStats summarises a reindex pass.
type ReindexStats struct {
	Decisions int
	Chunks    int
	Deferred  int
	Failed    int
}

// ReindexMissing rebuilds decisions whose chunks are missing, lack vectors or
// are stale, up to limit decisions (all when limit <= 0).
func (i *Indexer) ReindexMissing(ctx context.Context, limit int) (*ReindexStats, error) {
	if i.embedder == nil {
		return nil, fmt.Errorf("%w: no embedding provider configured", ErrEmbeddingDeferred)
	}

	stats := &ReindexStats{}
	failed := make(map[string]bool)
	for limit <= 0 || stats.Decisions+stats.Failed+stats.Deferred < limit {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		ids, err := i.store.DecisionIDsNeedingIndex(ctx, reindexBatchSize+len(failed))
		if err != nil {
			return stats, err
		}

		progressed := false
		for _, id := range ids {
			if failed[id] {
				continue
			}
			if limit > 0 && stats.Decisions+stats.Failed+stats.Deferred >= limit {
				break
			}
			progressed = true
			i.reindexInto(ctx, id, stats, failed)
		}
		if !progressed {
			break
		}
	}

	i.logger.Info().
		Int("decisions", stats.Decisions).
		Int("chunks", stats.Chunks).
		Int("deferred", stats.Deferred).
		Int("failed", stats.Failed).
		Msg("Reindex of missing embeddings finished")
	return stats, nil
}

// ReindexAll rebuilds every stored decision matching filters.
func (i *Indexer) ReindexAll(ctx context.Context, filters *models.SearchFilters) (*ReindexStats, error) {
	stats := &ReindexStats{}
	failed := make(map[string]bool)
	for offset := 0; ; offset += reindexBatchSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		batch, err := i.store.ListDecisions(ctx, filters, reindexBatchSize, offset)
		if err != nil {
			return stats, err
		}
		for _, d := range batch {
			i.reindexInto(ctx, d.ID, stats, failed)
		}
		if len(batch) < reindexBatchSize {
			break
		}
	}

	i.logger.Info().
		Int("decisions", stats.Decisions).
		Int("chunks", stats.Chunks).
		Int("failed", stats.Failed).
		Msg("Reindex finished")
	return stats, nil
}

func (i *Indexer) reindexInto(ctx context.Context, id string, stats *ReindexStats, failed map[string]bool) {
	n, err := i.ReindexDecision(ctx, id)
	switch {
	case err == nil:
		stats.Decisions++
		stats.Chunks += n
	case errors.Is(err, ErrEmbeddingDeferred):
		stats.Deferred++
		failed[id] = true
	default:
		i.logger.Warn().Err(err).Str("decision_id", id).Msg("Reindex failed")
		stats.Failed++
		failed[id] = true
	}
}
