package interfaces

import (
	"context"
	"time"

	"github.com/code-sleuth/caselaw-go/internal/manager/models"
)

// FetchOptions override fetcher defaults for a single call.
type FetchOptions struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher retrieves documents politely.
type Fetcher interface {
	// Fetch downloads url honouring robots policy, rate limits and retries
	Fetch(ctx context.Context, url string, opts *FetchOptions) (*models.FetchResult, error)
}

// Extractor turns a fetched document into plain text.
type Extractor interface {
	// Extract returns the title and normalised text of the document
	Extract(content []byte, contentType, url string) (*models.Extracted, error)
}

// EmitFunc receives candidates from a discovery strategy. A non-nil return
// stops the strategy.
type EmitFunc func(candidate *models.Candidate) error

// Discoverer enumerates decision candidates for a source.
type Discoverer interface {
	// Discover walks the source and emits candidates until exhausted
	Discover(
		ctx context.Context,
		fetcher Fetcher,
		source *models.Source,
		args *models.IngestArgs,
		emit EmitFunc,
	) error

	// GetStrategyName returns the name sources use to select this strategy
	GetStrategyName() string
}

// Chunker splits decision text into retrieval passages.
type Chunker interface {
	// ChunkDocument splits text into ordered chunks owned by decisionID
	ChunkDocument(decisionID, text string) ([]*models.Chunk, error)

	// GetChunkingStrategy returns the strategy name used by this chunker
	GetChunkingStrategy() string
}

// Embedder defines the interface for generating vector embeddings.
type Embedder interface {
	// GenerateEmbeddings embeds every input in one provider call, preserving order
	GenerateEmbeddings(ctx context.Context, contents []string) ([][]float32, error)

	// GetModelName returns the name of the embedding model
	GetModelName() string

	// GetDimension returns the dimension of the embedding vectors
	GetDimension() int

	// GetMaxTokens returns the maximum number of tokens this embedder can handle
	GetMaxTokens() int
}

// LLM generates text from a system and user prompt.
type LLM interface {
	Generate(ctx context.Context, system, user string) (string, error)
	GetModelName() string
}

// QueryCache stores query embeddings keyed by model and query text.
type QueryCache interface {
	Get(ctx context.Context, model, query string) ([]float32, bool, error)
	Set(ctx context.Context, model, query string, vector []float32) error
}

// DecisionStore persists decisions.
type DecisionStore interface {
	// GetContentHash returns the stored hash for id, found=false when absent
	GetContentHash(ctx context.Context, id string) (hash string, found bool, err error)
	InsertDecision(ctx context.Context, decision *models.Decision) error
	UpdateDecision(ctx context.Context, decision *models.Decision) error
	GetDecision(ctx context.Context, id string) (*models.Decision, error)
	GetDecisions(ctx context.Context, ids []string) (map[string]*models.Decision, error)
	ListDecisions(ctx context.Context, filters *models.SearchFilters, limit, offset int) ([]*models.Decision, error)
}

// ChunkStore persists chunk sets.
type ChunkStore interface {
	// ReplaceChunks swaps the chunk set of a decision atomically
	ReplaceChunks(ctx context.Context, decisionID string, chunks []*models.Chunk) error
	GetChunks(ctx context.Context, decisionID string) ([]*models.Chunk, error)
	GetChunk(ctx context.Context, id string) (*models.Chunk, error)
	// DecisionIDsNeedingIndex lists decisions with no chunks, unembedded
	// chunks or chunks of an older text
	DecisionIDsNeedingIndex(ctx context.Context, limit int) ([]string, error)
}

// RunStore persists ingestion run records.
type RunStore interface {
	CreateRun(ctx context.Context, run *models.IngestionRun) error
	// FinishRun moves a running record to its terminal state exactly once
	FinishRun(ctx context.Context, run *models.IngestionRun) error
	ListRuns(ctx context.Context, sourceID string, limit int) ([]*models.IngestionRun, error)
}

// SearchStore serves the lexical and vector halves of retrieval.
type SearchStore interface {
	// SearchLexical ranks decisions by weighted full-text relevance
	SearchLexical(ctx context.Context, query string, filters *models.SearchFilters, limit int) ([]*models.LexicalMatch, error)
	// SearchVector returns the best-matching chunk per decision, most similar first
	SearchVector(ctx context.Context, vector []float32, filters *models.SearchFilters, limit int) ([]*models.VectorMatch, error)
	// SearchByDate lists decisions matching query (or all when empty) ordered by date, nulls last
	SearchByDate(
		ctx context.Context,
		query string,
		filters *models.SearchFilters,
		ascending bool,
		limit, offset int,
	) ([]*models.Decision, int, error)
}

// Store is the full persistence surface.
type Store interface {
	DecisionStore
	ChunkStore
	RunStore
	SearchStore
	Close() error
}
