package embedders

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/code-sleuth/caselaw-go/pkg/util"

	"github.com/ollama/ollama/api"
	"github.com/rs/zerolog"
)

// knownOllamaDimensions lists native vector sizes of common local embedding models.
var knownOllamaDimensions = map[string]int{
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"bge-m3":                 1024,
	"snowflake-arctic-embed": 1024,
	"all-minilm":             384,
}

// OllamaEmbedder embeds text through a local Ollama server.
type OllamaEmbedder struct {
	client    *api.Client
	model     string
	dimension int
	logger    zerolog.Logger
}

// NewOllamaEmbedder connects to OLLAMA_HOST (default http://localhost:11434).
// A zero dimension is resolved from the model name.
func NewOllamaEmbedder(model string, dimension int) (*OllamaEmbedder, error) {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = "http://localhost:11434"
	}
	return NewOllamaEmbedderWithClient(model, dimension, http.DefaultClient, host)
}

// NewOllamaEmbedderWithClient creates an Ollama embedder against an explicit host.
func NewOllamaEmbedderWithClient(
	model string,
	dimension int,
	httpClient *http.Client,
	host string,
) (*OllamaEmbedder, error) {
	logger := util.NewLogger(util.LevelFromEnv())
	if model == "" {
		return nil, ErrUnsupportedModel
	}
	if dimension <= 0 {
		known, ok := knownOllamaDimensions[model]
		if !ok {
			logger.Error().Str("model", model).Msg("unknown dimension for ollama model")
			return nil, fmt.Errorf("%w: set EMBEDDINGS_DIM for %s", ErrInvalidDimension, model)
		}
		dimension = known
	}

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parse ollama host: %w", err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &OllamaEmbedder{
		client:    api.NewClient(u, httpClient),
		model:     model,
		dimension: dimension,
		logger:    logger,
	}, nil
}

// GenerateEmbeddings sends the whole batch in one embed call.
func (e *OllamaEmbedder) GenerateEmbeddings(ctx context.Context, contents []string) ([][]float32, error) {
	inputs, err := cleanInputs(contents)
	if err != nil {
		return nil, err
	}

	resp, err := e.client.Embed(ctx, &api.EmbedRequest{
		Model: e.model,
		Input: inputs,
	})
	if err != nil {
		e.logger.Err(err).Str("model", e.model).Msg("ollama embed failed")
		return nil, fmt.Errorf("%w: ollama embed: %w", ErrAPIRequestFailed, err)
	}

	if len(resp.Embeddings) == 0 {
		return nil, ErrNoEmbeddingData
	}
	if len(resp.Embeddings) != len(inputs) {
		return nil, ErrEmbeddingCount
	}

	e.logger.Debug().Str("model", e.model).Int("inputs", len(inputs)).Msg("Generated embeddings")
	return resp.Embeddings, nil
}

// GetModelName returns the name of the embedding model.
func (e *OllamaEmbedder) GetModelName() string {
	return e.model
}

// GetDimension returns the dimension of the embedding vectors.
func (e *OllamaEmbedder) GetDimension() int {
	return e.dimension
}

// GetMaxTokens returns the context size assumed for local models.
func (e *OllamaEmbedder) GetMaxTokens() int {
	return 8192
}
