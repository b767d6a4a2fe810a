package embedders

import (
	"context"
	"net/http"
	"os"

	"github.com/code-sleuth/caselaw-go/pkg/util"

	"github.com/rs/zerolog"
)

const togetherEmbeddingsURL = "https://api.together.xyz/v1/embeddings"

// Together serves fixed-size models only; the multilingual ones suit
// decisions written in German, French and Italian.
var togetherModels = map[string]modelSpec{
	"togethercomputer/m2-bert-80M-8k-retrieval":  {dimension: 768, maxTokens: 8192},
	"togethercomputer/m2-bert-80M-32k-retrieval": {dimension: 768, maxTokens: 32768},
	"intfloat/multilingual-e5-large-instruct":    {dimension: 1024, maxTokens: 514},
	"BAAI/bge-base-en-v1.5":                      {dimension: 768, maxTokens: 512},
}

// TogetherAIEmbedder embeds chunk batches through Together AI's
// OpenAI-compatible endpoint.
type TogetherAIEmbedder struct {
	client *compatClient
	model  string
	spec   modelSpec
	logger zerolog.Logger
}

func NewTogetherAIEmbedder(model string) (*TogetherAIEmbedder, error) {
	return NewTogetherAIEmbedderWithClient(model, nil, "")
}

// NewTogetherAIEmbedderWithClient reads TOGETHER_API_KEY and targets apiURL.
func NewTogetherAIEmbedderWithClient(
	model string,
	httpClient *http.Client,
	apiURL string,
) (*TogetherAIEmbedder, error) {
	logger := util.NewLogger(util.LevelFromEnv()).With().Str("provider", ProviderTogether).Logger()
	apiKey := os.Getenv("TOGETHER_API_KEY")
	if apiKey == "" {
		logger.Error().Msg("TOGETHER_API_KEY env variable not set")
		return nil, ErrAPIKeyNotSet
	}

	spec, ok := togetherModels[model]
	if !ok {
		logger.Error().Str("model", model).Msg("unsupported model")
		return nil, ErrUnsupportedModel
	}
	if apiURL == "" {
		apiURL = togetherEmbeddingsURL
	}

	return &TogetherAIEmbedder{
		client: newCompatClient(apiURL, apiKey, httpClient, logger),
		model:  model,
		spec:   spec,
		logger: logger,
	}, nil
}

// GenerateEmbeddings embeds all contents in one request.
func (t *TogetherAIEmbedder) GenerateEmbeddings(ctx context.Context, contents []string) ([][]float32, error) {
	inputs, err := cleanInputs(contents)
	if err != nil {
		return nil, err
	}

	vectors, _, err := t.client.embed(ctx, &embeddingRequest{Input: inputs, Model: t.model})
	if err != nil {
		return nil, err
	}
	t.logger.Debug().Str("model", t.model).Int("inputs", len(inputs)).Msg("Generated embeddings")
	return vectors, nil
}

// GetModelName returns the name of the embedding model.
func (t *TogetherAIEmbedder) GetModelName() string {
	return t.model
}

// GetDimension returns the dimension of the embedding vectors.
func (t *TogetherAIEmbedder) GetDimension() int {
	return t.spec.dimension
}

// GetMaxTokens returns the maximum number of tokens this embedder can handle.
func (t *TogetherAIEmbedder) GetMaxTokens() int {
	return t.spec.maxTokens
}
