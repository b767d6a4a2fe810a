package embedders

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/code-sleuth/caselaw-go/pkg/util"

	"github.com/rs/zerolog"
)

const openAIEmbeddingsURL = "https://api.openai.com/v1/embeddings"

// modelSpec is the native vector size and input window of a hosted model.
type modelSpec struct {
	dimension int
	maxTokens int
}

var openAIModels = map[string]modelSpec{
	"text-embedding-3-small": {dimension: 1536, maxTokens: 8191},
	"text-embedding-3-large": {dimension: 3072, maxTokens: 8191},
	"text-embedding-ada-002": {dimension: 1536, maxTokens: 8191},
}

// OpenAIEmbedder embeds chunk batches with the OpenAI embeddings API.
// text-embedding-3 models can be shortened to the store's vector size.
type OpenAIEmbedder struct {
	client    *compatClient
	model     string
	spec      modelSpec
	dimension int
	logger    zerolog.Logger
}

// NewOpenAIEmbedder reads OPENAI_API_KEY and targets the public API.
func NewOpenAIEmbedder(model string) (*OpenAIEmbedder, error) {
	return NewOpenAIEmbedderWithClient(model, nil, "")
}

// NewOpenAIEmbedderWithClient targets apiURL with httpClient; empty values
// fall back to the public endpoint and a client with the default timeout.
func NewOpenAIEmbedderWithClient(model string, httpClient *http.Client, apiURL string) (*OpenAIEmbedder, error) {
	logger := util.NewLogger(util.LevelFromEnv()).With().Str("provider", ProviderOpenAI).Logger()
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		logger.Error().Msg("OPENAI_API_KEY env variable not set")
		return nil, ErrAPIKeyNotSet
	}

	spec, ok := openAIModels[model]
	if !ok {
		logger.Error().Str("model", model).Msg("unsupported model")
		return nil, ErrUnsupportedModel
	}
	if apiURL == "" {
		apiURL = openAIEmbeddingsURL
	}

	return &OpenAIEmbedder{
		client:    newCompatClient(apiURL, apiKey, httpClient, logger),
		model:     model,
		spec:      spec,
		dimension: spec.dimension,
		logger:    logger,
	}, nil
}

// SetDimension asks the API for shorter vectors. Only text-embedding-3
// models support it, and never beyond their native size.
func (o *OpenAIEmbedder) SetDimension(dimension int) error {
	if dimension == o.spec.dimension {
		o.dimension = dimension
		return nil
	}
	if !strings.HasPrefix(o.model, "text-embedding-3") || dimension <= 0 || dimension > o.spec.dimension {
		return fmt.Errorf("%w: %s/%d", ErrInvalidDimension, o.model, dimension)
	}
	o.dimension = dimension
	return nil
}

// GenerateEmbeddings embeds all contents in one request.
func (o *OpenAIEmbedder) GenerateEmbeddings(ctx context.Context, contents []string) ([][]float32, error) {
	inputs, err := cleanInputs(contents)
	if err != nil {
		return nil, err
	}

	request := &embeddingRequest{Input: inputs, Model: o.model, EncodingFormat: "float"}
	if o.dimension != o.spec.dimension {
		request.Dimensions = o.dimension
	}

	vectors, tokens, err := o.client.embed(ctx, request)
	if err != nil {
		return nil, err
	}
	o.logger.Debug().Str("model", o.model).Int("inputs", len(inputs)).Int("tokens_used", tokens).Msg("Generated embeddings")
	return vectors, nil
}

func (o *OpenAIEmbedder) GetModelName() string {
	return o.model
}

func (o *OpenAIEmbedder) GetDimension() int {
	return o.dimension
}

func (o *OpenAIEmbedder) GetMaxTokens() int {
	return o.spec.maxTokens
}
