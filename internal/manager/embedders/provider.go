package embedders

import (
	"fmt"
	"strings"

	"github.com/code-sleuth/caselaw-go/internal/manager/interfaces"
)

// Provider names accepted by New.
const (
	ProviderOpenAI   = "openai"
	ProviderTogether = "together"
	ProviderOllama   = "ollama"
	ProviderNone     = "none"
)

// New builds the embedder for a provider. dimension is the vector size the
// store was migrated with; providers that cannot produce it are rejected.
func New(provider, model string, dimension int) (interfaces.Embedder, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case ProviderOpenAI:
		if model == "" {
			model = "text-embedding-3-small"
		}
		e, err := NewOpenAIEmbedder(model)
		if err != nil {
			return nil, err
		}
		if dimension > 0 {
			if err := e.SetDimension(dimension); err != nil {
				return nil, err
			}
		}
		return e, nil
	case ProviderTogether:
		if model == "" {
			model = "togethercomputer/m2-bert-80M-8k-retrieval"
		}
		e, err := NewTogetherAIEmbedder(model)
		if err != nil {
			return nil, err
		}
		if dimension > 0 && e.GetDimension() != dimension {
			return nil, fmt.Errorf("%w: %s produces %d", ErrInvalidDimension, model, e.GetDimension())
		}
		return e, nil
	case ProviderOllama:
		if model == "" {
			model = "nomic-embed-text"
		}
		return NewOllamaEmbedder(model, dimension)
	case ProviderNone, "":
		return nil, ErrProviderNotConfig
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
}
