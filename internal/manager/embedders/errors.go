package embedders

import "errors"

var (
	ErrAPIKeyNotSet      = errors.New("API key not set")
	ErrUnsupportedModel  = errors.New("unsupported model")
	ErrContentEmpty      = errors.New("content is empty")
	ErrAPIRequestFailed  = errors.New("API request failed")
	ErrNoEmbeddingData   = errors.New("no embedding data in response")
	ErrEmbeddingCount    = errors.New("embedding count does not match input count")
	ErrInvalidDimension  = errors.New("dimension not supported by model")
	ErrUnknownProvider   = errors.New("unknown embeddings provider")
	ErrProviderNotConfig = errors.New("embeddings provider not configured")
)
