package llms

import "errors"

var (
	ErrNotConfigured    = errors.New("llm provider not configured")
	ErrAPIKeyNotSet     = errors.New("API key not set")
	ErrAPIRequestFailed = errors.New("API request failed")
	ErrEmptyCompletion  = errors.New("empty completion")
	ErrUnknownProvider  = errors.New("unknown llm provider")
)
