package llms

import "context"

// Disabled is the provider used when no LLM is configured.
type Disabled struct{}

func (Disabled) Generate(context.Context, string, string) (string, error) {
	return "", ErrNotConfigured
}

func (Disabled) GetModelName() string {
	return "none"
}
