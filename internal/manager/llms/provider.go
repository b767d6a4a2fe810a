package llms

import (
	"fmt"
	"strings"

	"github.com/code-sleuth/caselaw-go/internal/manager/interfaces"
)

// New returns the chat provider named by LLM_PROVIDER. An empty or "none"
// provider yields Disabled rather than an error.
func New(provider, model string) (interfaces.LLM, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "openai":
		return NewOpenAIChat(model)
	case "ollama":
		return NewOllamaChat(model)
	case "", "none":
		return Disabled{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
}
