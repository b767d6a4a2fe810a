package llms

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/code-sleuth/caselaw-go/pkg/util"

	"github.com/ollama/ollama/api"
	"github.com/rs/zerolog"
)

// OllamaChat generates completions with a local Ollama model.
type OllamaChat struct {
	client *api.Client
	model  string
	logger zerolog.Logger
}

// NewOllamaChat connects to OLLAMA_HOST (default http://localhost:11434).
func NewOllamaChat(model string) (*OllamaChat, error) {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = "http://localhost:11434"
	}
	return NewOllamaChatWithClient(model, http.DefaultClient, host)
}

// NewOllamaChatWithClient creates a chat client against an explicit host.
func NewOllamaChatWithClient(model string, httpClient *http.Client, host string) (*OllamaChat, error) {
	if model == "" {
		model = "llama3.1"
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parse ollama host: %w", err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OllamaChat{
		client: api.NewClient(u, httpClient),
		model:  model,
		logger: util.NewLogger(util.LevelFromEnv()),
	}, nil
}

// Generate runs a non-streaming chat with a system and a user message.
func (o *OllamaChat) Generate(ctx context.Context, system, user string) (string, error) {
	stream := false
	req := &api.ChatRequest{
		Model: o.model,
		Messages: []api.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Stream:  &stream,
		Options: map[string]any{"temperature": 0.1},
	}

	var out strings.Builder
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		out.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		o.logger.Err(err).Str("model", o.model).Msg("ollama chat failed")
		return "", fmt.Errorf("%w: ollama chat: %w", ErrAPIRequestFailed, err)
	}

	text := strings.TrimSpace(out.String())
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

// GetModelName returns the chat model.
func (o *OllamaChat) GetModelName() string {
	return o.model
}
