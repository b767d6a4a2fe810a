package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/code-sleuth/caselaw-go/pkg/util"

	"github.com/rs/zerolog"
)

var timeout = 120 * time.Second

// OpenAIChat generates completions through an OpenAI-compatible chat API.
type OpenAIChat struct {
	apiKey      string
	model       string
	temperature float64
	httpClient  *http.Client
	apiURL      string
	logger      zerolog.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Index        int         `json:"index"`
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// NewOpenAIChat reads OPENAI_API_KEY and OPENAI_BASE_URL.
func NewOpenAIChat(model string) (*OpenAIChat, error) {
	base := strings.TrimRight(os.Getenv("OPENAI_BASE_URL"), "/")
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	return NewOpenAIChatWithClient(model, nil, base+"/chat/completions")
}

// NewOpenAIChatWithClient creates a chat client against an explicit endpoint.
func NewOpenAIChatWithClient(model string, httpClient *http.Client, apiURL string) (*OpenAIChat, error) {
	logger := util.NewLogger(util.LevelFromEnv())
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		logger.Error().Msg("OPENAI_API_KEY env variable not set")
		return nil, ErrAPIKeyNotSet
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &OpenAIChat{
		apiKey:      apiKey,
		model:       model,
		temperature: 0.1,
		httpClient:  httpClient,
		apiURL:      apiURL,
		logger:      logger,
	}, nil
}

// Generate sends one system and one user message and returns the reply text.
func (o *OpenAIChat) Generate(ctx context.Context, system, user string) (string, error) {
	request := chatCompletionRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: o.temperature,
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.apiURL, bytes.NewBuffer(requestBody))
	if err != nil {
		o.logger.Err(err).Msg("failed to create request")
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", o.apiKey))

	resp, err := o.httpClient.Do(req)
	if err != nil {
		o.logger.Err(err).Msg("failed to make request")
		return "", err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			o.logger.Error().Err(err).Msg("Failed to close response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		o.logger.Error().Int("status_code", resp.StatusCode).Str("body", string(body)).Msg("API request failed")
		return "", fmt.Errorf("%w: status %d", ErrAPIRequestFailed, resp.StatusCode)
	}

	var response chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		o.logger.Err(err).Msg("failed to decode response")
		return "", err
	}
	if len(response.Choices) == 0 || strings.TrimSpace(response.Choices[0].Message.Content) == "" {
		return "", ErrEmptyCompletion
	}

	o.logger.Debug().
		Str("model", o.model).
		Int("prompt_tokens", response.Usage.PromptTokens).
		Int("completion_tokens", response.Usage.CompletionTokens).
		Msg("Generated completion")
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}

// GetModelName returns the chat model.
func (o *OpenAIChat) GetModelName() string {
	return o.model
}
