package embedders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/code-sleuth/caselaw-go/pkg/retry"

	"github.com/rs/zerolog"
)

var timeout = 30 * time.Second

// embeddingRequest is the body of an OpenAI-compatible /v1/embeddings call.
// Together AI accepts the same shape and ignores the optional fields.
type embeddingRequest struct {
	Input          []string `json:"input"`
	Model          string   `json:"model"`
	EncodingFormat string   `json:"encoding_format,omitempty"`
	Dimensions     int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
		Object    string    `json:"object"`
	} `json:"data"`
	Model  string `json:"model"`
	Object string `json:"object"`
	Usage  struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

type (
	OpenAIEmbeddingRequest      = embeddingRequest
	OpenAIEmbeddingResponse     = embeddingResponse
	TogetherAIEmbeddingRequest  = embeddingRequest
	TogetherAIEmbeddingResponse = embeddingResponse
)

// compatClient posts batches to an OpenAI-compatible embeddings endpoint.
// Rate limits and server errors are retried; other statuses are not.
type compatClient struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
	policy     retry.Policy
	logger     zerolog.Logger
}

func newCompatClient(apiURL, apiKey string, httpClient *http.Client, logger zerolog.Logger) *compatClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &compatClient{
		apiURL:     apiURL,
		apiKey:     apiKey,
		httpClient: httpClient,
		policy:     retry.DefaultPolicy(),
		logger:     logger,
	}
}

// embed returns one vector per input, ordered like the inputs, and the token
// usage the provider reported.
func (c *compatClient) embed(ctx context.Context, request *embeddingRequest) ([][]float32, int, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, 0, err
	}

	var response embeddingResponse
	_, err = retry.Do(ctx, c.policy, func(ctx context.Context) error {
		response = embeddingResponse{}
		return c.post(ctx, body, &response)
	}, func(attempt int, err error, wait time.Duration) {
		c.logger.Warn().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("Embedding request failed, retrying")
	})
	if err != nil {
		return nil, 0, err
	}

	vectors, err := orderVectors(&response, len(request.Input))
	if err != nil {
		return nil, 0, err
	}
	return vectors, response.Usage.TotalTokens, nil
}

func (c *compatClient) post(ctx context.Context, body []byte, out *embeddingResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return retry.Permanent(ctx.Err())
		}
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Error().Err(err).Msg("Failed to close response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Error().Int("status_code", resp.StatusCode).Str("body", string(snippet)).Msg("API request failed")
		statusErr := fmt.Errorf("%w: status %d", ErrAPIRequestFailed, resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return statusErr
		}
		return retry.Permanent(statusErr)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return retry.Permanent(fmt.Errorf("decode embeddings response: %w", err))
	}
	return nil
}

// orderVectors places every returned vector at its input index. Missing,
// duplicate or out of range indexes fail the whole batch.
func orderVectors(response *embeddingResponse, n int) ([][]float32, error) {
	if len(response.Data) == 0 {
		return nil, ErrNoEmbeddingData
	}
	if len(response.Data) != n {
		return nil, fmt.Errorf("%w: %d for %d inputs", ErrEmbeddingCount, len(response.Data), n)
	}
	vectors := make([][]float32, n)
	for _, d := range response.Data {
		if d.Index < 0 || d.Index >= n || vectors[d.Index] != nil {
			return nil, fmt.Errorf("%w: bad index %d", ErrEmbeddingCount, d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// cleanInputs flattens newlines and rejects empty batches or blank inputs.
func cleanInputs(contents []string) ([]string, error) {
	if len(contents) == 0 {
		return nil, ErrContentEmpty
	}
	inputs := make([]string, len(contents))
	for i, c := range contents {
		clean := strings.TrimSpace(strings.ReplaceAll(c, "\n", " "))
		if clean == "" {
			return nil, ErrContentEmpty
		}
		inputs[i] = clean
	}
	return inputs, nil
}
