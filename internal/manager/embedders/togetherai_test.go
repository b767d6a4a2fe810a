package embedders

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/code-sleuth/caselaw-go/internal/manager/testutil"
)

func TestNewTogetherAIEmbedder(t *testing.T) {
	// Save original env var
	originalAPIKey := os.Getenv("TOGETHER_API_KEY")
	defer os.Setenv("TOGETHER_API_KEY", originalAPIKey)

	tests := []struct {
		name        string
		model       string
		apiKey      string
		expectError bool
		expectedDim int
		expectedMax int
		description string
	}{
		{
			name:        "valid m2-bert-80M-8k-retrieval",
			model:       "togethercomputer/m2-bert-80M-8k-retrieval",
			apiKey:      "test-api-key",
			expectError: false,
			expectedDim: 768,
			expectedMax: 8192,
			description: "should create embedder for m2-bert-80M-8k-retrieval",
		},
		{
			name:        "valid m2-bert-80M-32k-retrieval",
			model:       "togethercomputer/m2-bert-80M-32k-retrieval",
			apiKey:      "test-api-key",
			expectError: false,
			expectedDim: 768,
			expectedMax: 32768,
			description: "should create embedder for m2-bert-80M-32k-retrieval",
		},
		{
			name:        "valid multilingual-e5-large-instruct",
			model:       "intfloat/multilingual-e5-large-instruct",
			apiKey:      "test-api-key",
			expectError: false,
			expectedDim: 1024,
			expectedMax: 514,
			description: "should create embedder for multilingual-e5-large-instruct",
		},
		{
			name:        "unsupported model",
			model:       "unsupported-model",
			apiKey:      "test-api-key",
			expectError: true,
			expectedDim: 0,
			expectedMax: 0,
			description: "should return error for unsupported model",
		},
		{
			name:        "missing api key",
			model:       "togethercomputer/m2-bert-80M-8k-retrieval",
			apiKey:      "",
			expectError: true,
			expectedDim: 0,
			expectedMax: 0,
			description: "should return error when API key is missing",
		},
		{
			name:        "empty model",
			model:       "",
			apiKey:      "test-api-key",
			expectError: true,
			expectedDim: 0,
			expectedMax: 0,
			description: "should return error for empty model",
		},
		{
			name:        "non-togethercomputer model",
			model:       "some-other/model",
			apiKey:      "test-api-key",
			expectError: true,
			expectedDim: 0,
			expectedMax: 0,
			description: "should return error for non-togethercomputer model",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Set up environment
			os.Setenv("TOGETHER_API_KEY", tt.apiKey)

			embedder, err := NewTogetherAIEmbedder(tt.model)

			// Check error expectation
			if tt.expectError && err == nil {
				t.Errorf("Expected error but got none for test: %s", tt.description)
				return
			}
			if !tt.expectError && err != nil {
				t.Errorf("Unexpected error for test %s: %v", tt.description, err)
				return
			}

			// If we expected an error, we're done
			if tt.expectError {
				return
			}

			// Validate embedder properties
			if embedder == nil {
				t.Errorf("Expected non-nil embedder for test: %s", tt.description)
				return
			}

			if embedder.GetModelName() != tt.model {
				t.Errorf("Expected model %s, got %s for test: %s", tt.model, embedder.GetModelName(), tt.description)
			}

			if embedder.GetDimension() != tt.expectedDim {
				t.Errorf(
					"Expected dimension %d, got %d for test: %s",
					tt.expectedDim,
					embedder.GetDimension(),
					tt.description,
				)
			}

			if embedder.GetMaxTokens() != tt.expectedMax {
				t.Errorf(
					"Expected max tokens %d, got %d for test: %s",
					tt.expectedMax,
					embedder.GetMaxTokens(),
					tt.description,
				)
			}
		})
	}
}

func TestTogetherAIEmbedder_ContentCleaning(t *testing.T) {
	originalAPIKey := os.Getenv("TOGETHER_API_KEY")
	defer os.Setenv("TOGETHER_API_KEY", originalAPIKey)
	os.Setenv("TOGETHER_API_KEY", "test-api-key")

	var received []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req TogetherAIEmbeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		received = req.Input
		resp := TogetherAIEmbeddingResponse{Model: req.Model, Object: "list"}
		for i := range req.Input {
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
				Object    string    `json:"object"`
			}{Embedding: make([]float32, 768), Index: i, Object: "embedding"})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	embedder, err := NewTogetherAIEmbedderWithClient(
		"togethercomputer/m2-bert-80M-8k-retrieval",
		server.Client(),
		server.URL,
	)
	if err != nil {
		t.Fatalf("Failed to create embedder: %v", err)
	}

	tests := []struct {
		name        string
		content     string
		expected    string
		description string
	}{
		{
			name:        "content with newlines",
			content:     "Line 1\nLine 2\nLine 3",
			expected:    "Line 1 Line 2 Line 3",
			description: "should flatten newlines",
		},
		{
			name:        "content with surrounding whitespace",
			content:     "  \n\t  Word1  \n  Word2  \t\n  ",
			expected:    "Word1     Word2",
			description: "should trim surrounding whitespace",
		},
		{
			name:        "content with carriage returns",
			content:     "Line1\r\nLine2",
			expected:    "Line1\r Line2",
			description: "should only replace line feeds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			vectors, err := embedder.GenerateEmbeddings(ctx, []string{tt.content})
			if err != nil {
				t.Fatalf("Unexpected error for test %s: %v", tt.description, err)
			}
			if len(vectors) != 1 || len(vectors[0]) != 768 {
				t.Fatalf("Unexpected vectors shape for test %s", tt.description)
			}
			if len(received) != 1 || received[0] != tt.expected {
				t.Errorf("Expected input %q, got %q for test: %s", tt.expected, received, tt.description)
			}
		})
	}
}

func TestTogetherAIEmbedder_CountMismatch(t *testing.T) {
	originalAPIKey := os.Getenv("TOGETHER_API_KEY")
	defer os.Setenv("TOGETHER_API_KEY", originalAPIKey)
	os.Setenv("TOGETHER_API_KEY", "test-api-key")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2],"index":0,"object":"embedding"}],"object":"list"}`))
	}))
	defer server.Close()

	embedder, err := NewTogetherAIEmbedderWithClient(
		"togethercomputer/m2-bert-80M-8k-retrieval",
		server.Client(),
		server.URL,
	)
	if err != nil {
		t.Fatalf("Failed to create embedder: %v", err)
	}

	_, err = embedder.GenerateEmbeddings(context.Background(), []string{"a", "b"})
	if !errors.Is(err, ErrEmbeddingCount) {
		t.Errorf("Expected ErrEmbeddingCount, got %v", err)
	}
}

func TestTogetherAIEmbedder_RealAPI(t *testing.T) {
	err := testutil.LoadEnvFromFile("../../../.env")
	if err != nil {
		t.Logf("Warning: Failed to load .env file: %v", err)
	}

	apiKey := os.Getenv("TOGETHER_API_KEY")
	if apiKey == "" {
		t.Skip("TOGETHER_API_KEY not set, skipping real API tests")
	}

	embedder, err := NewTogetherAIEmbedder("togethercomputer/m2-bert-80M-8k-retrieval")
	if err != nil {
		t.Fatalf("Failed to create embedder: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	vectors, err := embedder.GenerateEmbeddings(ctx, []string{
		"Die Beschwerde wird abgewiesen.",
		"Le recours est rejeté.",
	})
	if err != nil {
		t.Fatalf("GenerateEmbeddings failed: %v", err)
	}
	for _, vec := range vectors {
		if len(vec) != embedder.GetDimension() {
			t.Errorf("Expected dimension %d, got %d", embedder.GetDimension(), len(vec))
		}
	}
}
