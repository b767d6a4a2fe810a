package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"DATABASE_DRIVER", "SOURCES_FILE", "INGEST_MAX_PAGES_PER_SOURCE", "INGEST_RESPECT_ROBOTS",
		"INGEST_REQUEST_TIMEOUT", "INGEST_CONCURRENCY", "CHUNK_MAX_CHARS", "CHUNK_OVERLAP_CHARS",
		"EMBEDDINGS_PROVIDER", "EMBEDDINGS_DIM", "LLM_PROVIDER", "QUERY_CACHE_TTL", "ANSWER_MAX_HITS",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if cfg.DatabaseDriver != "sqlite" {
		t.Errorf("Expected sqlite driver, got %s", cfg.DatabaseDriver)
	}
	if cfg.SourcesFile != defaultSourcesFile {
		t.Errorf("Expected sources file %s, got %s", defaultSourcesFile, cfg.SourcesFile)
	}
	if cfg.MaxPages != 2000 || cfg.MaxDepth != 3 {
		t.Errorf("Unexpected crawl bounds %d/%d", cfg.MaxPages, cfg.MaxDepth)
	}
	if !cfg.RespectRobots {
		t.Error("Expected robots to be respected by default")
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Expected 30s timeout, got %v", cfg.Timeout)
	}
	if cfg.ChunkMaxChars != 1800 || cfg.ChunkOverlapChars != 250 {
		t.Errorf("Unexpected chunk bounds %d/%d", cfg.ChunkMaxChars, cfg.ChunkOverlapChars)
	}
	if cfg.EmbeddingsProvider != "none" || cfg.LLMProvider != "none" {
		t.Errorf("Expected providers to default to none, got %s/%s", cfg.EmbeddingsProvider, cfg.LLMProvider)
	}
	if cfg.QueryCacheTTL != 24*time.Hour {
		t.Errorf("Expected 24h cache ttl, got %v", cfg.QueryCacheTTL)
	}
	if cfg.AnswerMaxHits != 12 {
		t.Errorf("Expected 12 answer hits, got %d", cfg.AnswerMaxHits)
	}
}

func TestLoadOverrides(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		expectError bool
		check       func(t *testing.T, cfg *Config)
		description string
	}{
		{
			name: "explicit values",
			env: map[string]string{
				"DATABASE_DRIVER":        "Postgres",
				"INGEST_RESPECT_ROBOTS":  "false",
				"INGEST_REQUEST_TIMEOUT": "45",
				"INGEST_RATE_LIMIT_RPS":  "0.5",
				"QUERY_CACHE_TTL":        "90m",
				"EMBEDDINGS_PROVIDER":    "Ollama",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.DatabaseDriver != "postgres" {
					t.Errorf("Expected postgres, got %s", cfg.DatabaseDriver)
				}
				if cfg.RespectRobots {
					t.Error("Expected robots to be ignored")
				}
				if cfg.Timeout != 45*time.Second {
					t.Errorf("Expected plain seconds to parse, got %v", cfg.Timeout)
				}
				if cfg.RateLimitRPS != 0.5 {
					t.Errorf("Expected 0.5 rps, got %v", cfg.RateLimitRPS)
				}
				if cfg.QueryCacheTTL != 90*time.Minute {
					t.Errorf("Expected 90m, got %v", cfg.QueryCacheTTL)
				}
				if cfg.EmbeddingsProvider != "ollama" {
					t.Errorf("Expected ollama, got %s", cfg.EmbeddingsProvider)
				}
			},
			description: "environment overrides defaults",
		},
		{
			name: "provider model fallback",
			env:  map[string]string{"LLM_PROVIDER": "ollama", "LLM_MODEL": "", "OLLAMA_MODEL": "llama3.1"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.LLMModel != "llama3.1" {
					t.Errorf("Expected OLLAMA_MODEL fallback, got %q", cfg.LLMModel)
				}
			},
			description: "provider specific model names fill an empty LLM_MODEL",
		},
		{
			name:        "malformed integer",
			env:         map[string]string{"INGEST_CONCURRENCY": "ten"},
			expectError: true,
			description: "non-numeric values are rejected",
		},
		{
			name:        "overlap too large",
			env:         map[string]string{"CHUNK_MAX_CHARS": "200", "CHUNK_OVERLAP_CHARS": "200"},
			expectError: true,
			description: "overlap must stay below the chunk size",
		},
		{
			name:        "zero concurrency",
			env:         map[string]string{"INGEST_CONCURRENCY": "0"},
			expectError: true,
			description: "worker count must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tt.expectError {
				if !errors.Is(err, ErrInvalidValue) {
					t.Errorf("%s: expected ErrInvalidValue, got %v", tt.description, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("%s: unexpected error %v", tt.description, err)
			}
			tt.check(t, cfg)
		})
	}
}
