// Package config reads process settings from the environment and the court
// source registry from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultSourcesFile   = "configs/sources.yaml"
	defaultUserAgent     = "caselaw-go/0.1"
	defaultMaxPages      = 2000
	defaultMaxDepth      = 3
	defaultTimeout       = 30 * time.Second
	defaultConcurrency   = 10
	defaultRateLimitRPS  = 2.0
	defaultRateBurst     = 4
	defaultMinTextChars  = 300
	defaultChunkChars    = 1800
	defaultChunkOverlap  = 250
	defaultEmbeddingDim  = 1536
	defaultQueryCacheTTL = 24 * time.Hour
	defaultAnswerHits    = 12
	defaultListenAddr    = ":8080"
)

var ErrInvalidValue = errors.New("invalid configuration value")

// Config is the process configuration.
type Config struct {
	DatabaseDriver string
	DatabaseURL    string
	SourcesFile    string

	UserAgent     string
	MaxPages      int
	MaxDepth      int
	RespectRobots bool
	Timeout       time.Duration
	Concurrency   int
	RateLimitRPS  float64
	RateBurst     int
	MinTextChars  int

	ChunkMaxChars     int
	ChunkOverlapChars int

	EmbeddingsProvider string
	EmbeddingsModel    string
	EmbeddingsDim      int

	LLMProvider string
	LLMModel    string

	RedisURL      string
	QueryCacheTTL time.Duration
	AnswerMaxHits int
	ListenAddr    string

	LogLevel string
}

// Load reads the configuration from the environment. Malformed values are
// reported together.
func Load() (*Config, error) {
	r := &envReader{}
	cfg := &Config{
		DatabaseDriver: strings.ToLower(r.str("DATABASE_DRIVER", "sqlite")),
		DatabaseURL:    r.str("DATABASE_URL", ""),
		SourcesFile:    r.str("SOURCES_FILE", defaultSourcesFile),

		UserAgent:     r.str("INGEST_USER_AGENT", defaultUserAgent),
		MaxPages:      r.int("INGEST_MAX_PAGES_PER_SOURCE", defaultMaxPages),
		MaxDepth:      r.int("INGEST_MAX_DEPTH", defaultMaxDepth),
		RespectRobots: r.bool("INGEST_RESPECT_ROBOTS", true),
		Timeout:       r.duration("INGEST_REQUEST_TIMEOUT", defaultTimeout),
		Concurrency:   r.int("INGEST_CONCURRENCY", defaultConcurrency),
		RateLimitRPS:  r.float("INGEST_RATE_LIMIT_RPS", defaultRateLimitRPS),
		RateBurst:     r.int("INGEST_RATE_LIMIT_BURST", defaultRateBurst),
		MinTextChars:  r.int("INGEST_MIN_TEXT_CHARS", defaultMinTextChars),

		ChunkMaxChars:     r.int("CHUNK_MAX_CHARS", defaultChunkChars),
		ChunkOverlapChars: r.int("CHUNK_OVERLAP_CHARS", defaultChunkOverlap),

		EmbeddingsProvider: strings.ToLower(r.str("EMBEDDINGS_PROVIDER", "none")),
		EmbeddingsModel:    r.str("EMBEDDINGS_MODEL", ""),
		EmbeddingsDim:      r.int("EMBEDDINGS_DIM", defaultEmbeddingDim),

		LLMProvider: strings.ToLower(r.str("LLM_PROVIDER", "none")),
		LLMModel:    r.str("LLM_MODEL", ""),

		RedisURL:      r.str("REDIS_URL", ""),
		QueryCacheTTL: r.duration("QUERY_CACHE_TTL", defaultQueryCacheTTL),
		AnswerMaxHits: r.int("ANSWER_MAX_HITS", defaultAnswerHits),
		ListenAddr:    r.str("LISTEN_ADDR", defaultListenAddr),

		LogLevel: r.str("LOG_LEVEL", "error"),
	}
	if cfg.LLMModel == "" {
		// provider specific names are accepted as fallbacks
		switch cfg.LLMProvider {
		case "openai":
			cfg.LLMModel = r.str("OPENAI_MODEL", "")
		case "ollama":
			cfg.LLMModel = r.str("OLLAMA_MODEL", "")
		}
	}
	if err := errors.Join(r.errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	positive := []struct {
		key   string
		value int
	}{
		{"INGEST_CONCURRENCY", c.Concurrency},
		{"INGEST_RATE_LIMIT_BURST", c.RateBurst},
		{"CHUNK_MAX_CHARS", c.ChunkMaxChars},
		{"EMBEDDINGS_DIM", c.EmbeddingsDim},
		{"ANSWER_MAX_HITS", c.AnswerMaxHits},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errs = append(errs, fmt.Errorf("%w: %s must be positive", ErrInvalidValue, p.key))
		}
	}
	if c.ChunkOverlapChars < 0 || c.ChunkOverlapChars >= c.ChunkMaxChars {
		errs = append(errs, fmt.Errorf("%w: CHUNK_OVERLAP_CHARS must be below CHUNK_MAX_CHARS", ErrInvalidValue))
	}
	if c.RateLimitRPS < 0 {
		errs = append(errs, fmt.Errorf("%w: INGEST_RATE_LIMIT_RPS cannot be negative", ErrInvalidValue))
	}
	if c.MaxPages < 0 || c.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("%w: ingest page and depth bounds cannot be negative", ErrInvalidValue))
	}
	return errors.Join(errs...)
}

type envReader struct {
	errs []error
}

func (r *envReader) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *envReader) int(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, v))
		return def
	}
	return n
}

func (r *envReader) float(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, v))
		return def
	}
	return f
}

func (r *envReader) bool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, v))
		return def
	}
	return b
}

// duration accepts Go durations and plain seconds.
func (r *envReader) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, v))
		return def
	}
	return d
}
