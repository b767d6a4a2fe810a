package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/code-sleuth/caselaw-go/pkg/util"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyPrefix = "caselaw:qemb:"

// DefaultTTL is used when the configured TTL is not positive.
const DefaultTTL = 24 * time.Hour

// QueryEmbeddings caches query vectors in Redis keyed by model and query hash.
type QueryEmbeddings struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewQueryEmbeddings wraps an existing client.
func NewQueryEmbeddings(client *redis.Client, ttl time.Duration) *QueryEmbeddings {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &QueryEmbeddings{
		client: client,
		ttl:    ttl,
		logger: util.NewLogger(util.LevelFromEnv()),
	}
}

// Open parses a redis:// URL and pings the server.
func Open(ctx context.Context, redisURL string, ttl time.Duration) (*QueryEmbeddings, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewQueryEmbeddings(client, ttl), nil
}

func key(model, query string) string {
	sum := sha256.Sum256([]byte(query))
	return keyPrefix + model + ":" + hex.EncodeToString(sum[:])
}

// Get returns the cached vector, or found=false on a miss.
func (c *QueryEmbeddings) Get(ctx context.Context, model, query string) ([]float32, bool, error) {
	data, err := c.client.Get(ctx, key(model, query)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get query embedding: %w", err)
	}
	vec, err := util.DecodeVector(data)
	if err != nil {
		c.logger.Warn().Str("model", model).Msg("dropping corrupt cached embedding")
		_ = c.client.Del(ctx, key(model, query)).Err()
		return nil, false, nil
	}
	return vec, true, nil
}

// Set stores the vector with the cache TTL.
func (c *QueryEmbeddings) Set(ctx context.Context, model, query string, vec []float32) error {
	if err := c.client.Set(ctx, key(model, query), util.EncodeVector(vec), c.ttl).Err(); err != nil {
		return fmt.Errorf("set query embedding: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (c *QueryEmbeddings) Close() error {
	return c.client.Close()
}
