package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestCache(t *testing.T, ttl time.Duration) (*QueryEmbeddings, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewQueryEmbeddings(client, ttl)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestQueryEmbeddings_GetSet(t *testing.T) {
	c, _ := setupTestCache(t, time.Hour)
	ctx := context.Background()

	_, found, err := c.Get(ctx, "text-embedding-3-small", "Mietrecht Kündigung")
	require.NoError(t, err)
	assert.False(t, found)

	vec := []float32{0.25, -0.5, 1}
	require.NoError(t, c.Set(ctx, "text-embedding-3-small", "Mietrecht Kündigung", vec))

	got, found, err := c.Get(ctx, "text-embedding-3-small", "Mietrecht Kündigung")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, vec, got)

	_, found, err = c.Get(ctx, "nomic-embed-text", "Mietrecht Kündigung")
	require.NoError(t, err)
	assert.False(t, found, "keys are scoped by model")
}

func TestQueryEmbeddings_TTL(t *testing.T) {
	c, mr := setupTestCache(t, 0)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "m", "q", []float32{1}))
	assert.Equal(t, DefaultTTL, mr.TTL(key("m", "q")))

	mr.FastForward(DefaultTTL + time.Second)
	_, found, err := c.Get(ctx, "m", "q")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestQueryEmbeddings_CorruptValue(t *testing.T) {
	c, mr := setupTestCache(t, time.Hour)
	require.NoError(t, mr.Set(key("m", "q"), "abc"))

	_, found, err := c.Get(context.Background(), "m", "q")
	require.NoError(t, err)
	assert.False(t, found)
	assert.False(t, mr.Exists(key("m", "q")))
}

func TestOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := Open(context.Background(), "redis://"+mr.Addr()+"/0", time.Minute)
	require.NoError(t, err)
	defer c.Close()

	_, err = Open(context.Background(), "not a url", time.Minute)
	assert.Error(t, err)
}
