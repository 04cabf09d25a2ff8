package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtce-ai/dtce-rag/config"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(2, time.Minute)
	c.Set(ctx, "a", "1", 0)
	c.Set(ctx, "b", "2", 0)
	_, _ = c.Get(ctx, "a")
	c.Set(ctx, "c", "3", 0)

	_, ok := c.Get(ctx, "b")
	assert.False(t, ok)
	v, ok := c.Get(ctx, "a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
}

func TestLRUExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(4, time.Minute).(*lruCache)
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set(ctx, "k", "v", 10*time.Second)
	_, ok := c.Get(ctx, "k")
	require.True(t, ok)

	now = now.Add(11 * time.Second)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Empty(t, c.items)
}

func TestPurge(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(4, time.Minute)
	c.Set(ctx, "k", "v", 0)
	c.Purge(ctx)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestKeyIsNormalizedAndNamespaced(t *testing.T) {
	a := Key("phrasings", "  Wellness Policy ")
	b := Key("phrasings", "wellness policy")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, Key("classify", "wellness policy"))
	assert.NotEqual(t, Key("x", "ab", "c"), Key("x", "a", "bc"))
}

func TestNewSelectsStore(t *testing.T) {
	c, err := New(config.CacheConfig{Store: "none"})
	require.NoError(t, err)
	c.Set(context.Background(), "k", "v", 0)
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)

	_, err = New(config.CacheConfig{Store: "redis"})
	assert.Error(t, err)

	_, err = New(config.CacheConfig{Store: "disk"})
	assert.Error(t, err)
}

func TestRedisUnreachableReadsAsMiss(t *testing.T) {
	c, err := NewRedis(config.RedisConfig{Address: "127.0.0.1:1", KeyPrefix: "t:"}, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	c.Set(ctx, "k", "v", 0)
	_, ok := Lookup(ctx, c, "k")
	assert.False(t, ok)
}
