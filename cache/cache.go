package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/dtce-ai/dtce-rag/config"
	"github.com/dtce-ai/dtce-rag/metrics"
)

// Cache memoizes LLM-derived intermediate results keyed by normalized input.
// Lookups never fail: a backend error reads as a miss.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
	Purge(ctx context.Context)
	Close() error
}

// New builds the cache selected by cfg.Store.
func New(cfg config.CacheConfig) (Cache, error) {
	switch strings.ToLower(cfg.Store) {
	case "", "memory":
		return NewLRU(cfg.MaxEntries, cfg.TTL()), nil
	case "none":
		return Nop{}, nil
	case "redis":
		return NewRedis(cfg.Redis, cfg.TTL())
	}
	return nil, fmt.Errorf("unsupported cache store %q", cfg.Store)
}

// Key derives a stable key from a namespace and the input parts.
func Key(namespace string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(strings.ToLower(strings.TrimSpace(p))))
		h.Write([]byte{0})
	}
	return namespace + ":" + hex.EncodeToString(h.Sum(nil))[:32]
}

// Lookup reads key from c and records the hit ratio. A nil cache always misses.
func Lookup(ctx context.Context, c Cache, key string) (string, bool) {
	if c == nil {
		return "", false
	}
	v, ok := c.Get(ctx, key)
	metrics.IncCache(ok)
	return v, ok
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) (string, bool)         { return "", false }
func (Nop) Set(context.Context, string, string, time.Duration) {}
func (Nop) Purge(context.Context)                              {}
func (Nop) Close() error                                       { return nil }
