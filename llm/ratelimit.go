package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited paces calls to the wrapped provider across all callers.
type RateLimited struct {
	inner   Provider
	limiter *rate.Limiter
}

// NewRateLimited wraps p with a token bucket of rps requests per second.
func NewRateLimited(p Provider, rps float64, burst int) *RateLimited {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{inner: p, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *RateLimited) GenerateCompletion(ctx context.Context, prompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("llm rate limit: %w", err)
	}
	return r.inner.GenerateCompletion(ctx, prompt)
}

func (r *RateLimited) Chat(ctx context.Context, messages []Message) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("llm rate limit: %w", err)
	}
	return r.inner.Chat(ctx, messages)
}

func (r *RateLimited) GetProviderType() string { return r.inner.GetProviderType() }
