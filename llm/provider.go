package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/dtce-ai/dtce-rag/common/httpx"
	"github.com/dtce-ai/dtce-rag/config"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat message sent to the model.
type Message struct {
	Role    string
	Content string
}

// Provider is a chat-completion service.
type Provider interface {
	// GenerateCompletion sends a single user prompt.
	GenerateCompletion(ctx context.Context, prompt string) (string, error)
	// Chat sends an ordered message list.
	Chat(ctx context.Context, messages []Message) (string, error)
	GetProviderType() string
}

// ErrEmptyCompletion is returned when the model answers with no content.
var ErrEmptyCompletion = errors.New("empty completion")

// NewLLMProvider builds the configured provider, paced when rate_limit is set.
func NewLLMProvider(cfg config.LLMConfig, httpCfg *config.HTTPClientConfig) (Provider, error) {
	var p Provider
	switch cfg.Provider {
	case "openai", "azure":
		hc := httpx.NewFromConfig("llm", httpCfg)
		op, err := NewOpenAIProvider(cfg, hc.HTTPClient())
		if err != nil {
			return nil, err
		}
		p = op
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
	if cfg.RateLimit > 0 {
		p = NewRateLimited(p, cfg.RateLimit, cfg.RateBurst)
	}
	return p, nil
}
