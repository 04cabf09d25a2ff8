package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/dtce-ai/dtce-rag/config"
)

const azureAPIVersion = "2024-06-01"

// OpenAIProvider talks to the OpenAI chat completions API or an Azure OpenAI deployment.
type OpenAIProvider struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int
	kind        string
}

// NewOpenAIProvider creates a provider. hc carries retry and breaker behaviour,
// so the SDK's own retries are disabled.
func NewOpenAIProvider(cfg config.LLMConfig, hc *http.Client) (*OpenAIProvider, error) {
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	opts := []option.RequestOption{
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout()),
	}
	if hc != nil {
		opts = append(opts, option.WithHTTPClient(hc))
	}
	switch cfg.Provider {
	case "azure":
		if cfg.BaseURL == "" {
			return nil, errors.New("azure llm requires base_url")
		}
		// Deployment URL, e.g. https://<res>.openai.azure.com/openai/deployments/<name>/
		opts = append(opts,
			option.WithBaseURL(cfg.BaseURL),
			option.WithHeader("api-key", cfg.APIKey),
			option.WithQuery("api-version", azureAPIVersion),
		)
	default:
		if cfg.APIKey != "" {
			opts = append(opts, option.WithAPIKey(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
	}
	return &OpenAIProvider{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		kind:        cfg.Provider,
	}, nil
}

func (p *OpenAIProvider) GenerateCompletion(ctx context.Context, prompt string) (string, error) {
	return p.Chat(ctx, []Message{{Role: RoleUser, Content: prompt}})
}

func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(p.model),
		Messages:    toParams(messages),
		Temperature: openai.Float(p.temperature),
	}
	if p.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(p.maxTokens))
	}
	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%s chat completion: %w", p.kind, err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyCompletion
	}
	return content, nil
}

func (p *OpenAIProvider) GetProviderType() string { return p.kind }

func toParams(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
