package main

import (
	"fmt"

	"github.com/dtce-ai/dtce-rag/cache"
	"github.com/dtce-ai/dtce-rag/config"
	"github.com/dtce-ai/dtce-rag/llm"
	"github.com/dtce-ai/dtce-rag/orchestrator"
	"github.com/dtce-ai/dtce-rag/retriever"
)

// app is one immutable pipeline built from one configuration snapshot.
type app struct {
	cfg   *config.Config
	orch  *orchestrator.Orchestrator
	cache cache.Cache
}

func newApp(cfg *config.Config) (*app, error) {
	if err := cfg.Validate(true); err != nil {
		return nil, err
	}
	provider, err := llm.NewLLMProvider(cfg.LLM, &cfg.HTTP)
	if err != nil {
		return nil, fmt.Errorf("init llm provider: %w", err)
	}
	c, err := cache.New(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}
	idx := retriever.NewAzureSearchIndex(cfg.Index, &cfg.HTTP)
	orch, err := orchestrator.Build(cfg, provider, idx, c)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("init pipeline: %w", err)
	}
	return &app{cfg: cfg, orch: orch, cache: c}, nil
}

func (a *app) Close() error {
	return a.cache.Close()
}
