package orchestrator

import (
	"github.com/dtce-ai/dtce-rag/cache"
	"github.com/dtce-ai/dtce-rag/classifier"
	"github.com/dtce-ai/dtce-rag/config"
	"github.com/dtce-ai/dtce-rag/formatter"
	"github.com/dtce-ai/dtce-rag/llm"
	"github.com/dtce-ai/dtce-rag/namespace"
	"github.com/dtce-ai/dtce-rag/normalizer"
	"github.com/dtce-ai/dtce-rag/prompt"
	"github.com/dtce-ai/dtce-rag/quality"
	"github.com/dtce-ai/dtce-rag/retriever"
)

// Build assembles every stage from cfg around the external services. c may
// be nil.
func Build(cfg *config.Config, provider llm.Provider, idx retriever.Index, c cache.Cache) (*Orchestrator, error) {
	if c == nil {
		c = cache.Nop{}
	}
	counter, err := prompt.NewCounter(cfg.Prompt)
	if err != nil {
		return nil, err
	}
	k := namespace.NewKnowledge(cfg.Namespaces)
	return New(Deps{
		Knowledge:        k,
		Normalizer:       normalizer.New(cfg.Normalizer, k, provider, c),
		Classifier:       classifier.New(cfg.Classifier, k, provider, c),
		Engine:           retriever.NewEngine(idx, k, cfg.Retrieval),
		Quality:          quality.NewFilter(k.Exclusions()),
		Formatter:        formatter.New(cfg.Formatter, k),
		Prompt:           prompt.NewBuilder(cfg.Prompt, counter),
		LLM:              provider,
		SynthesisTimeout: cfg.LLM.Timeout(),
	})
}
