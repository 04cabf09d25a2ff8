package retriever

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/dtce-ai/dtce-rag/common/logger"
	"github.com/dtce-ai/dtce-rag/config"
	"github.com/dtce-ai/dtce-rag/metrics"
	"github.com/dtce-ai/dtce-rag/namespace"
	"github.com/dtce-ai/dtce-rag/schema"
)

type state int

const (
	stateSemantic state = iota
	stateKeyword
	stateDone
)

// Outcome is the result of one Retrieve call.
type Outcome struct {
	Documents []schema.RetrievedDocument
	// States visited, in order, e.g. ["semantic", "keyword"].
	States         []string
	SemanticCount  int
	KeywordCount   int
	FilterLevel    FilterLevel
	FallbackReason string
}

// Engine is stateless across calls and safe for concurrent use.
type Engine struct {
	index     Index
	knowledge *namespace.Knowledge
	cfg       config.RetrievalConfig
}

// NewEngine wires an index with the static namespace knowledge.
func NewEngine(idx Index, k *namespace.Knowledge, cfg config.RetrievalConfig) *Engine {
	if cfg.TopN <= 0 {
		cfg.TopN = 30
	}
	if cfg.MinSemanticResults <= 0 {
		cfg.MinSemanticResults = 5
	}
	return &Engine{index: idx, knowledge: k, cfg: cfg}
}

// Retrieve runs the SEMANTIC -> KEYWORD state machine. variants are
// alternative phrasings also searched in the keyword state.
//
// The returned error wraps schema.ErrRetrievalFailure and is only produced
// when the keyword state runs as the fallback for a failed semantic search
// and fails too.
func (e *Engine) Retrieve(ctx context.Context, text string, intent schema.ClassifiedIntent, variants ...string) (Outcome, error) {
	start := time.Now()
	defer metrics.ObserveStage("retrieve", start)

	var project string
	if intent.ProjectRef.IsFullNumber() {
		project = intent.ProjectRef.ID
	}
	filter := NewFilter(e.knowledge.Exclusions(), intent.TargetNamespaces, project)

	var (
		out      Outcome
		semantic []schema.RetrievedDocument
		keyword  []schema.RetrievedDocument
		failures *multierror.Error
	)
	semanticFailed := false

	for st := stateSemantic; st != stateDone; {
		switch st {
		case stateSemantic:
			out.States = append(out.States, "semantic")
			docs, f, err := e.search(ctx, ModeSemantic, text, filter, e.cfg.SemanticTimeout())
			filter = f
			if err != nil {
				logger.FromContext(ctx).Warnf("retrieve: semantic search failed, falling back to keyword: %v", err)
				failures = multierror.Append(failures, fmt.Errorf("semantic: %w", err))
				semanticFailed = true
				out.FallbackReason = "semantic_error"
				metrics.IncFallback(out.FallbackReason)
				st = stateKeyword
				continue
			}
			semantic = docs
			metrics.ObserveRetrieval(string(ModeSemantic), len(docs))
			if len(docs) < e.cfg.MinSemanticResults {
				out.FallbackReason = "few_results"
				metrics.IncFallback(out.FallbackReason)
				st = stateKeyword
				continue
			}
			st = stateDone

		case stateKeyword:
			out.States = append(out.States, "keyword")
			docs, f, err := e.keyword(ctx, text, variants, filter)
			filter = f
			if err != nil {
				failures = multierror.Append(failures, fmt.Errorf("keyword: %w", err))
				if semanticFailed {
					err = schema.NewStageError("retrieve", schema.ErrRetrievalFailure, failures.ErrorOrNil())
					logger.FromContext(ctx).Errorf("retrieve: %v", err)
					return out, err
				}
				logger.FromContext(ctx).Warnf("retrieve: supplemental keyword search failed, keeping %d semantic results: %v", len(semantic), err)
			} else {
				keyword = docs
				metrics.ObserveRetrieval(string(ModeKeyword), len(docs))
			}
			st = stateDone
		}
	}

	out.Documents = merge(semantic, keyword, e.cfg.TopN)
	out.SemanticCount = len(semantic)
	out.KeywordCount = len(keyword)
	out.FilterLevel = filter.Level
	logger.FromContext(ctx).Infof("retrieve: states=%v semantic=%d keyword=%d returned=%d filter=%s",
		out.States, out.SemanticCount, out.KeywordCount, len(out.Documents), out.FilterLevel)
	return out, nil
}

// search issues one index call, simplifying the filter while the index
// rejects it as too complex. Any other error is returned unchanged. Clauses
// the index could not take are applied locally to the results.
func (e *Engine) search(ctx context.Context, mode Mode, text string, f *Filter, timeout time.Duration) ([]schema.RetrievedDocument, *Filter, error) {
	for {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		docs, err := e.index.Search(callCtx, SearchRequest{Text: text, Top: e.cfg.TopN, Mode: mode, Filter: f})
		cancel()
		if errors.Is(err, ErrFilterTooComplex) {
			if next, ok := f.Simplify(); ok {
				logger.FromContext(ctx).Warnf("retrieve: %s filter rejected at level %s, retrying at %s", mode, f.Level, next.Level)
				metrics.IncFallback("filter_simplified")
				f = next
				continue
			}
		}
		if d := f.dropped(); err == nil && d != nil {
			kept := d.keep(docs)
			if len(kept) < len(docs) {
				logger.FromContext(ctx).Infof("retrieve: %s: %d of %d results outside the dropped filter clauses", mode, len(docs)-len(kept), len(docs))
			}
			docs = kept
		}
		return docs, f, err
	}
}

// keyword searches the primary text and up to cfg.KeywordVariants
// alternative phrasings concurrently. Only the primary search can fail the
// state; results keep primary-then-variant order.
func (e *Engine) keyword(ctx context.Context, text string, variants []string, f *Filter) ([]schema.RetrievedDocument, *Filter, error) {
	if len(variants) > e.cfg.KeywordVariants {
		variants = variants[:e.cfg.KeywordVariants]
	}
	results := make([][]schema.RetrievedDocument, len(variants)+1)
	final := f
	var g errgroup.Group
	g.Go(guard(func() error {
		docs, nf, err := e.search(ctx, ModeKeyword, text, f, e.cfg.KeywordTimeout())
		final = nf
		if err != nil {
			return err
		}
		results[0] = docs
		return nil
	}))
	for i, v := range variants {
		i, v := i, v
		g.Go(guard(func() error {
			docs, _, err := e.search(ctx, ModeKeyword, v, f, e.cfg.KeywordTimeout())
			if err != nil {
				logger.FromContext(ctx).Debugf("retrieve: keyword variant %q failed: %v", v, err)
				return nil
			}
			results[i+1] = docs
			return nil
		}))
	}
	if err := g.Wait(); err != nil {
		return nil, final, err
	}
	var all []schema.RetrievedDocument
	for _, r := range results {
		all = append(all, r...)
	}
	return all, final, nil
}

// guard turns a panic inside a search goroutine into an error, since the
// caller's recover cannot see it.
func guard(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("search panicked: %v", r)
			}
		}()
		return fn()
	}
}

// merge keeps semantic hits ahead of keyword-only hits, each group ordered
// by score then recency. The first occurrence of an id wins.
func merge(semantic, keyword []schema.RetrievedDocument, topN int) []schema.RetrievedDocument {
	seen := map[string]bool{}
	dedupe := func(in []schema.RetrievedDocument) []schema.RetrievedDocument {
		out := make([]schema.RetrievedDocument, 0, len(in))
		for _, d := range in {
			if d.ID != "" {
				if seen[d.ID] {
					continue
				}
				seen[d.ID] = true
			}
			out = append(out, d)
		}
		rank(out)
		return out
	}
	out := append(dedupe(semantic), dedupe(keyword)...)
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}

func rank(docs []schema.RetrievedDocument) {
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].Score != docs[j].Score {
			return docs[i].Score > docs[j].Score
		}
		return docs[i].ModifiedAt.After(docs[j].ModifiedAt)
	})
}
