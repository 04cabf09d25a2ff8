// Package orchestrator sequences the question-answering pipeline and is the
// only component that knows all the others.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dtce-ai/dtce-rag/classifier"
	"github.com/dtce-ai/dtce-rag/common/logger"
	"github.com/dtce-ai/dtce-rag/formatter"
	"github.com/dtce-ai/dtce-rag/llm"
	"github.com/dtce-ai/dtce-rag/metrics"
	"github.com/dtce-ai/dtce-rag/namespace"
	"github.com/dtce-ai/dtce-rag/normalizer"
	"github.com/dtce-ai/dtce-rag/prompt"
	"github.com/dtce-ai/dtce-rag/quality"
	"github.com/dtce-ai/dtce-rag/retriever"
	"github.com/dtce-ai/dtce-rag/schema"
)

// Deps are the pipeline stages. All of them are safe for concurrent use.
type Deps struct {
	Knowledge  *namespace.Knowledge
	Normalizer *normalizer.Normalizer
	Classifier *classifier.Classifier
	Engine     *retriever.Engine
	Quality    *quality.Filter
	Formatter  *formatter.Formatter
	Prompt     *prompt.Builder
	LLM        llm.Provider
	// Per-call timeout of the answer completion.
	SynthesisTimeout time.Duration
}

// Orchestrator holds no per-request state.
type Orchestrator struct {
	Deps
}

// New validates deps and builds an orchestrator.
func New(deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Knowledge == nil:
		return nil, errors.New("orchestrator: namespace knowledge is required")
	case deps.Normalizer == nil, deps.Classifier == nil:
		return nil, errors.New("orchestrator: normalizer and classifier are required")
	case deps.Engine == nil:
		return nil, errors.New("orchestrator: retrieval engine is required")
	case deps.Formatter == nil, deps.Prompt == nil:
		return nil, errors.New("orchestrator: formatter and prompt builder are required")
	case deps.LLM == nil:
		return nil, errors.New("orchestrator: llm provider is required")
	}
	if deps.Quality == nil {
		deps.Quality = quality.NewFilter(deps.Knowledge.Exclusions())
	}
	if deps.SynthesisTimeout <= 0 {
		deps.SynthesisTimeout = 30 * time.Second
	}
	return &Orchestrator{Deps: deps}, nil
}

// Process answers question in the context of history. It never returns an
// error: failures become an Answer with confidence error.
func (o *Orchestrator) Process(ctx context.Context, question string, history []schema.Turn) schema.Answer {
	return o.ProcessQuery(ctx, schema.Query{RawText: question, History: history})
}

// ProcessQuery is Process with the caller's optional project and namespace
// constraints.
func (o *Orchestrator) ProcessQuery(ctx context.Context, q schema.Query) (answer schema.Answer) {
	rm := metrics.NewRequestMetrics(uuid.NewString(), q.RawText)
	ctx = logger.NewContext(ctx, logger.With("request_id", rm.RequestID))
	var failure error
	defer func() {
		if r := recover(); r != nil {
			logger.FromContext(ctx).Errorf("orchestrator: panicked: %v\n%s", r, debug.Stack())
			failure = fmt.Errorf("panic: %v", r)
			answer = schema.Answer{Text: internalFailureText, Confidence: schema.ConfidenceError, Category: answer.Category, Sources: []schema.Source{}}
		}
		if answer.Sources == nil {
			answer.Sources = []schema.Source{}
		}
		rm.Category = string(answer.Category)
		rm.Finish(string(answer.Confidence), failure)
		rm.Log()
		metrics.IncAnswer(string(answer.Category), string(answer.Confidence))
	}()

	answer, failure = o.run(ctx, q, rm)
	return answer
}

func (o *Orchestrator) run(ctx context.Context, q schema.Query, rm *metrics.RequestMetrics) (schema.Answer, error) {
	if strings.TrimSpace(q.RawText) == "" {
		return schema.Answer{Text: emptyQuestionText, Confidence: schema.ConfidenceLow, Category: schema.CategoryGeneral}, nil
	}

	start := time.Now()
	nq := o.Normalizer.Normalize(ctx, q.RawText)
	rm.NormalizeLatencyMs = time.Since(start).Milliseconds()
	rm.TechnicalTerms = nq.TechnicalTerms
	rm.Phrasings = len(nq.AlternativePhrasings)
	if nq.ProjectRef != nil {
		rm.ProjectRef = nq.ProjectRef.ID
	}

	intent := o.understand(ctx, nq, q)
	rm.CategoryConfidence = intent.Confidence
	rm.NeedsRetrieval = intent.NeedsRetrieval
	rm.Namespaces = intent.TargetNamespaces
	log := logger.FromContext(ctx)
	log.Infof("orchestrator: category=%s confidence=%.2f retrieval=%v namespaces=%v reasoning=%q",
		intent.Category, intent.Confidence, intent.NeedsRetrieval, intent.TargetNamespaces, intent.Reasoning)

	if !intent.NeedsRetrieval {
		pair := o.Prompt.BuildGeneral(intent.Category, q.RawText, q.History, false)
		text, err := o.synthesize(ctx, pair, rm)
		if err != nil {
			return o.synthesisFailed(ctx, intent, err), err
		}
		return schema.Answer{
			Text:       Postprocess(text, 0),
			Confidence: confidenceFor(intent.Confidence, 0, true),
			Category:   intent.Category,
		}, nil
	}

	start = time.Now()
	out, err := o.Engine.Retrieve(ctx, nq.SearchText(), intent, nq.AlternativePhrasings...)
	rm.RetrievalLatencyMs = time.Since(start).Milliseconds()
	rm.RetrievalPhases = out.States
	if out.FilterLevel != retriever.LevelFull {
		rm.AddPhase("simplified:" + out.FilterLevel.String())
	}
	rm.SemanticResults = out.SemanticCount
	rm.KeywordResults = out.KeywordCount
	rm.FallbackTriggered = out.FallbackReason != ""
	if err != nil {
		log.Errorf("orchestrator: %v", err)
		return schema.Answer{Text: retrievalFailureText, Confidence: schema.ConfidenceError, Category: intent.Category}, err
	}

	report := o.Quality.Filter(ctx, out.Documents)
	for reason, n := range report.Rejected {
		for i := 0; i < n; i++ {
			rm.AddRejected(string(reason))
		}
	}
	if len(report.Kept) == 0 {
		return o.noDocuments(ctx, q, intent, rm), nil
	}

	fc := o.Formatter.Format(ctx, report.Kept, q.RawText, intent.Category)
	rm.ContextDocs = len(fc.Entries)
	rm.ContextChars = fc.TotalChars
	if len(fc.Entries) == 0 {
		return o.noDocuments(ctx, q, intent, rm), nil
	}

	pair := o.Prompt.Build(intent.Category, q.RawText, fc, q.History)
	rm.PromptTrimmed = pair.Truncated
	if pair.Entries < len(fc.Entries) {
		fc.Entries = fc.Entries[:pair.Entries]
		rm.ContextDocs = pair.Entries
	}
	if len(fc.Entries) == 0 {
		return o.noDocuments(ctx, q, intent, rm), nil
	}
	text, err := o.synthesize(ctx, pair, rm)
	if err != nil {
		return o.synthesisFailed(ctx, intent, err), err
	}
	n := len(fc.Entries)
	return schema.Answer{
		Text:                Postprocess(text, n),
		Sources:             fc.Sources(),
		Confidence:          confidenceFor(intent.Confidence, n, false),
		DocumentsConsidered: n,
		Category:            intent.Category,
	}, nil
}

// understand runs the router and classifier, then applies the caller's
// explicit constraints.
func (o *Orchestrator) understand(ctx context.Context, nq schema.NormalizedQuery, q schema.Query) schema.ClassifiedIntent {
	in := o.Knowledge.Interpret(nq.Original)
	out := o.Classifier.Classify(ctx, nq)
	intent := o.Classifier.Strategy(nq, out, in)

	if p := strings.TrimSpace(q.ProjectFilter); p != "" {
		if o.Knowledge.IsProjectNumber(p) {
			ref := &schema.ProjectRef{ID: p, YearCode: p[:3]}
			if y, ok := o.Knowledge.CodeToYear(ref.YearCode); ok {
				ref.Year = strconv.Itoa(y)
			}
			intent.ProjectRef = ref
			intent.NeedsRetrieval = true
			intent.Reasoning += " filter=project:" + p
		} else {
			logger.FromContext(ctx).Warnf("orchestrator: ignoring invalid project filter %q", p)
		}
	}
	if ns := strings.TrimSpace(q.NamespaceFilter); ns != "" {
		intent.TargetNamespaces = []string{ns}
		intent.NeedsRetrieval = true
		intent.Reasoning += " filter=namespace:" + ns
	}
	return intent
}

func (o *Orchestrator) synthesize(ctx context.Context, pair schema.PromptPair, rm *metrics.RequestMetrics) (string, error) {
	start := time.Now()
	defer func() {
		rm.SynthesisLatencyMs = time.Since(start).Milliseconds()
		metrics.ObserveStage("synthesize", start)
	}()

	messages := make([]llm.Message, 0, len(pair.PriorTurns)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: pair.SystemInstructions})
	for _, t := range pair.PriorTurns {
		messages = append(messages, llm.Message{Role: t.Role, Content: t.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: pair.UserMessage})

	cctx, cancel := context.WithTimeout(ctx, o.SynthesisTimeout)
	defer cancel()
	text, err := o.LLM.Chat(cctx, messages)
	if err == nil && strings.TrimSpace(text) == "" {
		err = llm.ErrEmptyCompletion
	}
	metrics.IncLLMCall("synthesize", err)
	if err != nil {
		return "", schema.NewStageError("synthesize", schema.ErrSynthesisFailure, err)
	}
	return text, nil
}

func (o *Orchestrator) synthesisFailed(ctx context.Context, intent schema.ClassifiedIntent, err error) schema.Answer {
	logger.FromContext(ctx).Errorf("orchestrator: %v", err)
	return schema.Answer{Text: synthesisFailureText, Confidence: schema.ConfidenceError, Category: intent.Category}
}

// noDocuments answers honestly that nothing matched. The model only adds
// category guidance; when it fails, static guidance is used instead.
func (o *Orchestrator) noDocuments(ctx context.Context, q schema.Query, intent schema.ClassifiedIntent, rm *metrics.RequestMetrics) schema.Answer {
	metrics.IncFallback("no_documents")
	log := logger.FromContext(ctx)
	log.Infof("orchestrator: no documents survived filtering for category %s", intent.Category)

	guidance := guidanceFor(intent.Category)
	pair := o.Prompt.BuildGeneral(intent.Category, q.RawText, q.History, true)
	if text, err := o.synthesize(ctx, pair, rm); err != nil {
		log.Warnf("orchestrator: no-documents guidance unavailable, using static text: %v", err)
	} else {
		guidance = Postprocess(text, 0)
	}
	return schema.Answer{
		Text:       noDocumentsLine(intent.Category) + "\n\n" + guidance,
		Confidence: confidenceFor(intent.Confidence, 0, false),
		Category:   intent.Category,
	}
}

// confidenceFor applies the fixed answer confidence rule.
func confidenceFor(categoryConfidence float64, documents int, retrievalSkipped bool) schema.Confidence {
	switch {
	case categoryConfidence > 0.8 && documents >= 3:
		return schema.ConfidenceHigh
	case categoryConfidence > 0.6 && documents >= 1:
		return schema.ConfidenceMedium
	case documents == 0 && retrievalSkipped:
		return schema.ConfidenceGeneralKnowledge
	}
	return schema.ConfidenceLow
}
