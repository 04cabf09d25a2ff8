// Package classifier assigns a question to one corpus category with a
// confidence and derives the retrieval strategy.
package classifier

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dtce-ai/dtce-rag/cache"
	"github.com/dtce-ai/dtce-rag/common/logger"
	"github.com/dtce-ai/dtce-rag/config"
	"github.com/dtce-ai/dtce-rag/llm"
	"github.com/dtce-ai/dtce-rag/metrics"
	"github.com/dtce-ai/dtce-rag/namespace"
	"github.com/dtce-ai/dtce-rag/schema"
)

// Result is a (category, confidence) pair from one classification phase.
type Result struct {
	Category   schema.Category
	Confidence float64
}

// Outcome is the final classification with a diagnostic trail.
type Outcome struct {
	Result
	Reasoning string
}

// Classifier is safe for concurrent use.
type Classifier struct {
	knowledge *namespace.Knowledge
	provider  llm.Provider
	cache     cache.Cache
	threshold float64
	useLLM    bool
	timeout   time.Duration
}

// New builds a classifier. provider and c may be nil.
func New(cfg config.ClassifierConfig, k *namespace.Knowledge, provider llm.Provider, c cache.Cache) *Classifier {
	th := cfg.LLMThreshold
	if th <= 0 {
		th = 0.8
	}
	return &Classifier{
		knowledge: k,
		provider:  provider,
		cache:     c,
		threshold: th,
		useLLM:    cfg.EnableLLM && provider != nil,
		timeout:   cfg.Timeout(),
	}
}

// Classify runs the keyword phase, the LLM phase when the keyword phase is
// inconclusive, and then the rule-based overrides.
func (c *Classifier) Classify(ctx context.Context, nq schema.NormalizedQuery) Outcome {
	start := time.Now()
	defer metrics.ObserveStage("classify", start)

	text := classificationText(nq)
	kw := KeywordScore(text)
	trail := []string{fmt.Sprintf("keyword=%s(%.2f)", kw.Category, kw.Confidence)}

	res := kw
	if kw.Confidence < c.threshold && c.useLLM {
		ai, err := c.llmPhase(ctx, nq)
		switch {
		case err == nil:
			trail = append(trail, fmt.Sprintf("llm=%s(%.2f)", ai.Category, ai.Confidence))
			res = Combine(kw, ai)
		case kw.Confidence > 0:
			logger.FromContext(ctx).Warnf("classifier: llm phase failed, keeping keyword result: %v", err)
			trail = append(trail, "llm=failed")
		default:
			logger.FromContext(ctx).Warnf("classifier: %v: %v", schema.ErrClassificationFailure, err)
			trail = append(trail, "llm=failed", "default=project")
			res = Result{Category: schema.CategoryProject, Confidence: 0.5}
		}
	}

	res, overrides := c.applyOverrides(res, text, nq)
	trail = append(trail, overrides...)
	out := Outcome{Result: res, Reasoning: strings.Join(trail, " ")}
	logger.FromContext(ctx).Infof("classify: %s %.2f (%s)", out.Category, out.Confidence, out.Reasoning)
	return out
}

func classificationText(nq schema.NormalizedQuery) string {
	return strings.ToLower(nq.Original + " " + nq.ExpandedText)
}

// KeywordScore is the deterministic phase. No match yields general at 0.
// Ties keep the earlier category in schema.Categories order.
func KeywordScore(lowerText string) Result {
	best := Result{Category: schema.CategoryGeneral}
	for _, cat := range schema.Categories {
		score := 0.0
		for _, p := range keywordTable[cat] {
			if p.re.MatchString(lowerText) {
				score += p.weight
			}
		}
		score = round2(math.Min(score, 1))
		if score > best.Confidence {
			best = Result{Category: cat, Confidence: score}
		}
	}
	return best
}

// Combine merges the keyword and LLM phases.
func Combine(kw, ai Result) Result {
	if kw.Category == ai.Category && kw.Confidence > 0.3 && ai.Confidence > 0.3 {
		return Result{Category: kw.Category, Confidence: round2(math.Min((kw.Confidence+ai.Confidence)/2+0.2, 1))}
	}
	if ai.Confidence > kw.Confidence+0.3 {
		return ai
	}
	if kw.Confidence > ai.Confidence+0.3 {
		return kw
	}
	if ai.Confidence >= kw.Confidence {
		return ai
	}
	return kw
}

func (c *Classifier) applyOverrides(res Result, text string, nq schema.NormalizedQuery) (Result, []string) {
	var trail []string
	nudge := func(target schema.Category, why string) {
		switch {
		case res.Category == target:
			res.Confidence = round2(math.Min(res.Confidence+0.1, 1))
		case res.Confidence < 0.6:
			res = Result{Category: target, Confidence: 0.6}
		default:
			return
		}
		trail = append(trail, "nudge="+why)
	}
	if contactPhrasing.MatchString(text) {
		nudge(schema.CategoryClient, "contact")
	}
	if standardsPhrasing.MatchString(text) {
		nudge(schema.CategoryStandard, "standards_code")
	}
	if ref := nq.ProjectRef; ref != nil && ref.YearCode != "" {
		res = Result{
			Category:   schema.CategoryProject,
			Confidence: round2(math.Min(math.Max(res.Confidence, 0.5)+0.2, 1)),
		}
		trail = append(trail, "override=project_ref:"+ref.ID)
	}
	return res, trail
}

var llmAnswer = regexp.MustCompile(`(?i)\b(policy|policies|procedures?|standards?|projects?|clients?|general)\s*\|\s*([01](?:\.\d+)?)`)
var llmCategoryOnly = regexp.MustCompile(`(?i)\b(policy|policies|procedures?|standards?|projects?|clients?|general)\b`)

// ParseLLMResponse reads a CATEGORY|confidence answer. A bare category name
// is accepted with confidence 0.7.
func ParseLLMResponse(resp string) (Result, error) {
	if m := llmAnswer.FindStringSubmatch(resp); m != nil {
		conf, err := strconv.ParseFloat(m[2], 64)
		if err != nil || conf < 0 || conf > 1 {
			return Result{}, fmt.Errorf("confidence out of range in %q", resp)
		}
		return Result{Category: canonical(m[1]), Confidence: conf}, nil
	}
	if m := llmCategoryOnly.FindStringSubmatch(resp); m != nil {
		return Result{Category: canonical(m[1]), Confidence: 0.7}, nil
	}
	return Result{}, fmt.Errorf("unparseable classification %q", resp)
}

func canonical(label string) schema.Category {
	switch l := strings.ToLower(label); {
	case strings.HasPrefix(l, "polic"):
		return schema.CategoryPolicy
	case strings.HasPrefix(l, "procedure"):
		return schema.CategoryProcedure
	case strings.HasPrefix(l, "standard"):
		return schema.CategoryStandard
	case strings.HasPrefix(l, "project"):
		return schema.CategoryProject
	case strings.HasPrefix(l, "client"):
		return schema.CategoryClient
	default:
		return schema.CategoryGeneral
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
