// Package normalizer turns a raw question into a NormalizedQuery: cleaned and
// acronym-expanded search text, technical terms, an optional project reference
// and, best effort, alternative phrasings from the language model.
package normalizer

import (
	"context"
	"regexp"
	"sort"
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

var (
	followUpClause = regexp.MustCompile(`\s+and\s+(what|how)\s+(does|do|is|are|did)\s+(it|they|this|that|these)\s+(say|says|include|includes|cover|covers|mean|means|contain|contains|involve|involves|state|states|work)\b.*$`)
	scaffolding    = regexp.MustCompile(`^(what's|whats|what is|what are|what does|how do i|how do we|how can i|how can we|how should i|how to|tell me about|show me|can you|could you|would you|please|where is|where are|where can i find|where do i find|i need|i want|give me|find me|find|do we have|is there)\b\s*`)
	possessive     = regexp.MustCompile(`\b(our|my|your|their|the)\b`)
	unsafeChars    = regexp.MustCompile(`[^a-z0-9&/.\-\s]+`)
	spaces         = regexp.MustCompile(`\s+`)

	explicitProject = regexp.MustCompile(`\b(?:project|job|proj)\s*(?:no\.?|number|#)?\s*(\d{3,6})\b`)
	prefixedProject = regexp.MustCompile(`\bp-(\d{3,6})\b`)
	bareNumber      = regexp.MustCompile(`\b(\d{6})\b`)
	// "what is 225", the only phrasing where a bare year code names a project.
	askedCode       = regexp.MustCompile(`^\s*(?:what(?:'s| is| was| about)|tell me about)\s+(\d{3})\s*\??\s*$`)
)

// Normalizer is safe for concurrent use.
type Normalizer struct {
	acronyms     map[string]string
	typos        map[string]string
	vocabulary   map[string]bool
	knowledge    *namespace.Knowledge
	provider     llm.Provider
	cache        cache.Cache
	phrasings    bool
	maxPhrasings int
	timeout      time.Duration
	cacheTTL     time.Duration
}

// New builds a normalizer. provider and c may be nil.
func New(cfg config.NormalizerConfig, k *namespace.Knowledge, provider llm.Provider, c cache.Cache) *Normalizer {
	n := &Normalizer{
		acronyms:     lowerMap(cfg.Acronyms),
		typos:        lowerMap(cfg.Typos),
		vocabulary:   make(map[string]bool, len(cfg.DomainVocabulary)),
		knowledge:    k,
		provider:     provider,
		cache:        c,
		phrasings:    cfg.EnablePhrasings && provider != nil,
		maxPhrasings: cfg.MaxPhrasings,
		timeout:      cfg.Timeout(),
		cacheTTL:     time.Hour,
	}
	for _, w := range cfg.DomainVocabulary {
		n.vocabulary[strings.ToLower(w)] = true
	}
	if n.maxPhrasings <= 0 || n.maxPhrasings > 5 {
		n.maxPhrasings = 5
	}
	return n
}

func lowerMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[strings.ToLower(k)] = strings.ToLower(v)
	}
	return out
}

// Normalize never fails. Phrasing generation errors only leave
// AlternativePhrasings empty.
func (n *Normalizer) Normalize(ctx context.Context, raw string) schema.NormalizedQuery {
	start := time.Now()
	defer metrics.ObserveStage("normalize", start)

	nq := n.Deterministic(raw)
	if n.phrasings && nq.CleanedText != "" {
		alts, err := n.alternativePhrasings(ctx, nq)
		if err != nil {
			logger.FromContext(ctx).Warnf("normalizer: %v: %v", schema.ErrNormalizationDegraded, err)
		} else {
			nq.AlternativePhrasings = alts
		}
	}
	logger.FromContext(ctx).Infof("normalize: cleaned=%q terms=%v project=%v phrasings=%d",
		nq.CleanedText, nq.TechnicalTerms, nq.ProjectRef != nil, len(nq.AlternativePhrasings))
	return nq
}

// Deterministic runs every normalization step except the language-model call.
func (n *Normalizer) Deterministic(raw string) schema.NormalizedQuery {
	original := spaces.ReplaceAllString(strings.TrimSpace(raw), " ")
	nq := schema.NormalizedQuery{
		Original:             original,
		AlternativePhrasings: []string{},
	}
	if original == "" {
		nq.TechnicalTerms = []string{}
		return nq
	}

	lower := strings.ToLower(strings.NewReplacer("’", "'", "‘", "'").Replace(original))
	lower = n.fixTypos(lower)

	techTerms, spans := technicalTerms(lower)
	nq.ProjectRef = n.projectRef(lower, spans)

	nq.CleanedText = clean(lower)
	nq.ExpandedText = n.expand(nq.CleanedText)

	terms := map[string]bool{}
	for _, t := range techTerms {
		terms[t] = true
	}
	for _, w := range strings.Fields(nq.CleanedText) {
		w = strings.Trim(w, ".-/")
		if n.vocabulary[w] {
			terms[w] = true
		}
		if _, ok := n.acronyms[w]; ok {
			terms[w] = true
		}
	}
	nq.TechnicalTerms = make([]string, 0, len(terms))
	for t := range terms {
		nq.TechnicalTerms = append(nq.TechnicalTerms, t)
	}
	sort.Strings(nq.TechnicalTerms)
	return nq
}

func (n *Normalizer) fixTypos(lower string) string {
	if len(n.typos) == 0 {
		return lower
	}
	words := strings.Fields(lower)
	for i, w := range words {
		core := strings.Trim(w, "?!.,;:'\"()")
		if fix, ok := n.typos[core]; ok {
			words[i] = strings.Replace(w, core, fix, 1)
		}
	}
	return strings.Join(words, " ")
}

// clean strips question scaffolding, possessives, follow-up clauses and
// punctuation. If nothing is left, the punctuation-stripped text is kept.
func clean(lower string) string {
	text := strings.TrimRight(lower, "?!. ")
	text = followUpClause.ReplaceAllString(text, "")
	for {
		next := strings.TrimSpace(scaffolding.ReplaceAllString(text, ""))
		if next == text {
			break
		}
		text = next
	}
	text = possessive.ReplaceAllString(text, " ")
	text = strings.TrimSuffix(strings.TrimSpace(text), " please")
	text = tidy(text)
	if text == "" {
		return tidy(lower)
	}
	return text
}

func tidy(s string) string {
	s = unsafeChars.ReplaceAllString(s, " ")
	words := strings.Fields(s)
	out := words[:0]
	for _, w := range words {
		w = strings.Trim(w, ".-")
		if w != "" {
			out = append(out, w)
		}
	}
	return strings.Join(out, " ")
}

// expand appends each acronym's expansion after it.
func (n *Normalizer) expand(cleaned string) string {
	words := strings.Fields(cleaned)
	out := make([]string, 0, len(words))
	changed := false
	for _, w := range words {
		out = append(out, w)
		if exp, ok := n.acronyms[w]; ok {
			out = append(out, exp)
			changed = true
		}
	}
	if !changed {
		return cleaned
	}
	return strings.Join(out, " ")
}

// projectRef tries, in order: explicit "project/job N", "P-N", a question
// that is only "what is NNN", then a bare 6-digit token whose year-code
// prefix is valid. Other bare 3-digit numbers are quantities, not projects.
func (n *Normalizer) projectRef(lower string, skip []span) *schema.ProjectRef {
	if m := explicitProject.FindStringSubmatch(lower); m != nil {
		return n.ref(m[1])
	}
	if m := prefixedProject.FindStringSubmatch(lower); m != nil {
		return n.ref(m[1])
	}
	if m := askedCode.FindStringSubmatch(lower); m != nil && n.knowledge != nil {
		if _, ok := n.knowledge.CodeToYear(m[1]); ok {
			return n.ref(m[1])
		}
	}
	for _, m := range bareNumber.FindAllStringSubmatchIndex(lower, -1) {
		if inSpans(m[0], skip) {
			continue
		}
		id := lower[m[2]:m[3]]
		if n.knowledge == nil {
			continue
		}
		if _, ok := n.knowledge.CodeToYear(id[:3]); ok {
			return n.ref(id)
		}
	}
	return nil
}

func (n *Normalizer) ref(id string) *schema.ProjectRef {
	ref := &schema.ProjectRef{ID: id}
	if n.knowledge == nil || (len(id) != 3 && len(id) != 6) {
		return ref
	}
	if y, ok := n.knowledge.CodeToYear(id[:3]); ok {
		ref.YearCode = id[:3]
		ref.Year = strconv.Itoa(y)
	}
	return ref
}
