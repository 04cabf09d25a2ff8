// Package prompt assembles the bounded system and user messages for the
// answer completion.
package prompt

import (
	"bytes"
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/dtce-ai/dtce-rag/common/logger"
	"github.com/dtce-ai/dtce-rag/config"
	"github.com/dtce-ai/dtce-rag/schema"
)

// TruncationMarker ends a user message whose context was cut to fit.
const TruncationMarker = "\n\n[Document context truncated to fit the prompt limit.]"

// Builder is immutable and safe for concurrent use.
type Builder struct {
	grounded     map[schema.Category]*template.Template
	general      *template.Template
	noDocuments  *template.Template
	counter      Counter
	budget       int
	firm         string
	maxHistory   int
	maxTurnChars int
}

// NewBuilder builds a prompt builder. A nil counter counts characters.
func NewBuilder(cfg config.PromptConfig, counter Counter) *Builder {
	if counter == nil {
		counter = CharCounter{}
	}
	grounded, general, none := parseTemplates()
	b := &Builder{
		grounded:     grounded,
		general:      general,
		noDocuments:  none,
		counter:      counter,
		budget:       cfg.Budget,
		firm:         cfg.FirmName,
		maxHistory:   cfg.MaxHistoryTurns,
		maxTurnChars: cfg.MaxTurnChars,
	}
	if b.firm == "" {
		b.firm = "DTCE"
	}
	if b.budget <= 0 {
		b.budget = 24000
	}
	return b
}

func (b *Builder) render(t *template.Template, category schema.Category) string {
	var buf bytes.Buffer
	if err := t.Execute(&buf, templateData{Firm: b.firm, Category: category}); err != nil {
		// Templates are static and parsed at construction.
		logger.Errorf("prompt: render %s: %v", t.Name(), err)
	}
	return buf.String()
}

// Build composes a grounded prompt. Only the user message is ever cut: the
// question stays verbatim, then as much context as fits, then TruncationMarker.
func (b *Builder) Build(category schema.Category, question string, fc schema.FormattedContext, history []schema.Turn) schema.PromptPair {
	t, ok := b.grounded[category]
	if !ok {
		t = b.grounded[schema.CategoryGeneral]
	}
	system := b.render(t, category)
	head := "Question: " + question + "\n\nDocuments:\n"
	context := fc.Text()

	pair := schema.PromptPair{
		SystemInstructions: system,
		UserMessage:        head + context,
		PriorTurns:         b.History(history),
		Entries:            len(fc.Entries),
	}
	if b.fits(system, pair.UserMessage) {
		return pair
	}

	pair.Truncated = true
	runes := []rune(context)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if b.fits(system, head+string(runes[:mid])+TruncationMarker) {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	lo, pair.Entries = cutAtHeader(fc, lo)
	pair.UserMessage = head + strings.TrimRight(string(runes[:lo]), "\n") + TruncationMarker
	logger.Warnf("prompt: context truncated to %d of %d chars (budget %d %s)", lo, len(runes), b.budget, b.counter.Unit())
	return pair
}

// cutAtHeader moves a cut that lands inside an entry's header line back to
// the start of that entry, and reports how many entries keep their header.
func cutAtHeader(fc schema.FormattedContext, cut int) (int, int) {
	start, kept := 0, 0
	for i, e := range fc.Entries {
		if i > 0 {
			start += utf8.RuneCountInString(schema.ContextSeparator)
		}
		header := e.Text
		if nl := strings.IndexByte(header, '\n'); nl >= 0 {
			header = header[:nl]
		}
		end := start + utf8.RuneCountInString(header)
		if cut < end {
			if cut > start {
				cut = start
			}
			return cut, kept
		}
		kept++
		start += utf8.RuneCountInString(e.Text)
	}
	return cut, kept
}

// BuildGeneral composes a prompt without document context: general
// knowledge when retrieval was skipped, or category guidance when no
// documents survived filtering.
func (b *Builder) BuildGeneral(category schema.Category, question string, history []schema.Turn, noDocuments bool) schema.PromptPair {
	t := b.general
	if noDocuments {
		t = b.noDocuments
	}
	return schema.PromptPair{
		SystemInstructions: b.render(t, category),
		UserMessage:        "Question: " + question,
		PriorTurns:         b.History(history),
	}
}

func (b *Builder) fits(system, user string) bool {
	return b.counter.Count(system)+b.counter.Count(user) <= b.budget
}

// History keeps the last maxHistory user/assistant turns, each cut to
// maxTurnChars.
func (b *Builder) History(history []schema.Turn) []schema.Turn {
	if b.maxHistory <= 0 || len(history) == 0 {
		return nil
	}
	var turns []schema.Turn
	for _, t := range history {
		role := strings.ToLower(strings.TrimSpace(t.Role))
		if (role != "user" && role != "assistant") || strings.TrimSpace(t.Content) == "" {
			continue
		}
		turns = append(turns, schema.Turn{Role: role, Content: clip(strings.TrimSpace(t.Content), b.maxTurnChars)})
	}
	if len(turns) > b.maxHistory {
		turns = turns[len(turns)-b.maxHistory:]
	}
	return turns
}

func clip(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
