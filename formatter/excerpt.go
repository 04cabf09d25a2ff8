package formatter

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dtce-ai/dtce-rag/schema"
)

const ellipsis = "..."

var (
	sentencePattern = regexp.MustCompile(`.+?(?:[.!?](?:\s|$)|$)`)
	wordPattern     = regexp.MustCompile(`[a-z0-9][a-z0-9&/.-]*[a-z0-9]|[a-z0-9]`)

	// Bonus patterns per category.
	clausePattern      = regexp.MustCompile(`(?i)\b(clause|section|table|figure|cl\.)\s*\d|\b\d+(\.\d+)+\b|\b\d+(\.\d+)?\s?(mm|kpa|mpa|kn|m)\b|\d%`)
	requirementPattern = regexp.MustCompile(`(?i)\b(step\s*\d*|must|shall|should|required?|ensure|guideline|procedure|first|then|finally)\b`)
)

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "with": true, "what": true,
	"how": true, "our": true, "does": true, "this": true, "that": true, "from": true,
	"can": true, "you": true, "about": true, "have": true, "has": true, "was": true,
	"were": true, "which": true, "where": true, "when": true, "who": true, "say": true,
}

// queryTerms returns the distinct significant lowercase words of query.
func queryTerms(query string) []string {
	seen := map[string]bool{}
	var out []string
	for _, w := range wordPattern.FindAllString(strings.ToLower(query), -1) {
		if len(w) < 3 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

type sentence struct {
	pos   int
	text  string
	score int
}

func scoreSentence(s string, terms []string, category schema.Category) (base, bonus int) {
	lower := strings.ToLower(s)
	for _, t := range terms {
		if strings.Contains(lower, t) {
			base++
		}
	}
	switch category {
	case schema.CategoryStandard:
		if clausePattern.MatchString(s) {
			bonus = 1
		}
	case schema.CategoryProcedure:
		if requirementPattern.MatchString(s) {
			bonus = 1
		}
	}
	return base, bonus
}

// Excerpt fits body into budget bytes. Bodies over budget keep the highest
// scoring sentences in their original order; with no sentence matching a
// query term the body is cut to a prefix ending in "...".
func Excerpt(body, query string, category schema.Category, budget int) string {
	body = strings.Join(strings.Fields(body), " ")
	if budget <= 0 {
		return ""
	}
	if len(body) <= budget {
		return body
	}

	terms := queryTerms(query)
	var sentences []sentence
	matched := false
	for i, s := range sentencePattern.FindAllString(body, -1) {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		base, bonus := scoreSentence(s, terms, category)
		if base > 0 {
			matched = true
		}
		sentences = append(sentences, sentence{pos: i, text: s, score: base + bonus})
	}
	if !matched {
		return prefix(body, budget)
	}

	ranked := append([]sentence(nil), sentences...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	var picked []sentence
	used := 0
	for _, s := range ranked {
		if s.score == 0 {
			break
		}
		need := len(s.text)
		if len(picked) > 0 {
			need++
		}
		if used+need > budget {
			continue
		}
		picked = append(picked, s)
		used += need
	}
	if len(picked) == 0 {
		return prefix(body, budget)
	}
	sort.Slice(picked, func(i, j int) bool { return picked[i].pos < picked[j].pos })
	parts := make([]string, 0, len(picked))
	for _, s := range picked {
		parts = append(parts, s.text)
	}
	return strings.Join(parts, " ")
}

// prefix cuts s to at most budget bytes on a rune boundary, ellipsis included.
func prefix(s string, budget int) string {
	if len(s) <= budget {
		return s
	}
	if budget <= len(ellipsis) {
		return ellipsis[:budget]
	}
	cut := budget - len(ellipsis)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return strings.TrimRight(s[:cut], " ") + ellipsis
}
