// Package namespace holds the static corpus partitioning knowledge: which
// logical namespaces belong to each category, which markers exclude a document
// globally, and how calendar years map onto project-number year codes.
package namespace

import (
	"sort"
	"strings"

	"github.com/dtce-ai/dtce-rag/config"
	"github.com/dtce-ai/dtce-rag/schema"
)

// Knowledge is read-only after construction and safe for concurrent use.
type Knowledge struct {
	categories map[schema.Category][]string
	templates  []string
	exclusions []string
	firstYear  int
	lastYear   int
}

// NewKnowledge copies cfg into an immutable knowledge base.
func NewKnowledge(cfg config.NamespaceConfig) *Knowledge {
	k := &Knowledge{
		categories: make(map[schema.Category][]string, len(cfg.Categories)),
		templates:  append([]string(nil), cfg.Templates...),
		firstYear:  cfg.Years.First,
		lastYear:   cfg.Years.Last,
	}
	for name, ns := range cfg.Categories {
		if c, ok := schema.ParseCategory(name); ok {
			k.categories[c] = append([]string(nil), ns...)
		}
	}
	for _, m := range cfg.Exclusions {
		m = strings.ToLower(strings.TrimSpace(m))
		if m != "" {
			k.exclusions = append(k.exclusions, m)
		}
	}
	if k.firstYear == 0 && k.lastYear == 0 {
		k.firstYear, k.lastYear = 2015, 2027
	}
	return k
}

// Namespaces returns the namespaces of a category. General has none.
func (k *Knowledge) Namespaces(c schema.Category) []string {
	return append([]string(nil), k.categories[c]...)
}

// TemplateNamespaces returns the extra namespaces searched for template requests.
func (k *Knowledge) TemplateNamespaces() []string {
	return append([]string(nil), k.templates...)
}

// Exclusions returns the lowercased global exclusion markers.
func (k *Knowledge) Exclusions() []string {
	return append([]string(nil), k.exclusions...)
}

// MatchesAny reports whether any lowercased marker is a substring of any field.
func MatchesAny(markers []string, fields ...string) bool {
	for _, f := range fields {
		if f == "" {
			continue
		}
		lf := strings.ToLower(f)
		for _, m := range markers {
			if strings.Contains(lf, m) {
				return true
			}
		}
	}
	return false
}

// Merge unions namespace lists, keeping first-seen order and dropping
// case-insensitive duplicates.
func Merge(lists ...[]string) []string {
	seen := map[string]bool{}
	var out []string
	for _, l := range lists {
		for _, ns := range l {
			key := strings.ToLower(strings.TrimSpace(ns))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, ns)
		}
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
