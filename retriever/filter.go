package retriever

import (
	"fmt"
	"strings"

	"github.com/dtce-ai/dtce-rag/config"
	"github.com/dtce-ai/dtce-rag/namespace"
	"github.com/dtce-ai/dtce-rag/schema"
)

// FilterLevel is how much of a filter survives simplification.
type FilterLevel int

const (
	LevelFull FilterLevel = iota
	LevelNoNameExclusions
	LevelNoExclusions
	LevelNoNamespaces
	LevelNone
)

func (l FilterLevel) String() string {
	switch l {
	case LevelFull:
		return "full"
	case LevelNoNameExclusions:
		return "no_name_exclusions"
	case LevelNoExclusions:
		return "no_exclusions"
	case LevelNoNamespaces:
		return "no_namespaces"
	default:
		return "none"
	}
}

// Filter is the AND of global exclusions, namespace membership and an
// optional project constraint. Filters are immutable; Simplify returns a copy.
type Filter struct {
	Exclusions []string
	Namespaces []string
	ProjectID  string
	Level      FilterLevel
}

// NewFilter builds a full-level filter.
func NewFilter(exclusions, namespaces []string, projectID string) *Filter {
	return &Filter{
		Exclusions: append([]string(nil), exclusions...),
		Namespaces: append([]string(nil), namespaces...),
		ProjectID:  projectID,
	}
}

// Simplify drops the next most complex clause group. It returns false once
// nothing is left to drop.
func (f *Filter) Simplify() (*Filter, bool) {
	if f == nil || f.Level >= LevelNone {
		return f, false
	}
	next := *f
	next.Level++
	return &next, true
}

func (f *Filter) nameExclusions() bool {
	return f.Level < LevelNoNameExclusions && len(f.Exclusions) > 0
}

func (f *Filter) pathExclusions() bool {
	return f.Level < LevelNoExclusions && len(f.Exclusions) > 0
}

func (f *Filter) namespaces() bool {
	return f.Level < LevelNoNamespaces && len(f.Namespaces) > 0
}

func (f *Filter) project() bool {
	return f.Level < LevelNone && f.ProjectID != ""
}

// OData renders the filter for an Azure Cognitive Search compatible index.
// An empty string means no filter.
func (f *Filter) OData(fields config.IndexConfig) string {
	if f == nil {
		return ""
	}
	folder := fields.RawField(config.FieldNamespace)
	name := fields.RawField(config.FieldDisplayName)

	var clauses []string
	if f.pathExclusions() {
		for _, m := range f.Exclusions {
			clauses = append(clauses, fmt.Sprintf("not search.ismatch('*%s*', '%s')", odataEscape(m), folder))
		}
	}
	if f.nameExclusions() {
		for _, m := range f.Exclusions {
			clauses = append(clauses, fmt.Sprintf("not search.ismatch('*%s*', '%s')", odataEscape(m), name))
		}
	}
	if f.namespaces() {
		ors := make([]string, 0, len(f.Namespaces))
		for _, ns := range f.Namespaces {
			ors = append(ors, fmt.Sprintf("search.ismatch('*%s*', '%s')", odataEscape(ns), folder))
		}
		clauses = append(clauses, "("+strings.Join(ors, " or ")+")")
	}
	if f.project() {
		clauses = append(clauses, fmt.Sprintf("search.ismatch('%s*', '%s')", odataEscape(f.ProjectID), fields.RawField(config.FieldProject)))
	}
	return strings.Join(clauses, " and ")
}

// Matches evaluates the filter locally against a document.
func (f *Filter) Matches(doc schema.RetrievedDocument) bool {
	if f == nil {
		return true
	}
	if f.pathExclusions() && namespace.MatchesAny(f.Exclusions, doc.NamespacePath) {
		return false
	}
	if f.nameExclusions() && namespace.MatchesAny(f.Exclusions, doc.DisplayName) {
		return false
	}
	if f.namespaces() && !namespace.MatchesAny(lowerAll(f.Namespaces), doc.NamespacePath) {
		return false
	}
	if f.project() && !strings.Contains(doc.Locator, f.ProjectID) && !strings.HasPrefix(doc.Meta.ProjectName, f.ProjectID) {
		return false
	}
	return true
}

// dropped returns a full-level filter holding only the clauses that
// simplification removed from f, or nil when f is intact.
func (f *Filter) dropped() *Filter {
	if f == nil || f.Level == LevelFull {
		return nil
	}
	d := &Filter{}
	if f.Level >= LevelNoNameExclusions {
		d.Exclusions = f.Exclusions
	}
	if f.Level >= LevelNoNamespaces {
		d.Namespaces = f.Namespaces
	}
	if f.Level >= LevelNone {
		d.ProjectID = f.ProjectID
	}
	return d
}

// keep returns the documents that match f.
func (f *Filter) keep(docs []schema.RetrievedDocument) []schema.RetrievedDocument {
	out := docs[:0:0]
	for _, d := range docs {
		if f.Matches(d) {
			out = append(out, d)
		}
	}
	return out
}

func odataEscape(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
