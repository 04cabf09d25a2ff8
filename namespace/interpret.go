package namespace

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dtce-ai/dtce-rag/schema"
)

// Interpretation is the router's reading of a question.
type Interpretation struct {
	CategoryHint        schema.Category `json:"category_hint"`
	CandidateNamespaces []string        `json:"candidate_namespaces"`
	YearContext         []YearMapping   `json:"year_context,omitempty"`
	EnhancedTerms       []string        `json:"enhanced_terms,omitempty"`
	Rule                string          `json:"rule"`
}

type rule struct {
	name     string
	category schema.Category
	pattern  *regexp.Regexp
	template bool
}

// Rules in priority order; the first match wins.
var rules = []rule{
	{
		name:     "folder_listing",
		category: schema.CategoryGeneral,
		pattern:  regexp.MustCompile(`\b(what|which|list|show)\b.*\b(folders?|sub-?folders?|director(y|ies))\b|\bfolder structure\b`),
	},
	{
		name:     "past_project",
		category: schema.CategoryProject,
		pattern:  regexp.MustCompile(`\b(past|previous|similar|earlier) (projects?|jobs?)\b|\bhave we (done|worked on|designed|built)\b|\b(we|dtce) (did|have done|worked on)\b|\bcase stud(y|ies)\b`),
	},
	{
		name:     "policy",
		category: schema.CategoryPolicy,
		pattern:  regexp.MustCompile(`\bpolic(y|ies)\b|\bh&s\b|\bhealth (and|&) safety\b|\bwell(ness|being)\b|\bhr\b|\bhuman resources\b|\bcode of conduct\b|\bemployee handbook\b|\bharassment\b|\bdisciplinary\b|\b(annual|sick|parental) leave\b`),
	},
	{
		name:     "technical",
		category: schema.CategoryStandard,
		pattern:  regexp.MustCompile(`\b(as/)?nzs\b|\bstandards?\b|\bbuilding code\b|\bnzbc\b|\bdesign criteria\b|\bspecifications?\b|\bcode clause\b`),
	},
	{
		name:     "procedure",
		category: schema.CategoryProcedure,
		pattern:  regexp.MustCompile(`\bprocedures?\b|\bh2h\b|\bhow to handbook\b|\bhow (do|can|should) (i|we)\b|\bhow to\b|\bworkflow\b|\bprocess\b|\bguidelines?\b|\bbest practice\b|\bmethodology\b`),
	},
	{
		name:     "template",
		category: schema.CategoryProcedure,
		pattern:  regexp.MustCompile(`\btemplates?\b|\bforms?\b|\bproformas?\b`),
		template: true,
	},
	{
		name:     "project",
		category: schema.CategoryProject,
		pattern:  regexp.MustCompile(`\bprojects?\b|\bjobs?\b|\bsite\b|\bconstruction\b|\bbuilding consent\b|\bp-\d{3,6}\b`),
	},
}

var termPattern = regexp.MustCompile(`[a-z0-9&/]+`)

// Interpret applies the priority-ordered keyword rules to text. No match
// yields general with no namespace restriction.
func (k *Knowledge) Interpret(text string) Interpretation {
	lower := strings.ToLower(text)
	in := Interpretation{
		CategoryHint: schema.CategoryGeneral,
		YearContext:  k.ExtractYears(text),
		Rule:         "default",
	}
	for _, r := range rules {
		loc := r.pattern.FindStringIndex(lower)
		if loc == nil {
			continue
		}
		in.Rule = r.name
		in.CategoryHint = r.category
		in.CandidateNamespaces = k.Namespaces(r.category)
		if r.template {
			in.CandidateNamespaces = Merge(k.TemplateNamespaces(), in.CandidateNamespaces)
		}
		if r.name == "folder_listing" && len(in.YearContext) > 0 {
			in.CategoryHint = schema.CategoryProject
			in.CandidateNamespaces = k.Namespaces(schema.CategoryProject)
		}
		in.EnhancedTerms = append(in.EnhancedTerms, termPattern.FindAllString(lower[loc[0]:loc[1]], -1)...)
		break
	}
	for _, y := range in.YearContext {
		in.EnhancedTerms = append(in.EnhancedTerms, strconv.Itoa(y.Year), y.Code)
	}
	terms := map[string]bool{}
	for _, t := range in.EnhancedTerms {
		terms[t] = true
	}
	in.EnhancedTerms = sortedKeys(terms)
	return in
}
