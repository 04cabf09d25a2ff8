package schema

import (
	"strings"
	"time"
)

// Category is the logical partition a question is routed to.
type Category string

const (
	CategoryPolicy    Category = "policy"
	CategoryProcedure Category = "procedure"
	CategoryStandard  Category = "standard"
	CategoryProject   Category = "project"
	CategoryClient    Category = "client"
	CategoryGeneral   Category = "general"
)

// Categories lists every category in tie-break order.
var Categories = []Category{
	CategoryPolicy,
	CategoryProcedure,
	CategoryStandard,
	CategoryProject,
	CategoryClient,
	CategoryGeneral,
}

// ParseCategory maps a free-form label onto a Category.
func ParseCategory(s string) (Category, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range Categories {
		if s == string(c) {
			return c, true
		}
	}
	return "", false
}

// Turn is one prior message of a conversation.
type Turn struct {
	Role    string `json:"role"` // user | assistant
	Content string `json:"content"`
}

// Query is the immutable per-request input.
type Query struct {
	RawText string
	History []Turn
	// Optional explicit constraints supplied by the caller.
	ProjectFilter   string
	NamespaceFilter string
}

// ProjectRef is a project reference extracted from free text.
type ProjectRef struct {
	ID       string `json:"id"`
	YearCode string `json:"year_code,omitempty"`
	Year     string `json:"year,omitempty"`
}

// IsFullNumber reports whether the ref is a complete 6-digit project number.
func (p *ProjectRef) IsFullNumber() bool {
	return p != nil && len(p.ID) == 6 && p.YearCode != ""
}

// NormalizedQuery is the output of the query normalizer.
type NormalizedQuery struct {
	Original             string      `json:"original"`
	CleanedText          string      `json:"cleaned_text"`
	ExpandedText         string      `json:"expanded_text"`
	TechnicalTerms       []string    `json:"technical_terms"` // sorted, distinct
	ProjectRef           *ProjectRef `json:"project_ref,omitempty"`
	AlternativePhrasings []string    `json:"alternative_phrasings"`
}

// SearchText returns the text used for index lookups.
func (n *NormalizedQuery) SearchText() string {
	if n.ExpandedText != "" {
		return n.ExpandedText
	}
	if n.CleanedText != "" {
		return n.CleanedText
	}
	return n.Original
}

// ClassifiedIntent is the classifier result and derived retrieval strategy.
// NeedsRetrieval == false implies TargetNamespaces is empty.
type ClassifiedIntent struct {
	Category         Category    `json:"category"`
	Confidence       float64     `json:"confidence"`
	NeedsRetrieval   bool        `json:"needs_retrieval"`
	TargetNamespaces []string    `json:"target_namespaces"`
	ProjectRef       *ProjectRef `json:"project_ref,omitempty"`
	Reasoning        string      `json:"reasoning"`
}

// DocumentMeta holds optional index metadata beyond the core fields.
type DocumentMeta struct {
	ProjectName string `json:"project_name,omitempty"`
}

// RetrievedDocument is a single index hit. Created per request, never persisted.
type RetrievedDocument struct {
	ID            string       `json:"id"`
	DisplayName   string       `json:"display_name"`
	Body          string       `json:"body"`
	Locator       string       `json:"locator"`
	NamespacePath string       `json:"namespace_path"`
	Score         float64      `json:"score"`
	Highlights    []string     `json:"highlights,omitempty"`
	ModifiedAt    time.Time    `json:"modified_at,omitempty"`
	Meta          DocumentMeta `json:"meta,omitempty"`
}

// RejectReason explains why the quality filter dropped a document.
type RejectReason string

const (
	RejectStub      RejectReason = "stub_content"
	RejectArchived  RejectReason = "archived"
	RejectDuplicate RejectReason = "duplicate"
	RejectMalformed RejectReason = "malformed"
)

// QualityVerdict is the per-document decision of the quality filter.
type QualityVerdict struct {
	DocumentID string       `json:"document_id"`
	Keep       bool         `json:"keep"`
	Reason     RejectReason `json:"reason,omitempty"`
}

// ProjectTag is project metadata derived from a document locator.
type ProjectTag struct {
	Number string `json:"number"`
	Year   string `json:"year,omitempty"`
}

func (p ProjectTag) String() string {
	if p.Year != "" {
		return "Project " + p.Number + " (" + p.Year + ")"
	}
	return "Project " + p.Number
}

// ContextEntry is one formatted document inside a FormattedContext.
type ContextEntry struct {
	Index       int         `json:"index"`
	DocumentID  string      `json:"document_id"`
	DisplayName string      `json:"display_name"`
	Namespace   string      `json:"namespace"`
	Locator     string      `json:"locator"` // resolved, human-readable
	Project     *ProjectTag `json:"project,omitempty"`
	Excerpt     string      `json:"excerpt"`
	Text        string      `json:"text"` // rendered entry
}

// FormattedContext is the bounded evidence block handed to the prompt builder.
type FormattedContext struct {
	Entries    []ContextEntry `json:"entries"`
	TotalChars int            `json:"total_chars"`
}

// Text renders all entries separated by blank lines.
func (f *FormattedContext) Text() string {
	if f == nil || len(f.Entries) == 0 {
		return ""
	}
	parts := make([]string, 0, len(f.Entries))
	for _, e := range f.Entries {
		parts = append(parts, e.Text)
	}
	return strings.Join(parts, ContextSeparator)
}

// Sources lists the entries as answer sources, in context order.
func (f *FormattedContext) Sources() []Source {
	if f == nil {
		return nil
	}
	out := make([]Source, 0, len(f.Entries))
	for _, e := range f.Entries {
		out = append(out, Source{DisplayName: e.DisplayName, Locator: e.Locator})
	}
	return out
}

// ContextSeparator joins rendered context entries.
const ContextSeparator = "\n\n"

// PromptPair is the bounded input for one completion call.
type PromptPair struct {
	SystemInstructions string `json:"system_instructions"`
	UserMessage        string `json:"user_message"`
	PriorTurns         []Turn `json:"prior_turns,omitempty"`
	Truncated          bool   `json:"truncated"`
	// Entries is how many context entries reached the user message, counting
	// an entry whose body was cut but whose header survived.
	Entries            int    `json:"entries"`
}

// Confidence is the coarse trust signal attached to an answer.
type Confidence string

const (
	ConfidenceHigh             Confidence = "high"
	ConfidenceMedium           Confidence = "medium"
	ConfidenceLow              Confidence = "low"
	ConfidenceGeneralKnowledge Confidence = "general_knowledge"
	ConfidenceError            Confidence = "error"
)

// Source is a citation entry of an Answer.
type Source struct {
	DisplayName string `json:"display_name"`
	Locator     string `json:"locator"`
}

// Answer is the only artifact returned by the pipeline.
type Answer struct {
	Text                string     `json:"text"`
	Sources             []Source   `json:"sources"`
	Confidence          Confidence `json:"confidence"`
	DocumentsConsidered int        `json:"documents_considered"`
	Category            Category   `json:"category"`
}
