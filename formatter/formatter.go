// Package formatter renders the filtered documents into the bounded
// evidence block the prompt builder consumes.
package formatter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dtce-ai/dtce-rag/common/logger"
	"github.com/dtce-ai/dtce-rag/config"
	"github.com/dtce-ai/dtce-rag/metrics"
	"github.com/dtce-ai/dtce-rag/namespace"
	"github.com/dtce-ai/dtce-rag/schema"
)

var defaultMaxDocuments = map[schema.Category]int{
	schema.CategoryPolicy:    5,
	schema.CategoryProcedure: 6,
	schema.CategoryStandard:  6,
	schema.CategoryProject:   8,
	schema.CategoryClient:    8,
	schema.CategoryGeneral:   10,
}

// Formatter is immutable and safe for concurrent use.
type Formatter struct {
	totalChars   int
	perDocChars  int
	maxDocuments map[schema.Category]int
	resolver     *LocatorResolver
	knowledge    *namespace.Knowledge
}

// New builds a formatter. k supplies the project year-code range.
func New(cfg config.FormatterConfig, k *namespace.Knowledge) *Formatter {
	f := &Formatter{
		totalChars:   cfg.TotalChars,
		perDocChars:  cfg.PerDocumentChars,
		maxDocuments: map[schema.Category]int{},
		resolver:     NewLocatorResolver(cfg.SuiteFiles),
		knowledge:    k,
	}
	if f.totalChars <= 0 {
		f.totalChars = 8000
	}
	if f.perDocChars <= 0 || f.perDocChars > f.totalChars {
		f.perDocChars = f.totalChars
	}
	for c, n := range defaultMaxDocuments {
		f.maxDocuments[c] = n
	}
	for name, n := range cfg.MaxDocuments {
		if c, ok := schema.ParseCategory(name); ok && n > 0 {
			f.maxDocuments[c] = n
		}
	}
	return f
}

// Format renders docs in priority order until the category cap or the
// total budget is reached. Entries are numbered from 1.
func (f *Formatter) Format(ctx context.Context, docs []schema.RetrievedDocument, query string, category schema.Category) schema.FormattedContext {
	start := time.Now()
	defer metrics.ObserveStage("format", start)

	out := schema.FormattedContext{Entries: []schema.ContextEntry{}}
	limit := f.maxDocuments[category]
	if limit <= 0 {
		limit = defaultMaxDocuments[schema.CategoryGeneral]
	}
	for _, d := range docs {
		if len(out.Entries) == limit {
			break
		}
		entry, ok := f.entry(len(out.Entries)+1, d, query, category)
		if !ok {
			continue
		}
		size := len(entry.Text)
		if len(out.Entries) > 0 {
			size += len(schema.ContextSeparator)
		}
		if out.TotalChars+size > f.totalChars {
			break
		}
		out.Entries = append(out.Entries, entry)
		out.TotalChars += size
	}
	logger.FromContext(ctx).Infof("format: %d of %d documents, %d chars, category=%s", len(out.Entries), len(docs), out.TotalChars, category)
	return out
}

func (f *Formatter) entry(n int, d schema.RetrievedDocument, query string, category schema.Category) (schema.ContextEntry, bool) {
	e := schema.ContextEntry{
		Index:       n,
		DocumentID:  d.ID,
		DisplayName: d.DisplayName,
		Namespace:   d.NamespacePath,
		Locator:     f.resolver.Resolve(d),
	}
	if category == schema.CategoryProject {
		e.Project = ProjectTag(d.Locator, f.knowledge)
	}

	var header strings.Builder
	fmt.Fprintf(&header, "[Document %d] %s\n", n, d.DisplayName)
	if d.NamespacePath != "" {
		fmt.Fprintf(&header, "Folder: %s\n", d.NamespacePath)
	}
	if e.Project != nil {
		fmt.Fprintf(&header, "Project: %s\n", e.Project)
	}
	fmt.Fprintf(&header, "Link: %s\n", e.Locator)

	budget := f.perDocChars - header.Len()
	if budget <= len(ellipsis) {
		return e, false
	}
	body := d.Body
	if strings.TrimSpace(body) == "" && len(d.Highlights) > 0 {
		body = strings.Join(d.Highlights, " ")
	}
	e.Excerpt = Excerpt(body, query, category, budget)
	e.Text = header.String() + e.Excerpt
	return e, true
}
