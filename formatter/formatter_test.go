package formatter

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtce-ai/dtce-rag/config"
	"github.com/dtce-ai/dtce-rag/namespace"
	"github.com/dtce-ai/dtce-rag/schema"
)

func newFormatter() *Formatter {
	cfg := config.Default()
	return New(cfg.Formatter, namespace.NewKnowledge(cfg.Namespaces))
}

func TestResolveLocator(t *testing.T) {
	r := NewLocatorResolver(config.Default().Formatter.SuiteFiles)
	tests := []struct {
		name string
		doc  schema.RetrievedDocument
		want string
	}{
		{
			name: "suitefiles blob",
			doc: schema.RetrievedDocument{
				Locator: "https://dtcestore.blob.core.windows.net/suitefiles/Projects/225/225001/Reports/Structural%20Report.pdf?sv=2020-08-04&sig=abc",
			},
			want: "https://dtce.sharepoint.com/sites/SuiteFiles/Projects/225/225001/Reports/Structural%20Report.pdf",
		},
		{
			name: "unknown container",
			doc: schema.RetrievedDocument{
				Locator:       "https://dtcestore.blob.core.windows.net/scratch/tmp/x.pdf?sig=abc",
				NamespacePath: "/Company/Policies/",
				DisplayName:   "x.pdf",
			},
			want: "Company/Policies/x.pdf",
		},
		{
			name: "not a url",
			doc:  schema.RetrievedDocument{Locator: "Policies/Leave.docx", DisplayName: "Leave.docx"},
			want: "Leave.docx",
		},
	}
	for _, tt := range tests {
		got := r.Resolve(tt.doc)
		assert.Equal(t, tt.want, got, tt.name)
		assert.NotContains(t, got, "blob.core.windows.net", tt.name)
		assert.NotContains(t, got, "sig=", tt.name)
	}
}

func TestProjectTag(t *testing.T) {
	k := namespace.NewKnowledge(config.Default().Namespaces)

	tag := ProjectTag("https://acct.blob.core.windows.net/suitefiles/Projects/225/225001/Reports/a.pdf", k)
	require.NotNil(t, tag)
	assert.Equal(t, "Project 225001 (2025)", tag.String())

	tag = ProjectTag("suitefiles/Project/219034/Drawings/b.pdf", k)
	require.NotNil(t, tag)
	assert.Equal(t, "219034", tag.Number)

	assert.Nil(t, ProjectTag("https://acct.blob.core.windows.net/suitefiles/Projects/Misc/report.pdf", k))
	assert.Nil(t, ProjectTag("suitefiles/Projects/225/226001/a.pdf", k))
	assert.Nil(t, ProjectTag("suitefiles/Engineering/225001/a.pdf", k))
	assert.Nil(t, ProjectTag("suitefiles/Projects/199001/a.pdf", k))
}

func TestFormatProjectScenario(t *testing.T) {
	f := newFormatter()
	tagged := schema.RetrievedDocument{
		ID:            "d1",
		DisplayName:   "Structural Report.pdf",
		NamespacePath: "Projects/225/225001",
		Locator:       "https://acct.blob.core.windows.net/suitefiles/Projects/225/225001/Structural%20Report.pdf?sig=x",
		Body:          "Foundation design for the Karori house.",
	}
	untagged := schema.RetrievedDocument{
		ID:            "d2",
		DisplayName:   "Notes.pdf",
		NamespacePath: "Projects/General",
		Locator:       "https://acct.blob.core.windows.net/suitefiles/Projects/General/Notes.pdf",
		Body:          "General notes.",
	}

	ctx := f.Format(context.Background(), []schema.RetrievedDocument{tagged, untagged}, "what is project 225", schema.CategoryProject)
	require.Len(t, ctx.Entries, 2)
	require.NotNil(t, ctx.Entries[0].Project)
	assert.Equal(t, "225001", ctx.Entries[0].Project.Number)
	assert.Contains(t, ctx.Entries[0].Text, "Project: Project 225001 (2025)")
	assert.True(t, strings.HasPrefix(ctx.Entries[0].Text, "[Document 1] Structural Report.pdf\n"))
	assert.Nil(t, ctx.Entries[1].Project)
	assert.NotContains(t, ctx.Entries[1].Text, "Project:")
	assert.Equal(t, 2, ctx.Entries[1].Index)

	// Tags are only derived for the project category.
	policy := f.Format(context.Background(), []schema.RetrievedDocument{tagged}, "report", schema.CategoryPolicy)
	assert.Nil(t, policy.Entries[0].Project)
}

func TestFormatBudgets(t *testing.T) {
	f := newFormatter()
	var docs []schema.RetrievedDocument
	for i := 0; i < 20; i++ {
		docs = append(docs, schema.RetrievedDocument{
			ID:            fmt.Sprintf("d%d", i),
			DisplayName:   fmt.Sprintf("Doc %d.pdf", i),
			NamespacePath: "Technical Library",
			Locator:       "Technical Library/doc.pdf",
			Body:          strings.Repeat("Wind loads act on the bracing lines. ", 60),
		})
	}

	ctx := f.Format(context.Background(), docs, "bracing wind loads", schema.CategoryGeneral)
	assert.LessOrEqual(t, ctx.TotalChars, 8000)
	assert.Equal(t, len(ctx.Text()), ctx.TotalChars)
	assert.NotEmpty(t, ctx.Entries)
	for _, e := range ctx.Entries {
		assert.LessOrEqual(t, len(e.Text), 3500)
	}

	policy := f.Format(context.Background(), docs, "bracing", schema.CategoryPolicy)
	assert.LessOrEqual(t, len(policy.Entries), 5)
}

func TestFormatPreservesOrderAndSources(t *testing.T) {
	f := newFormatter()
	docs := []schema.RetrievedDocument{
		{ID: "a", DisplayName: "A.pdf", NamespacePath: "Policies", Locator: "Policies/A.pdf", Body: "alpha"},
		{ID: "b", DisplayName: "B.pdf", NamespacePath: "Policies", Locator: "Policies/B.pdf", Body: "beta"},
	}
	ctx := f.Format(context.Background(), docs, "policy", schema.CategoryPolicy)
	sources := ctx.Sources()
	require.Len(t, sources, 2)
	assert.Equal(t, "A.pdf", sources[0].DisplayName)
	assert.Equal(t, "Policies/B.pdf", sources[1].Locator)
}

func TestExcerptSelectsSentences(t *testing.T) {
	body := "Intro text about nothing. Bracing must resist wind loads. Unrelated filler sentence here. Bracing requirements are in section 8."
	got := Excerpt(body, "bracing requirements", schema.CategoryGeneral, 100)
	assert.Equal(t, "Bracing must resist wind loads. Bracing requirements are in section 8.", got)
}

func TestExcerptPrefixFallback(t *testing.T) {
	body := strings.Repeat("Lorem ipsum dolor sit amet. ", 20)
	got := Excerpt(body, "seismic", schema.CategoryGeneral, 50)
	assert.LessOrEqual(t, len(got), 50)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.True(t, strings.HasPrefix(got, "Lorem ipsum"))
}

func TestExcerptShortBodyUnchanged(t *testing.T) {
	assert.Equal(t, "Short body text.", Excerpt("  Short   body\ntext. ", "anything", schema.CategoryPolicy, 100))
}

func TestExcerptCategoryBonus(t *testing.T) {
	body := "Timber bracing is common. Timber bracing to clause 8.3 applies. Other text fills the remaining space nicely."
	got := Excerpt(body, "timber bracing", schema.CategoryStandard, 40)
	assert.Equal(t, "Timber bracing to clause 8.3 applies.", got)
}
