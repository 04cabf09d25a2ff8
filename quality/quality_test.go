package quality

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dtce-ai/dtce-rag/config"
	"github.com/dtce-ai/dtce-rag/schema"
)

func doc(id, name, ns, body string) schema.RetrievedDocument {
	return schema.RetrievedDocument{
		ID:            id,
		DisplayName:   name,
		NamespacePath: ns,
		Locator:       "https://acct.blob.core.windows.net/suitefiles/" + ns + "/" + name,
		Body:          body,
	}
}

func TestStubDetectionIsExact(t *testing.T) {
	f := NewFilter(config.Default().Namespaces.Exclusions)

	stub := doc("1", "foo.pdf", "Policies", "Document: foo.pdf")
	v := f.Evaluate(stub)
	assert.False(t, v.Keep)
	assert.Equal(t, schema.RejectStub, v.Reason)

	// Same length, different text.
	short := doc("2", "foo.pdf", "Policies", "Staff get 5 leave")
	assert.Equal(t, len(stub.Body), len(short.Body))
	assert.True(t, f.Evaluate(short).Keep)

	long := doc("3", strings.Repeat("x", 60), "Policies", "Document: "+strings.Repeat("x", 60))
	assert.True(t, f.Evaluate(long).Keep)
}

func TestArchivalDetection(t *testing.T) {
	f := NewFilter(config.Default().Namespaces.Exclusions)
	tests := []struct {
		name string
		doc  schema.RetrievedDocument
		keep bool
	}{
		{"archive path", doc("1", "Wellness.pdf", "Policies/Archive", "Real wellness content for all staff members."), false},
		{"misspelled name", doc("2", "Wellness superceded.pdf", "Policies", "Real content"), false},
		{"upper case marker", doc("3", "OBSOLETE Leave.docx", "Policies", "Real content"), false},
		{"old version", doc("4", "Leave old version.docx", "Policies", "Real content"), false},
		{"current", doc("5", "Leave.docx", "Policies", "Real content"), true},
	}
	for _, tt := range tests {
		v := f.Evaluate(tt.doc)
		assert.Equal(t, tt.keep, v.Keep, tt.name)
		if !tt.keep {
			assert.Equal(t, schema.RejectArchived, v.Reason, tt.name)
		}
	}
}

func TestMalformedRejected(t *testing.T) {
	f := NewFilter(nil)
	assert.Equal(t, schema.RejectMalformed, f.Evaluate(schema.RetrievedDocument{DisplayName: "a.pdf", NamespacePath: "x"}).Reason)
	assert.Equal(t, schema.RejectMalformed, f.Evaluate(schema.RetrievedDocument{ID: "1", NamespacePath: "x"}).Reason)
	assert.Equal(t, schema.RejectMalformed, f.Evaluate(schema.RetrievedDocument{ID: "1", DisplayName: "a.pdf"}).Reason)
	assert.True(t, f.Evaluate(schema.RetrievedDocument{ID: "1", DisplayName: "a.pdf", Locator: "Projects/225001/a.pdf"}).Keep)
}

func TestFilterReport(t *testing.T) {
	f := NewFilter(nil)
	r := f.Filter(context.Background(), []schema.RetrievedDocument{
		doc("1", "Leave.docx", "Policies", "Annual leave accrues monthly."),
		doc("2", "foo.pdf", "Policies", "Document: foo.pdf"),
		doc("1", "Leave.docx", "Policies", "Annual leave accrues monthly."),
		doc("3", "Old.docx", "Policies/Archive", "Historic"),
		doc("4", "Wellness.pdf", "Policies", "Wellness days."),
	})

	ids := []string{}
	for _, d := range r.Kept {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"1", "4"}, ids)
	assert.Len(t, r.Verdicts, 5)
	assert.Equal(t, map[schema.RejectReason]int{
		schema.RejectStub:      1,
		schema.RejectDuplicate: 1,
		schema.RejectArchived:  1,
	}, r.Rejected)
}

func TestAllArchivedYieldsEmpty(t *testing.T) {
	f := NewFilter(nil)
	r := f.Filter(context.Background(), []schema.RetrievedDocument{
		doc("1", "A.pdf", "Projects/Archive/2019", "content"),
		doc("2", "B.pdf", "Archive", "content"),
	})
	assert.Empty(t, r.Kept)
	assert.Equal(t, 2, r.Rejected[schema.RejectArchived])
}
