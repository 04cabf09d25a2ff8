// Package quality drops retrieved documents that must never reach the
// prompt: ingestion stubs, archived or superseded material, duplicates and
// records missing the fields the other predicates need.
package quality

import (
	"context"
	"strings"

	"github.com/dtce-ai/dtce-rag/common/logger"
	"github.com/dtce-ai/dtce-rag/namespace"
	"github.com/dtce-ai/dtce-rag/schema"
)

// StubMaxLen is the body length under which a placeholder body is a stub.
const StubMaxLen = 50

const stubPrefix = "Document: "

// DefaultMarkers are the archival markers used when none are configured.
var DefaultMarkers = []string{"archive", "superseded", "superceded", "obsolete", "old-version", "old version", "trash"}

// Filter is immutable and safe for concurrent use.
type Filter struct {
	markers []string
}

// NewFilter builds a filter over case-insensitive archival markers.
func NewFilter(markers []string) *Filter {
	if len(markers) == 0 {
		markers = DefaultMarkers
	}
	f := &Filter{}
	for _, m := range markers {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			f.markers = append(f.markers, m)
		}
	}
	return f
}

// IsStub reports whether doc carries only the ingestion-time placeholder
// "Document: <display name>". Genuinely short bodies are not stubs.
func IsStub(doc schema.RetrievedDocument) bool {
	body := strings.TrimSpace(doc.Body)
	return len(body) < StubMaxLen && body == stubPrefix+strings.TrimSpace(doc.DisplayName)
}

// IsArchived reports whether the namespace path or display name carries an
// archival marker.
func (f *Filter) IsArchived(doc schema.RetrievedDocument) bool {
	return namespace.MatchesAny(f.markers, doc.NamespacePath, doc.DisplayName)
}

func malformed(doc schema.RetrievedDocument) bool {
	return strings.TrimSpace(doc.ID) == "" ||
		strings.TrimSpace(doc.DisplayName) == "" ||
		(strings.TrimSpace(doc.NamespacePath) == "" && strings.TrimSpace(doc.Locator) == "")
}

// Evaluate applies the predicates to a single document. It never fails;
// records the predicates cannot judge are rejected.
func (f *Filter) Evaluate(doc schema.RetrievedDocument) schema.QualityVerdict {
	v := schema.QualityVerdict{DocumentID: doc.ID}
	switch {
	case malformed(doc):
		v.Reason = schema.RejectMalformed
	case IsStub(doc):
		v.Reason = schema.RejectStub
	case f.IsArchived(doc):
		v.Reason = schema.RejectArchived
	default:
		v.Keep = true
	}
	return v
}

// Report is the outcome of filtering one result set.
type Report struct {
	Kept     []schema.RetrievedDocument
	Verdicts []schema.QualityVerdict
	Rejected map[schema.RejectReason]int
}

// Filter keeps documents passing every predicate, preserving input order.
// A repeated id is rejected as a duplicate.
func (f *Filter) Filter(ctx context.Context, docs []schema.RetrievedDocument) Report {
	log := logger.FromContext(ctx)
	r := Report{
		Kept:     make([]schema.RetrievedDocument, 0, len(docs)),
		Verdicts: make([]schema.QualityVerdict, 0, len(docs)),
		Rejected: map[schema.RejectReason]int{},
	}
	seen := map[string]bool{}
	for _, d := range docs {
		v := f.Evaluate(d)
		if v.Keep && seen[d.ID] {
			v = schema.QualityVerdict{DocumentID: d.ID, Reason: schema.RejectDuplicate}
		}
		r.Verdicts = append(r.Verdicts, v)
		if !v.Keep {
			r.Rejected[v.Reason]++
			if v.Reason == schema.RejectMalformed {
				log.Debugf("quality: %v: document %q rejected", schema.ErrQualityAmbiguous, d.ID)
			}
			continue
		}
		seen[d.ID] = true
		r.Kept = append(r.Kept, d)
	}
	log.Infof("quality: kept %d of %d documents, rejected=%v", len(r.Kept), len(docs), r.Rejected)
	return r
}
