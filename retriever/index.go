// Package retriever runs targeted searches against the document index:
// semantic first, keyword as the terminal fallback.
package retriever

import (
	"context"
	"errors"

	"github.com/dtce-ai/dtce-rag/schema"
)

// Mode selects the index ranking.
type Mode string

const (
	ModeSemantic Mode = "semantic"
	ModeKeyword  Mode = "keyword"
)

// ErrFilterTooComplex is returned by an Index that rejects a filter
// expression as too large. The engine retries with a simpler filter.
var ErrFilterTooComplex = errors.New("filter expression too complex")

// SearchRequest is a single index call.
type SearchRequest struct {
	Text   string
	Top    int
	Mode   Mode
	Filter *Filter
}

// Index is the document index service. Implementations must be safe for
// concurrent use.
type Index interface {
	Type() string
	Search(ctx context.Context, req SearchRequest) ([]schema.RetrievedDocument, error)
}
