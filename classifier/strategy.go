package classifier

import (
	"strings"

	"github.com/dtce-ai/dtce-rag/namespace"
	"github.com/dtce-ai/dtce-rag/schema"
)

// Strategy turns a classification and the router's interpretation into a
// ClassifiedIntent. Retrieval is skipped only for greetings and
// general-knowledge questions without firm-internal markers; general never
// restricts namespaces.
func (c *Classifier) Strategy(nq schema.NormalizedQuery, out Outcome, in namespace.Interpretation) schema.ClassifiedIntent {
	intent := schema.ClassifiedIntent{
		Category:         out.Category,
		Confidence:       out.Confidence,
		NeedsRetrieval:   true,
		TargetNamespaces: []string{},
		ProjectRef:       nq.ProjectRef,
		Reasoning:        out.Reasoning + " router=" + in.Rule,
	}
	if out.Category == schema.CategoryGeneral && !needsRetrieval(nq) {
		intent.NeedsRetrieval = false
		intent.Reasoning += " retrieval=skipped"
		return intent
	}
	if out.Category != schema.CategoryGeneral {
		var hinted []string
		if in.CategoryHint != schema.CategoryGeneral {
			hinted = in.CandidateNamespaces
		}
		intent.TargetNamespaces = namespace.Merge(c.knowledge.Namespaces(out.Category), hinted)
	}
	return intent
}

func needsRetrieval(nq schema.NormalizedQuery) bool {
	lower := strings.ToLower(strings.TrimSpace(nq.Original))
	if nq.ProjectRef != nil || internalMarker.MatchString(lower) {
		return true
	}
	return !(greeting.MatchString(lower) || generalKnowledge.MatchString(lower))
}
