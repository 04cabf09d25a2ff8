package classifier

import (
	"context"
	"fmt"

	"github.com/dtce-ai/dtce-rag/cache"
	"github.com/dtce-ai/dtce-rag/llm"
	"github.com/dtce-ai/dtce-rag/metrics"
	"github.com/dtce-ai/dtce-rag/schema"
)

const classificationSystemPrompt = "You are a precise document classification system."

const classificationPrompt = `You classify questions asked to DTCE, a structural and civil engineering consultancy.

Classify the user query into ONE of these categories:

1. POLICY - company policies: health and safety, HR, IT, wellness, leave, code of conduct, employee handbook
   Examples: "what's our wellness policy", "health and safety procedures", "hr policy"
2. PROCEDURE - technical and admin procedures, H2H (How To Handbooks), best practice, workflows, templates and forms
   Examples: "how do I use the wind speed spreadsheet", "site visit template"
3. STANDARD - NZ engineering standards, building code clauses, design criteria, specifications
   Examples: "NZS 3604 bracing requirements", "NZBC B1 verification method"
4. PROJECT - past and current DTCE projects, jobs, sites, project reports and drawings
   Examples: "what is project 225001", "past residential projects in Wellington"
5. CLIENT - client details, contacts, councils, NZTA, developers, architects
   Examples: "contact details for the client on job 224015", "council projects"
6. GENERAL - general engineering or world knowledge not specific to DTCE documents
   Examples: "what is the capital of New Zealand", "explain moment of inertia"

User Query: %q

Respond with ONLY the category name and a confidence score between 0.0 and 1.0.
Format: CATEGORY|CONFIDENCE
Example: PROCEDURE|0.95`

func (c *Classifier) llmPhase(ctx context.Context, nq schema.NormalizedQuery) (Result, error) {
	key := cache.Key("classify", nq.CleanedText)
	if v, ok := cache.Lookup(ctx, c.cache, key); ok {
		if r, err := ParseLLMResponse(v); err == nil {
			return r, nil
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	resp, err := c.provider.Chat(callCtx, []llm.Message{
		{Role: llm.RoleSystem, Content: classificationSystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf(classificationPrompt, nq.Original)},
	})
	metrics.IncLLMCall("classify", err)
	if err != nil {
		return Result{}, err
	}
	r, err := ParseLLMResponse(resp)
	if err != nil {
		return Result{}, err
	}
	if c.cache != nil {
		c.cache.Set(ctx, key, fmt.Sprintf("%s|%.2f", r.Category, r.Confidence), 0)
	}
	return r, nil
}
