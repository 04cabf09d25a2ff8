package normalizer

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/dtce-ai/dtce-rag/cache"
	"github.com/dtce-ai/dtce-rag/metrics"
	"github.com/dtce-ai/dtce-rag/schema"
)

const phrasingPrompt = `You generate search queries for an engineering consultancy's document library
(company policies, H2H how-to handbooks, technical procedures, NZ standards, project files, client records).

USER QUERY: %q

Write 3 to 5 alternative search queries that use the wording a formal document title or body would use.
Do not repeat the query itself. Respond with JSON only:
{"alternative_queries": ["...", "..."]}`

var listMarker = regexp.MustCompile(`^(?:[-*•]|\d+[.)])\s*`)

func (n *Normalizer) alternativePhrasings(ctx context.Context, nq schema.NormalizedQuery) ([]string, error) {
	key := cache.Key("phrasings", nq.CleanedText)
	if v, ok := cache.Lookup(ctx, n.cache, key); ok {
		var alts []string
		if err := json.Unmarshal([]byte(v), &alts); err == nil {
			return alts, nil
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	resp, err := n.provider.GenerateCompletion(callCtx, fmt.Sprintf(phrasingPrompt, nq.Original))
	metrics.IncLLMCall("phrasings", err)
	if err != nil {
		return nil, err
	}
	alts := parsePhrasings(resp, n.maxPhrasings, nq.Original, nq.CleanedText)
	if len(alts) == 0 {
		return nil, fmt.Errorf("no phrasings in response")
	}
	if n.cache != nil {
		if data, err := json.Marshal(alts); err == nil {
			n.cache.Set(ctx, key, string(data), n.cacheTTL)
		}
	}
	return alts, nil
}

// parsePhrasings accepts {"alternative_queries": [...]}, a bare JSON array or a
// plain list, one per line. Results are distinct (case-insensitive), exclude
// the given originals and are capped at max.
func parsePhrasings(resp string, max int, exclude ...string) []string {
	body := strings.TrimSpace(resp)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")
	body = strings.TrimSpace(body)

	var candidates []string
	switch {
	case gjson.Valid(body) && gjson.Get(body, "alternative_queries").IsArray():
		for _, v := range gjson.Get(body, "alternative_queries").Array() {
			candidates = append(candidates, v.String())
		}
	case gjson.Valid(body) && gjson.Parse(body).IsArray():
		for _, v := range gjson.Parse(body).Array() {
			candidates = append(candidates, v.String())
		}
	default:
		for _, line := range strings.Split(body, "\n") {
			line = strings.TrimSpace(line)
			line = listMarker.ReplaceAllString(line, "")
			line = strings.Trim(line, `"'`)
			if line != "" && !strings.HasPrefix(line, "{") && !strings.HasSuffix(line, ":") {
				candidates = append(candidates, line)
			}
		}
	}

	seen := map[string]bool{}
	for _, e := range exclude {
		seen[strings.ToLower(strings.TrimSpace(e))] = true
	}
	out := make([]string, 0, max)
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		key := strings.ToLower(c)
		if c == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
		if len(out) == max {
			break
		}
	}
	return out
}
