package retriever

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/dtce-ai/dtce-rag/common/httpx"
	"github.com/dtce-ai/dtce-rag/config"
	"github.com/dtce-ai/dtce-rag/schema"
)

// AzureSearchIndex queries an Azure Cognitive Search compatible index.
// Endpoint example: https://dtce-search.search.windows.net
type AzureSearchIndex struct {
	Endpoint       string
	Index          string
	APIKey         string
	APIVersion     string
	SemanticConfig string
	Fields         config.IndexConfig
	Client         *httpx.Client
	tooComplex     []string
}

// NewAzureSearchIndex builds the index binding with its own breaker-guarded client.
func NewAzureSearchIndex(cfg config.IndexConfig, httpCfg *config.HTTPClientConfig) *AzureSearchIndex {
	markers := make([]string, 0, len(cfg.FilterTooComplexMsg))
	for _, m := range cfg.FilterTooComplexMsg {
		markers = append(markers, strings.ToLower(m))
	}
	version := cfg.APIVersion
	if version == "" {
		version = "2023-11-01"
	}
	return &AzureSearchIndex{
		Endpoint:       cfg.Endpoint,
		Index:          cfg.Index,
		APIKey:         cfg.APIKey,
		APIVersion:     version,
		SemanticConfig: cfg.SemanticConfig,
		Fields:         cfg,
		Client:         httpx.NewFromConfig("index", httpCfg),
		tooComplex:     markers,
	}
}

func (a *AzureSearchIndex) Type() string { return "azure" }

type azureSearchRequest struct {
	Search                string `json:"search"`
	Top                   int    `json:"top"`
	Select                string `json:"select,omitempty"`
	Filter                string `json:"filter,omitempty"`
	Highlight             string `json:"highlight,omitempty"`
	HighlightPreTag       string `json:"highlightPreTag,omitempty"`
	HighlightPostTag      string `json:"highlightPostTag,omitempty"`
	QueryType             string `json:"queryType"`
	SearchMode            string `json:"searchMode,omitempty"`
	SemanticConfiguration string `json:"semanticConfiguration,omitempty"`
	Captions              string `json:"captions,omitempty"`
}

func (a *AzureSearchIndex) requestBody(req SearchRequest) azureSearchRequest {
	content := a.Fields.RawField(config.FieldBody)
	fields := []string{
		a.Fields.RawField(config.FieldID),
		a.Fields.RawField(config.FieldDisplayName),
		content,
		a.Fields.RawField(config.FieldLocator),
		a.Fields.RawField(config.FieldNamespace),
		a.Fields.RawField(config.FieldProject),
		a.Fields.RawField(config.FieldModified),
	}
	body := azureSearchRequest{
		Search:           req.Text,
		Top:              req.Top,
		Select:           strings.Join(fields, ","),
		Filter:           req.Filter.OData(a.Fields),
		Highlight:        content,
		HighlightPreTag:  " ",
		HighlightPostTag: " ",
	}
	if req.Mode == ModeSemantic {
		body.QueryType = "semantic"
		body.SemanticConfiguration = a.SemanticConfig
		body.Captions = "extractive"
	} else {
		body.QueryType = "simple"
		body.SearchMode = "any"
	}
	return body
}

// Search posts one query to {endpoint}/indexes/{index}/docs/search.
func (a *AzureSearchIndex) Search(ctx context.Context, req SearchRequest) ([]schema.RetrievedDocument, error) {
	if a.Endpoint == "" || a.Index == "" {
		return nil, fmt.Errorf("azure index endpoint not configured")
	}
	if a.Client == nil {
		return nil, fmt.Errorf("azure http client not configured")
	}
	if req.Top <= 0 {
		req.Top = 20
	}
	bs, err := json.Marshal(a.requestBody(req))
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(a.Endpoint)
	if err != nil {
		return nil, err
	}
	u.Path = path.Join(u.Path, "indexes", a.Index, "docs", "search")
	u.RawQuery = url.Values{"api-version": {a.APIVersion}}.Encode()

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(bs))
	if err != nil {
		return nil, err
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("api-key", a.APIKey)

	resp, err := a.Client.Do(hreq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gjson.GetBytes(payload, "error.message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(payload))
		}
		if resp.StatusCode == http.StatusBadRequest && a.isTooComplex(msg) {
			return nil, fmt.Errorf("%w: %s", ErrFilterTooComplex, msg)
		}
		return nil, fmt.Errorf("index http status %d: %s", resp.StatusCode, msg)
	}
	if !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("index returned invalid json")
	}
	return a.parseHits(gjson.GetBytes(payload, "value")), nil
}

func (a *AzureSearchIndex) isTooComplex(msg string) bool {
	lower := strings.ToLower(msg)
	if !strings.Contains(lower, "filter") && !strings.Contains(lower, "clause") {
		return false
	}
	for _, m := range a.tooComplex {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func (a *AzureSearchIndex) parseHits(value gjson.Result) []schema.RetrievedDocument {
	content := a.Fields.RawField(config.FieldBody)
	out := make([]schema.RetrievedDocument, 0, len(value.Array()))
	for _, hit := range value.Array() {
		// Keys such as "@search.score" cannot be addressed with a gjson path.
		fields := map[string]gjson.Result{}
		hit.ForEach(func(k, v gjson.Result) bool {
			fields[k.String()] = v
			return true
		})
		get := func(standard string) string {
			return fields[a.Fields.RawField(standard)].String()
		}
		doc := schema.RetrievedDocument{
			ID:            get(config.FieldID),
			DisplayName:   get(config.FieldDisplayName),
			Body:          get(config.FieldBody),
			Locator:       get(config.FieldLocator),
			NamespacePath: get(config.FieldNamespace),
			Score:         fields["@search.score"].Float(),
			Meta:          schema.DocumentMeta{ProjectName: get(config.FieldProject)},
		}
		if r, ok := fields["@search.rerankerScore"]; ok && r.Type == gjson.Number {
			doc.Score = r.Float()
		}
		if ts := get(config.FieldModified); ts != "" {
			if t, err := time.Parse(time.RFC3339, ts); err == nil {
				doc.ModifiedAt = t
			}
		}
		if hl, ok := fields["@search.highlights"]; ok {
			hl.ForEach(func(k, v gjson.Result) bool {
				if k.String() == content {
					for _, h := range v.Array() {
						doc.Highlights = append(doc.Highlights, strings.TrimSpace(h.String()))
					}
				}
				return true
			})
		}
		for _, c := range fields["@search.captions"].Array() {
			if text := strings.TrimSpace(c.Get("text").String()); text != "" {
				doc.Highlights = append(doc.Highlights, text)
			}
		}
		out = append(out, doc)
	}
	return out
}
