package metrics

import (
	"encoding/json"
	"time"

	"github.com/dtce-ai/dtce-rag/common/logger"
)

// RequestMetrics records one question's trip through the pipeline.
type RequestMetrics struct {
	RequestID string    `json:"request_id"`
	Query     string    `json:"query"`
	Timestamp time.Time `json:"timestamp"`

	// Understanding
	NormalizeLatencyMs int64    `json:"normalize_latency_ms"`
	TechnicalTerms     []string `json:"technical_terms,omitempty"`
	ProjectRef         string   `json:"project_ref,omitempty"`
	Phrasings          int      `json:"phrasings"`
	Category           string   `json:"category"`
	CategoryConfidence float64  `json:"category_confidence"`
	NeedsRetrieval     bool     `json:"needs_retrieval"`
	Namespaces         []string `json:"namespaces,omitempty"`

	// Retrieval
	RetrievalLatencyMs int64    `json:"retrieval_latency_ms,omitempty"`
	RetrievalPhases    []string `json:"retrieval_phases,omitempty"` // semantic, keyword, simplified:<level>
	SemanticResults    int      `json:"semantic_results"`
	KeywordResults     int      `json:"keyword_results"`
	FallbackTriggered  bool     `json:"fallback_triggered"`

	// Quality + formatting
	Rejected      map[string]int `json:"rejected,omitempty"`
	ContextDocs   int            `json:"context_docs"`
	ContextChars  int            `json:"context_chars"`
	PromptTrimmed bool           `json:"prompt_trimmed"`

	// Synthesis
	SynthesisLatencyMs int64 `json:"synthesis_latency_ms,omitempty"`

	// Overall
	TotalLatencyMs int64  `json:"total_latency_ms"`
	Confidence     string `json:"confidence"`
	Success        bool   `json:"success"`
	ErrorMsg       string `json:"error_msg,omitempty"`
}

// NewRequestMetrics creates an empty record stamped with now.
func NewRequestMetrics(requestID, query string) *RequestMetrics {
	return &RequestMetrics{
		RequestID: requestID,
		Query:     query,
		Timestamp: time.Now(),
		Rejected:  make(map[string]int),
	}
}

// AddPhase appends a retrieval phase label.
func (m *RequestMetrics) AddPhase(phase string) {
	m.RetrievalPhases = append(m.RetrievalPhases, phase)
}

// AddRejected counts a quality rejection in this request and in Prometheus.
func (m *RequestMetrics) AddRejected(reason string) {
	if m.Rejected == nil {
		m.Rejected = make(map[string]int)
	}
	m.Rejected[reason]++
	IncRejected(reason)
}

// Finish stamps total latency and outcome.
func (m *RequestMetrics) Finish(confidence string, err error) {
	m.TotalLatencyMs = time.Since(m.Timestamp).Milliseconds()
	m.Confidence = confidence
	m.Success = err == nil
	if err != nil {
		m.ErrorMsg = err.Error()
	}
}

// Log writes the record as a single JSON line.
func (m *RequestMetrics) Log() {
	if data, err := json.Marshal(m); err == nil {
		logger.Infof("[RAG_METRICS] %s", string(data))
	}
}
