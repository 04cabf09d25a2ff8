package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	stageLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dtce_rag_stage_latency_ms",
		Help:    "Latency of pipeline stages in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 20000},
	}, []string{"stage"})

	retrievalResults = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dtce_rag_retrieval_results",
		Help:    "Number of documents returned by a search mode",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 30, 50},
	}, []string{"mode"})

	retrievalFallback = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dtce_rag_retrieval_fallback_total",
		Help: "Retrieval fallbacks by reason (semantic_error, few_results, filter_simplified, no_documents)",
	}, []string{"reason"})

	qualityRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dtce_rag_quality_rejected_total",
		Help: "Documents dropped by the quality filter",
	}, []string{"reason"})

	answers = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dtce_rag_answers_total",
		Help: "Answers produced by category and confidence",
	}, []string{"category", "confidence"})

	llmCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dtce_rag_llm_calls_total",
		Help: "Completion calls by purpose and outcome",
	}, []string{"purpose", "outcome"})

	cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dtce_rag_cache_lookups_total",
		Help: "Memo cache lookups (hit/miss)",
	}, []string{"result"})

	circuitState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dtce_rag_circuit_state",
		Help: "Outbound circuit breaker state (0 closed, 1 half-open, 2 open)",
	}, []string{"name"})
)

func ensureRegistered() {
	once.Do(func() {
		prometheus.MustRegister(Collectors()...)
	})
}

// ObserveStage records the latency of a pipeline stage.
func ObserveStage(stage string, start time.Time) {
	ensureRegistered()
	stageLatency.WithLabelValues(stage).Observe(float64(time.Since(start).Milliseconds()))
}

// ObserveRetrieval records result size for a search mode.
func ObserveRetrieval(mode string, results int) {
	ensureRegistered()
	retrievalResults.WithLabelValues(mode).Observe(float64(results))
}

// IncFallback counts a retrieval fallback.
func IncFallback(reason string) {
	ensureRegistered()
	retrievalFallback.WithLabelValues(reason).Inc()
}

// IncRejected counts a quality rejection.
func IncRejected(reason string) {
	ensureRegistered()
	qualityRejected.WithLabelValues(reason).Inc()
}

// IncAnswer counts a produced answer.
func IncAnswer(category, confidence string) {
	ensureRegistered()
	answers.WithLabelValues(category, confidence).Inc()
}

// IncLLMCall counts a completion call.
func IncLLMCall(purpose string, err error) {
	ensureRegistered()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	llmCalls.WithLabelValues(purpose, outcome).Inc()
}

// IncCache counts a memo lookup.
func IncCache(hit bool) {
	ensureRegistered()
	if hit {
		cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	cacheLookups.WithLabelValues("miss").Inc()
}

// SetCircuitState publishes a breaker state.
func SetCircuitState(name string, state float64) {
	ensureRegistered()
	circuitState.WithLabelValues(name).Set(state)
}

// Collectors exposes all collectors for external registration with a custom registry.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		stageLatency, retrievalResults, retrievalFallback, qualityRejected,
		answers, llmCalls, cacheLookups, circuitState,
	}
}

// Handler serves the default registry with every pipeline collector registered.
func Handler() http.Handler {
	ensureRegistered()
	return promhttp.Handler()
}
