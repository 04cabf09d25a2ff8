package config

import "time"

// Config is the root configuration of the question-answering pipeline.
// It is loaded once and treated as read-only afterwards.
type Config struct {
	LLM        LLMConfig        `json:"llm" yaml:"llm"`
	Index      IndexConfig      `json:"index" yaml:"index"`
	HTTP       HTTPClientConfig `json:"http" yaml:"http"`
	Namespaces NamespaceConfig  `json:"namespaces" yaml:"namespaces"`
	Normalizer NormalizerConfig `json:"normalizer" yaml:"normalizer"`
	Classifier ClassifierConfig `json:"classifier" yaml:"classifier"`
	Retrieval  RetrievalConfig  `json:"retrieval" yaml:"retrieval"`
	Formatter  FormatterConfig  `json:"formatter" yaml:"formatter"`
	Prompt     PromptConfig     `json:"prompt" yaml:"prompt"`
	Cache      CacheConfig      `json:"cache" yaml:"cache"`
	Session    SessionConfig    `json:"session" yaml:"session"`
	Log        LogConfig        `json:"log" yaml:"log"`
	Metrics    MetricsConfig    `json:"metrics" yaml:"metrics"`
}

// LLMConfig defines the chat-completion service.
type LLMConfig struct {
	Provider    string  `json:"provider" yaml:"provider"` // Available options: openai, azure
	APIKey      string  `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL     string  `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model       string  `json:"model" yaml:"model"`
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	TimeoutMs   int     `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
	// Requests per second across all callers; 0 disables pacing.
	RateLimit float64 `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
	RateBurst int     `json:"rate_burst,omitempty" yaml:"rate_burst,omitempty"`
}

// Timeout returns the per-call completion timeout.
func (c LLMConfig) Timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// IndexConfig defines the document index service.
type IndexConfig struct {
	Provider            string         `json:"provider" yaml:"provider"` // Available options: azure
	Endpoint            string         `json:"endpoint" yaml:"endpoint"`
	Index               string         `json:"index" yaml:"index"`
	APIKey              string         `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	APIVersion          string         `json:"api_version,omitempty" yaml:"api_version,omitempty"`
	SemanticConfig      string         `json:"semantic_config,omitempty" yaml:"semantic_config,omitempty"`
	Fields              []FieldMapping `json:"fields,omitempty" yaml:"fields,omitempty"`
	FilterTooComplexMsg []string       `json:"filter_too_complex_markers,omitempty" yaml:"filter_too_complex_markers,omitempty"`
}

// FieldMapping maps a standard document field onto the index's raw field name.
type FieldMapping struct {
	StandardName string `json:"standard_name" yaml:"standard_name"`
	RawName      string `json:"raw_name" yaml:"raw_name"`
}

// Standard field names understood by the index binding.
const (
	FieldID          = "id"
	FieldDisplayName = "display_name"
	FieldBody        = "body"
	FieldLocator     = "locator"
	FieldNamespace   = "namespace"
	FieldProject     = "project"
	FieldModified    = "modified"
)

// RawField resolves a standard field name, falling back to the standard name.
func (c IndexConfig) RawField(standard string) string {
	for _, f := range c.Fields {
		if f.StandardName == standard && f.RawName != "" {
			return f.RawName
		}
	}
	return standard
}

// HTTPClientConfig defines common options for outbound HTTP calls.
type HTTPClientConfig struct {
	TimeoutMs              int      `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
	Retry                  int      `json:"retry,omitempty" yaml:"retry,omitempty"`
	BackoffMinMs           int      `json:"backoff_min_ms,omitempty" yaml:"backoff_min_ms,omitempty"`
	BackoffMaxMs           int      `json:"backoff_max_ms,omitempty" yaml:"backoff_max_ms,omitempty"`
	HostAllowlist          []string `json:"host_allowlist,omitempty" yaml:"host_allowlist,omitempty"`
	MaxConsecutiveFailures int      `json:"max_consecutive_failures,omitempty" yaml:"max_consecutive_failures,omitempty"`
	CircuitOpenSeconds     int      `json:"circuit_open_seconds,omitempty" yaml:"circuit_open_seconds,omitempty"`
}

// NamespaceConfig is the static corpus partitioning knowledge.
type NamespaceConfig struct {
	// Category name -> logical namespace names (folder path fragments).
	Categories map[string][]string `json:"categories" yaml:"categories"`
	// Extra namespaces searched for template requests.
	Templates []string `json:"templates,omitempty" yaml:"templates,omitempty"`
	// Case-insensitive markers excluded from every search.
	Exclusions []string  `json:"exclusions" yaml:"exclusions"`
	Years      YearRange `json:"years" yaml:"years"`
}

// YearRange bounds the valid project-numbering years.
type YearRange struct {
	First int `json:"first" yaml:"first"`
	Last  int `json:"last" yaml:"last"`
}

// NormalizerConfig controls query normalization.
type NormalizerConfig struct {
	Acronyms         map[string]string `json:"acronyms,omitempty" yaml:"acronyms,omitempty"`
	Typos            map[string]string `json:"typos,omitempty" yaml:"typos,omitempty"`
	DomainVocabulary []string          `json:"domain_vocabulary,omitempty" yaml:"domain_vocabulary,omitempty"`
	EnablePhrasings  bool              `json:"enable_phrasings" yaml:"enable_phrasings"`
	MaxPhrasings     int               `json:"max_phrasings,omitempty" yaml:"max_phrasings,omitempty"`
	PhrasingTimeout  int               `json:"phrasing_timeout_ms,omitempty" yaml:"phrasing_timeout_ms,omitempty"`
}

// ClassifierConfig controls intent classification.
type ClassifierConfig struct {
	// Keyword-phase confidence below which the LLM phase runs.
	LLMThreshold float64 `json:"llm_threshold,omitempty" yaml:"llm_threshold,omitempty"`
	EnableLLM    bool    `json:"enable_llm" yaml:"enable_llm"`
	TimeoutMs    int     `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
}

// RetrievalConfig controls the retrieval engine.
type RetrievalConfig struct {
	TopN               int `json:"top_n,omitempty" yaml:"top_n,omitempty"`
	MinSemanticResults int `json:"min_semantic_results,omitempty" yaml:"min_semantic_results,omitempty"`
	SemanticTimeoutMs  int `json:"semantic_timeout_ms,omitempty" yaml:"semantic_timeout_ms,omitempty"`
	KeywordTimeoutMs   int `json:"keyword_timeout_ms,omitempty" yaml:"keyword_timeout_ms,omitempty"`
	// Alternative phrasings also searched in the keyword state.
	KeywordVariants int `json:"keyword_variants,omitempty" yaml:"keyword_variants,omitempty"`
}

// FormatterConfig controls evidence formatting.
type FormatterConfig struct {
	TotalChars       int              `json:"total_chars,omitempty" yaml:"total_chars,omitempty"`
	PerDocumentChars int              `json:"per_document_chars,omitempty" yaml:"per_document_chars,omitempty"`
	MaxDocuments     map[string]int   `json:"max_documents,omitempty" yaml:"max_documents,omitempty"`
	SuiteFiles       SuiteFilesConfig `json:"suitefiles" yaml:"suitefiles"`
}

// SuiteFilesConfig describes how internal locators map onto the document portal.
type SuiteFilesConfig struct {
	BaseURL    string   `json:"base_url" yaml:"base_url"`
	SitePath   string   `json:"site_path" yaml:"site_path"`
	Containers []string `json:"containers" yaml:"containers"`
}

// PromptConfig controls prompt assembly.
type PromptConfig struct {
	// Ceiling for system + user, in BudgetUnit.
	Budget          int    `json:"budget,omitempty" yaml:"budget,omitempty"`
	BudgetUnit      string `json:"budget_unit,omitempty" yaml:"budget_unit,omitempty"` // chars | tokens
	Encoding        string `json:"encoding,omitempty" yaml:"encoding,omitempty"`
	MaxHistoryTurns int    `json:"max_history_turns,omitempty" yaml:"max_history_turns,omitempty"`
	MaxTurnChars    int    `json:"max_turn_chars,omitempty" yaml:"max_turn_chars,omitempty"`
	FirmName        string `json:"firm_name,omitempty" yaml:"firm_name,omitempty"`
}

// CacheConfig controls memoization of LLM-derived intermediate results.
type CacheConfig struct {
	Store      string      `json:"store,omitempty" yaml:"store,omitempty"` // none | memory | redis
	MaxEntries int         `json:"max_entries,omitempty" yaml:"max_entries,omitempty"`
	TTLSeconds int         `json:"ttl_seconds,omitempty" yaml:"ttl_seconds,omitempty"`
	Redis      RedisConfig `json:"redis,omitempty" yaml:"redis,omitempty"`
}

// TTL returns the entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	if c.TTLSeconds <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.TTLSeconds) * time.Second
}

// RedisConfig holds redis connection details.
type RedisConfig struct {
	Address   string `json:"address,omitempty" yaml:"address,omitempty"`
	Username  string `json:"username,omitempty" yaml:"username,omitempty"`
	Password  string `json:"password,omitempty" yaml:"password,omitempty"`
	DB        int    `json:"db,omitempty" yaml:"db,omitempty"`
	KeyPrefix string `json:"key_prefix,omitempty" yaml:"key_prefix,omitempty"`
}

// SessionConfig controls conversation history persistence for the CLI.
// Store: "memory" (default) or "redis".
type SessionConfig struct {
	Store      string      `json:"store,omitempty" yaml:"store,omitempty"`
	TTLSeconds int         `json:"ttl_seconds,omitempty" yaml:"ttl_seconds,omitempty"`
	MaxTurns   int         `json:"max_turns,omitempty" yaml:"max_turns,omitempty"`
	Redis      RedisConfig `json:"redis,omitempty" yaml:"redis,omitempty"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"` // json | console
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

func millis(ms, def int) time.Duration {
	if ms <= 0 {
		ms = def
	}
	return time.Duration(ms) * time.Millisecond
}

// SemanticTimeout bounds a single semantic search call.
func (c RetrievalConfig) SemanticTimeout() time.Duration { return millis(c.SemanticTimeoutMs, 20000) }

// KeywordTimeout bounds a single keyword search call.
func (c RetrievalConfig) KeywordTimeout() time.Duration { return millis(c.KeywordTimeoutMs, 20000) }

// Timeout bounds the classification LLM call.
func (c ClassifierConfig) Timeout() time.Duration { return millis(c.TimeoutMs, 8000) }

// Timeout bounds the phrasing LLM call.
func (c NormalizerConfig) Timeout() time.Duration { return millis(c.PhrasingTimeout, 8000) }
