package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	if len(errs) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "found %d configuration error(s):\n", len(errs))
	for i, err := range errs {
		fmt.Fprintf(&b, "  %d. [%s] %s\n", i+1, err.Field, err.Message)
	}
	return b.String()
}

// Fields lists the offending field paths in order.
func (errs ValidationErrors) Fields() []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Field)
	}
	return out
}

// Validate checks the complete configuration. Secrets are only required when
// requireSecrets is set, so `config validate` can run against a bare file.
func (c *Config) Validate(requireSecrets bool) error {
	var errs ValidationErrors
	errs = append(errs, c.validateLLM(requireSecrets)...)
	errs = append(errs, c.validateIndex(requireSecrets)...)
	errs = append(errs, c.validateNamespaces()...)
	errs = append(errs, c.validatePipeline()...)
	errs = append(errs, c.validateStores()...)
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (c *Config) validateLLM(requireSecrets bool) ValidationErrors {
	var errs ValidationErrors
	switch c.LLM.Provider {
	case "openai", "azure":
	case "":
		errs = append(errs, ValidationError{Field: "llm.provider", Message: "llm provider is required"})
	default:
		errs = append(errs, ValidationError{Field: "llm.provider", Message: fmt.Sprintf("unsupported llm provider %q", c.LLM.Provider)})
	}
	if c.LLM.Model == "" {
		errs = append(errs, ValidationError{Field: "llm.model", Message: "llm model is required"})
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, ValidationError{Field: "llm.temperature", Message: "llm temperature must be between 0 and 2"})
	}
	if c.LLM.MaxTokens < 0 {
		errs = append(errs, ValidationError{Field: "llm.max_tokens", Message: "llm max_tokens must not be negative"})
	}
	if c.LLM.RateLimit < 0 {
		errs = append(errs, ValidationError{Field: "llm.rate_limit", Message: "llm rate_limit must not be negative"})
	}
	if c.LLM.BaseURL != "" {
		if _, err := url.ParseRequestURI(c.LLM.BaseURL); err != nil {
			errs = append(errs, ValidationError{Field: "llm.base_url", Message: "llm base_url is not a valid URL"})
		}
	}
	if requireSecrets && c.LLM.APIKey == "" {
		errs = append(errs, ValidationError{Field: "llm.api_key", Message: "llm api_key is required (set " + EnvLLMAPIKey + ")"})
	}
	return errs
}

func (c *Config) validateIndex(requireSecrets bool) ValidationErrors {
	var errs ValidationErrors
	if c.Index.Provider != "azure" {
		errs = append(errs, ValidationError{Field: "index.provider", Message: fmt.Sprintf("unsupported index provider %q", c.Index.Provider)})
	}
	if requireSecrets {
		if c.Index.Endpoint == "" {
			errs = append(errs, ValidationError{Field: "index.endpoint", Message: "index endpoint is required (set " + EnvIndexEndpoint + ")"})
		}
		if c.Index.Index == "" {
			errs = append(errs, ValidationError{Field: "index.index", Message: "index name is required (set " + EnvIndexName + ")"})
		}
		if c.Index.APIKey == "" {
			errs = append(errs, ValidationError{Field: "index.api_key", Message: "index api_key is required (set " + EnvIndexAPIKey + ")"})
		}
	}
	if c.Index.Endpoint != "" {
		u, err := url.Parse(c.Index.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{Field: "index.endpoint", Message: "index endpoint is not a valid URL"})
		}
	}
	seen := map[string]bool{}
	for i, f := range c.Index.Fields {
		if f.StandardName == "" || f.RawName == "" {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("index.fields[%d]", i), Message: "field mapping needs standard_name and raw_name"})
			continue
		}
		if seen[f.StandardName] {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("index.fields[%d]", i), Message: "duplicate mapping for " + f.StandardName})
		}
		seen[f.StandardName] = true
	}
	return errs
}

func (c *Config) validateNamespaces() ValidationErrors {
	var errs ValidationErrors
	if len(c.Namespaces.Categories) == 0 {
		errs = append(errs, ValidationError{Field: "namespaces.categories", Message: "at least one category is required"})
	}
	for name := range c.Namespaces.Categories {
		switch name {
		case "policy", "procedure", "standard", "project", "client", "general":
		default:
			errs = append(errs, ValidationError{Field: "namespaces.categories." + name, Message: "unknown category"})
		}
	}
	y := c.Namespaces.Years
	if y.First < 2000 || y.Last > 2099 || y.First > y.Last {
		errs = append(errs, ValidationError{Field: "namespaces.years", Message: "year range must satisfy 2000 <= first <= last <= 2099"})
	}
	return errs
}

func (c *Config) validatePipeline() ValidationErrors {
	var errs ValidationErrors
	if c.Classifier.LLMThreshold < 0 || c.Classifier.LLMThreshold > 1 {
		errs = append(errs, ValidationError{Field: "classifier.llm_threshold", Message: "llm_threshold must be between 0 and 1"})
	}
	if c.Normalizer.MaxPhrasings < 0 || c.Normalizer.MaxPhrasings > 5 {
		errs = append(errs, ValidationError{Field: "normalizer.max_phrasings", Message: "max_phrasings must be between 0 and 5"})
	}
	if c.Retrieval.TopN <= 0 {
		errs = append(errs, ValidationError{Field: "retrieval.top_n", Message: "top_n must be positive"})
	}
	if c.Retrieval.MinSemanticResults < 0 {
		errs = append(errs, ValidationError{Field: "retrieval.min_semantic_results", Message: "min_semantic_results must not be negative"})
	}
	if c.Formatter.TotalChars <= 0 {
		errs = append(errs, ValidationError{Field: "formatter.total_chars", Message: "total_chars must be positive"})
	}
	if c.Formatter.PerDocumentChars <= 0 || c.Formatter.PerDocumentChars > c.Formatter.TotalChars {
		errs = append(errs, ValidationError{Field: "formatter.per_document_chars", Message: "per_document_chars must be positive and not exceed total_chars"})
	}
	for name, n := range c.Formatter.MaxDocuments {
		if n <= 0 {
			errs = append(errs, ValidationError{Field: "formatter.max_documents." + name, Message: "max_documents must be positive"})
		}
	}
	if c.Prompt.Budget <= 0 {
		errs = append(errs, ValidationError{Field: "prompt.budget", Message: "budget must be positive"})
	}
	switch c.Prompt.BudgetUnit {
	case "", "chars", "tokens":
	default:
		errs = append(errs, ValidationError{Field: "prompt.budget_unit", Message: "budget_unit must be chars or tokens"})
	}
	if c.Prompt.MaxHistoryTurns < 0 {
		errs = append(errs, ValidationError{Field: "prompt.max_history_turns", Message: "max_history_turns must not be negative"})
	}
	return errs
}

func (c *Config) validateStores() ValidationErrors {
	var errs ValidationErrors
	switch c.Cache.Store {
	case "", "none", "memory":
	case "redis":
		if c.Cache.Redis.Address == "" {
			errs = append(errs, ValidationError{Field: "cache.redis.address", Message: "redis address is required for the redis cache store"})
		}
	default:
		errs = append(errs, ValidationError{Field: "cache.store", Message: fmt.Sprintf("unsupported cache store %q", c.Cache.Store)})
	}
	switch c.Session.Store {
	case "", "memory":
	case "redis":
		if c.Session.Redis.Address == "" {
			errs = append(errs, ValidationError{Field: "session.redis.address", Message: "redis address is required for the redis session store"})
		}
	default:
		errs = append(errs, ValidationError{Field: "session.store", Message: fmt.Sprintf("unsupported session store %q", c.Session.Store)})
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{Field: "log.level", Message: fmt.Sprintf("unsupported log level %q", c.Log.Level)})
	}
	return errs
}
