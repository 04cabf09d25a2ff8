package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Environment variables that override secrets and endpoints.
const (
	EnvLLMAPIKey     = "DTCE_LLM_API_KEY"
	EnvLLMBaseURL    = "DTCE_LLM_BASE_URL"
	EnvLLMModel      = "DTCE_LLM_MODEL"
	EnvIndexEndpoint = "DTCE_INDEX_ENDPOINT"
	EnvIndexName     = "DTCE_INDEX_NAME"
	EnvIndexAPIKey   = "DTCE_INDEX_API_KEY"
	EnvRedisAddress  = "DTCE_REDIS_ADDRESS"
	EnvRedisPassword = "DTCE_REDIS_PASSWORD"
	EnvLogLevel      = "DTCE_LOG_LEVEL"
	EnvPromptBudget  = "DTCE_PROMPT_BUDGET"
)

// Load reads a YAML config on top of Default(). A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML bytes on top of Default() without consulting the environment.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Marshal encodes the config as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str(EnvLLMAPIKey, &cfg.LLM.APIKey)
	str(EnvLLMBaseURL, &cfg.LLM.BaseURL)
	str(EnvLLMModel, &cfg.LLM.Model)
	str(EnvIndexEndpoint, &cfg.Index.Endpoint)
	str(EnvIndexName, &cfg.Index.Index)
	str(EnvIndexAPIKey, &cfg.Index.APIKey)
	str(EnvLogLevel, &cfg.Log.Level)
	if v, ok := lookup(EnvRedisAddress); ok && v != "" {
		cfg.Cache.Redis.Address = v
		cfg.Session.Redis.Address = v
	}
	if v, ok := lookup(EnvRedisPassword); ok && v != "" {
		cfg.Cache.Redis.Password = v
		cfg.Session.Redis.Password = v
	}
	if v, ok := lookup(EnvPromptBudget); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPromptBudget, err)
		}
		cfg.Prompt.Budget = n
	}
	return nil
}
