package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/dtce-ai/dtce-rag/config"
)

// Counter measures text against the prompt budget.
type Counter interface {
	Count(text string) int
	Unit() string
}

// CharCounter counts characters.
type CharCounter struct{}

func (CharCounter) Count(text string) int { return utf8.RuneCountInString(text) }
func (CharCounter) Unit() string          { return "chars" }

// TiktokenCounter counts model tokens with a BPE encoding.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the named encoding, e.g. cl100k_base. The first
// load may download the BPE ranks.
func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", encoding, err)
	}
	return &TiktokenCounter{enc: enc}, nil
}

func (t *TiktokenCounter) Count(text string) int { return len(t.enc.Encode(text, nil, nil)) }
func (t *TiktokenCounter) Unit() string          { return "tokens" }

// NewCounter selects the counter for cfg.BudgetUnit.
func NewCounter(cfg config.PromptConfig) (Counter, error) {
	switch strings.ToLower(cfg.BudgetUnit) {
	case "", "chars":
		return CharCounter{}, nil
	case "tokens":
		return NewTiktokenCounter(cfg.Encoding)
	}
	return nil, fmt.Errorf("unsupported budget unit %q", cfg.BudgetUnit)
}
