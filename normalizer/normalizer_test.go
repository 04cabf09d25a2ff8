package normalizer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtce-ai/dtce-rag/cache"
	"github.com/dtce-ai/dtce-rag/config"
	"github.com/dtce-ai/dtce-rag/llm"
	"github.com/dtce-ai/dtce-rag/namespace"
)

// MockLLMProvider is a mock implementation of llm.Provider for testing
type MockLLMProvider struct {
	response string
	err      error
	calls    int
}

func (m *MockLLMProvider) GenerateCompletion(ctx context.Context, prompt string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *MockLLMProvider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	return m.GenerateCompletion(ctx, "")
}

func (m *MockLLMProvider) GetProviderType() string { return "mock" }

func newNormalizer(p llm.Provider, c cache.Cache) *Normalizer {
	cfg := config.Default()
	return New(cfg.Normalizer, namespace.NewKnowledge(cfg.Namespaces), p, c)
}

func TestPhrasingInvariance(t *testing.T) {
	n := newNormalizer(nil, nil)
	short := n.Deterministic("wellness policy")
	long := n.Deterministic("what's our wellness policy and what does it say")

	assert.Equal(t, "wellness policy", short.CleanedText)
	assert.Equal(t, short.CleanedText, long.CleanedText)
	assert.Equal(t, []string{"policy", "wellness"}, long.TechnicalTerms)
	assert.Equal(t, short.TechnicalTerms, long.TechnicalTerms)
	assert.Equal(t, "what's our wellness policy and what does it say", long.Original)
}

func TestCleaning(t *testing.T) {
	n := newNormalizer(nil, nil)
	tests := []struct {
		in, cleaned string
	}{
		{"  Where can I find   the H&S induction form? ", "h&s induction form"},
		{"How do I use the wind speed spreadsheet", "use wind speed spreadsheet"},
		{"Tell me about our welness program please", "wellness program"},
		{"Can you please?", "can you please"},
		{"NZS 3101 cover requirements", "nzs 3101 cover requirements"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.cleaned, n.Deterministic(tt.in).CleanedText, tt.in)
	}
}

func TestAcronymExpansion(t *testing.T) {
	n := newNormalizer(nil, nil)
	nq := n.Deterministic("H&S policy")
	assert.Equal(t, "h&s policy", nq.CleanedText)
	assert.Equal(t, "h&s health and safety policy", nq.ExpandedText)
	assert.Contains(t, nq.TechnicalTerms, "h&s")
	assert.Equal(t, nq.ExpandedText, nq.SearchText())

	plain := n.Deterministic("wellness policy")
	assert.Equal(t, plain.CleanedText, plain.ExpandedText)
}

func TestTechnicalTerms(t *testing.T) {
	n := newNormalizer(nil, nil)
	nq := n.Deterministic("AS/NZS 1170.5 and NZBC B1 for 300 mm slab, 25 MPa concrete, Grade 300E bars, SG8 and H3.2 timber, C25/30 mix")
	for _, want := range []string{"AS/NZS 1170.5", "NZBC B1", "300 mm", "25 MPa", "Grade 300E", "SG8", "H3.2", "C25/30", "concrete", "timber"} {
		assert.Contains(t, nq.TechnicalTerms, want)
	}
	assert.Nil(t, nq.ProjectRef)
}

func TestProjectRef(t *testing.T) {
	n := newNormalizer(nil, nil)
	tests := []struct {
		in       string
		id       string
		yearCode string
		year     string
	}{
		{"What is project 225?", "225", "225", "2025"},
		{"job no. 224015 drawings", "224015", "224", "2024"},
		{"details for P-219004", "219004", "219", "2019"},
		{"what happened on 222031", "222031", "222", "2022"},
		{"What is 225?", "225", "225", "2025"},
		{"tell me about 224", "224", "224", "2024"},
		{"project 1234 fees", "1234", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			ref := n.Deterministic(tt.in).ProjectRef
			require.NotNil(t, ref)
			assert.Equal(t, tt.id, ref.ID)
			assert.Equal(t, tt.yearCode, ref.YearCode)
			assert.Equal(t, tt.year, ref.Year)
		})
	}

	for _, in := range []string{
		"300 mm slab",
		"wellness policy 2024",
		"grade 250 steel",
		"ring 021 555 1234",
		"does our health and safety policy cover 220 staff",
		"what is 225 kPa in psi",
	} {
		assert.Nil(t, n.Deterministic(in).ProjectRef, in)
	}
	assert.True(t, n.Deterministic("job 224015").ProjectRef.IsFullNumber())
}

func TestNormalizeWithPhrasings(t *testing.T) {
	mock := &MockLLMProvider{response: "```json\n{\"alternative_queries\": [\"employee wellness policy\", \"Wellness Policy\", \"EMPLOYEE WELLNESS POLICY\", \"health and wellbeing programme\"]}\n```"}
	c := cache.NewLRU(16, time.Minute)
	n := newNormalizer(mock, c)

	nq := n.Normalize(context.Background(), "what's our wellness policy")
	assert.Equal(t, []string{"employee wellness policy", "health and wellbeing programme"}, nq.AlternativePhrasings)

	again := n.Normalize(context.Background(), "wellness policy")
	assert.Equal(t, nq.AlternativePhrasings, again.AlternativePhrasings)
	assert.Equal(t, 1, mock.calls)
}

func TestNormalizeDegradesOnLLMFailure(t *testing.T) {
	mock := &MockLLMProvider{err: errors.New("timeout")}
	n := newNormalizer(mock, nil)
	nq := n.Normalize(context.Background(), "wellness policy")
	assert.Empty(t, nq.AlternativePhrasings)
	assert.NotNil(t, nq.AlternativePhrasings)
	assert.Equal(t, "wellness policy", nq.CleanedText)
}

func TestParsePhrasings(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, parsePhrasings(`["a","b","A"]`, 5))
	assert.Equal(t, []string{"leave policy", "annual leave"}, parsePhrasings("1. leave policy\n2. \"annual leave\"\n- leave", 5, "leave"))
	assert.Len(t, parsePhrasings(`{"alternative_queries":["1","2","3","4","5","6"]}`, 5), 5)
	assert.Empty(t, parsePhrasings("", 5))
}

func TestEmptyInput(t *testing.T) {
	n := newNormalizer(nil, nil)
	nq := n.Normalize(context.Background(), "   ")
	assert.Equal(t, "", nq.CleanedText)
	assert.Nil(t, nq.ProjectRef)
	assert.NotNil(t, nq.TechnicalTerms)
}
