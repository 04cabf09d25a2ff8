package orchestrator

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dtce-ai/dtce-rag/common/logger"
	"github.com/dtce-ai/dtce-rag/config"
	"github.com/dtce-ai/dtce-rag/llm"
	"github.com/dtce-ai/dtce-rag/prompt"
	"github.com/dtce-ai/dtce-rag/retriever"
	"github.com/dtce-ai/dtce-rag/schema"
)

type MockLLMProvider struct {
	mu       sync.Mutex
	response string
	err      error
	calls    int
	messages [][]llm.Message
}

func (m *MockLLMProvider) GenerateCompletion(ctx context.Context, prompt string) (string, error) {
	return m.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}})
}

func (m *MockLLMProvider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.messages = append(m.messages, messages)
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *MockLLMProvider) GetProviderType() string { return "mock" }

func (m *MockLLMProvider) last() []llm.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return nil
	}
	return m.messages[len(m.messages)-1]
}

type fakeIndex struct {
	mu       sync.Mutex
	search   func(req retriever.SearchRequest) ([]schema.RetrievedDocument, error)
	requests []retriever.SearchRequest
}

func (f *fakeIndex) Type() string { return "fake" }

func (f *fakeIndex) Search(ctx context.Context, req retriever.SearchRequest) ([]schema.RetrievedDocument, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.search(req)
}

func (f *fakeIndex) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func returning(docs ...schema.RetrievedDocument) func(retriever.SearchRequest) ([]schema.RetrievedDocument, error) {
	return func(retriever.SearchRequest) ([]schema.RetrievedDocument, error) {
		return docs, nil
	}
}

func newOrchestrator(t *testing.T, idx retriever.Index, provider llm.Provider) *Orchestrator {
	t.Helper()
	cfg := config.Default()
	cfg.Normalizer.EnablePhrasings = false
	cfg.Classifier.EnableLLM = false
	o, err := Build(cfg, provider, idx, nil)
	require.NoError(t, err)
	return o
}

func policyDocs() []schema.RetrievedDocument {
	return []schema.RetrievedDocument{
		{ID: "p1", DisplayName: "Wellness Policy.pdf", NamespacePath: "Company/HR Policies", Locator: "HR Policies/Wellness Policy.pdf", Body: "Staff may take two wellness days each year. Apply through the HR system.", Score: 3},
		{ID: "p2", DisplayName: "Leave Policy.pdf", NamespacePath: "Company/HR Policies", Locator: "HR Policies/Leave Policy.pdf", Body: "Annual leave accrues monthly. Wellness days are separate from annual leave.", Score: 2},
		{ID: "p3", DisplayName: "Wellbeing Guide.docx", NamespacePath: "Company/Policies", Locator: "Policies/Wellbeing Guide.docx", Body: "The wellbeing programme includes an employee assistance service.", Score: 1.5},
		{ID: "p4", DisplayName: "Wellness Policy 2019.pdf", NamespacePath: "Company/Archive/HR Policies", Locator: "Archive/Wellness Policy 2019.pdf", Body: "Staff may take one wellness day each year.", Score: 1},
	}
}

func TestProcessProjectScenario(t *testing.T) {
	idx := &fakeIndex{search: returning(schema.RetrievedDocument{
		ID:            "d1",
		DisplayName:   "Structural Report.pdf",
		NamespacePath: "Projects/225/225001",
		Locator:       "https://dtcestore.blob.core.windows.net/suitefiles/Projects/225/225001/Structural%20Report.pdf?sig=abc",
		Body:          "Project 225001 covers the foundation design for a house in Karori for Smith Family Trust.",
	})}
	mock := &MockLLMProvider{response: "Project 225001 is a house in Karori [1]."}
	o := newOrchestrator(t, idx, mock)

	ans := o.Process(context.Background(), "What is project 225?", nil)
	assert.Equal(t, schema.CategoryProject, ans.Category)
	assert.Equal(t, schema.ConfidenceMedium, ans.Confidence)
	assert.Equal(t, 1, ans.DocumentsConsidered)
	require.Len(t, ans.Sources, 1)
	assert.Equal(t, "https://dtce.sharepoint.com/sites/SuiteFiles/Projects/225/225001/Structural%20Report.pdf", ans.Sources[0].Locator)
	assert.Equal(t, "Project 225001 is a house in Karori [1].", ans.Text)

	user := mock.last()[len(mock.last())-1].Content
	assert.Contains(t, user, "Project: Project 225001 (2025)")

	idx.mu.Lock()
	defer idx.mu.Unlock()
	require.NotEmpty(t, idx.requests)
	assert.Equal(t, []string{"Projects"}, idx.requests[0].Filter.Namespaces)
	assert.Empty(t, idx.requests[0].Filter.ProjectID)
}

func TestProcessDoesNotFabricateProjectTag(t *testing.T) {
	idx := &fakeIndex{search: returning(schema.RetrievedDocument{
		ID:            "d1",
		DisplayName:   "Notes.pdf",
		NamespacePath: "Projects/General",
		Locator:       "https://dtcestore.blob.core.windows.net/suitefiles/Projects/General/Notes.pdf",
		Body:          "General notes about project 225 fee proposals and resourcing.",
	})}
	mock := &MockLLMProvider{response: "The notes mention fee proposals [1]."}
	o := newOrchestrator(t, idx, mock)

	ans := o.Process(context.Background(), "What is project 225?", nil)
	assert.Equal(t, schema.CategoryProject, ans.Category)
	user := mock.last()[len(mock.last())-1].Content
	assert.NotContains(t, user, "Project: ")
}

func TestProcessQuantityIsNotAProject(t *testing.T) {
	idx := &fakeIndex{search: returning(policyDocs()[:1]...)}
	mock := &MockLLMProvider{response: "The policy covers all staff [1]."}
	o := newOrchestrator(t, idx, mock)

	ans := o.Process(context.Background(), "does our health and safety policy cover 220 staff", nil)
	assert.Equal(t, schema.CategoryPolicy, ans.Category)

	idx.mu.Lock()
	defer idx.mu.Unlock()
	require.NotEmpty(t, idx.requests)
	assert.NotContains(t, idx.requests[0].Filter.Namespaces, "Projects")
	assert.Empty(t, idx.requests[0].Filter.ProjectID)
}

func TestProcessPhrasingInvariance(t *testing.T) {
	idx := &fakeIndex{search: returning(policyDocs()...)}
	mock := &MockLLMProvider{response: "Staff get two wellness days [1]."}
	o := newOrchestrator(t, idx, mock)

	short := o.Process(context.Background(), "wellness policy", nil)
	long := o.Process(context.Background(), "what's our wellness policy and what does it say", nil)

	assert.Equal(t, schema.CategoryPolicy, short.Category)
	assert.Equal(t, short.Category, long.Category)
	assert.Equal(t, short.Sources, long.Sources)

	idx.mu.Lock()
	defer idx.mu.Unlock()
	first := idx.requests[0].Filter.Namespaces
	last := idx.requests[len(idx.requests)-1].Filter.Namespaces
	assert.NotEmpty(t, first)
	assert.Equal(t, first, last)
}

func TestProcessHighConfidenceAndSourceConsistency(t *testing.T) {
	idx := &fakeIndex{search: returning(policyDocs()...)}
	mock := &MockLLMProvider{response: "Staff get two wellness days [Document 1], see also [Source: Document 3] and [7].\n\nSources:\n- Wellness Policy.pdf"}
	o := newOrchestrator(t, idx, mock)

	ans := o.Process(context.Background(), "wellness policy", nil)
	assert.Equal(t, schema.ConfidenceHigh, ans.Confidence)
	assert.Equal(t, 3, ans.DocumentsConsidered)
	require.Len(t, ans.Sources, 3)
	assert.Equal(t, "Staff get two wellness days [1], see also [3] and.", ans.Text)

	user := mock.last()[len(mock.last())-1].Content
	for i, s := range ans.Sources {
		assert.Contains(t, user, s.DisplayName)
		assert.NotContains(t, s.DisplayName, "2019", "archived document leaked into source %d", i)
	}
	assert.NotContains(t, user, "Wellness Policy 2019.pdf")
}

func TestProcessTruncatedPromptLimitsSources(t *testing.T) {
	body := strings.Repeat("Staff may take wellness days with manager approval. ", 40)
	docs := policyDocs()[:3]
	for i := range docs {
		docs[i].Body = body
	}
	idx := &fakeIndex{search: returning(docs...)}
	mock := &MockLLMProvider{response: "Staff may take wellness days [1][2][3]."}

	cfg := config.Default()
	cfg.Normalizer.EnablePhrasings = false
	cfg.Classifier.EnableLLM = false
	system := prompt.NewBuilder(cfg.Prompt, nil).Build(schema.CategoryPolicy, "wellness policy", schema.FormattedContext{}, nil).SystemInstructions
	cfg.Prompt.Budget = prompt.CharCounter{}.Count(system) + prompt.CharCounter{}.Count("Question: wellness policy\n\nDocuments:\n") + 2600
	o, err := Build(cfg, mock, idx, nil)
	require.NoError(t, err)

	ans := o.Process(context.Background(), "wellness policy", nil)
	user := mock.last()[len(mock.last())-1].Content
	assert.True(t, strings.HasSuffix(user, prompt.TruncationMarker))

	headers := regexp.MustCompile(`\[Document \d+\]`).FindAllString(user, -1)
	require.Len(t, headers, 2)
	assert.Len(t, ans.Sources, len(headers))
	assert.Equal(t, len(headers), ans.DocumentsConsidered)
	assert.Equal(t, schema.ConfidenceMedium, ans.Confidence)
	assert.Equal(t, "Staff may take wellness days [1][2].", ans.Text)
}

func TestProcessStageLogsCarryRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	prev := logger.L()
	logger.Replace(zap.New(core))
	defer logger.Replace(prev.Desugar())

	idx := &fakeIndex{search: returning(policyDocs()...)}
	o := newOrchestrator(t, idx, &MockLLMProvider{response: "Two wellness days [1]."})
	o.Process(context.Background(), "wellness policy", nil)

	ids := map[string]bool{}
	for _, stage := range []string{"normalize:", "classify:", "retrieve:", "quality:", "format:"} {
		entries := logs.FilterMessageSnippet(stage).All()
		require.NotEmpty(t, entries, stage)
		id, _ := entries[0].ContextMap()["request_id"].(string)
		assert.NotEmpty(t, id, stage)
		ids[id] = true
	}
	assert.Len(t, ids, 1)
}

func TestProcessSemanticFailureFallsBackToKeyword(t *testing.T) {
	idx := &fakeIndex{search: func(req retriever.SearchRequest) ([]schema.RetrievedDocument, error) {
		if req.Mode == retriever.ModeSemantic {
			return nil, errors.New("dial tcp: connection refused")
		}
		return policyDocs()[:2], nil
	}}
	mock := &MockLLMProvider{response: "Two wellness days [1]."}
	o := newOrchestrator(t, idx, mock)

	ans := o.Process(context.Background(), "wellness policy", nil)
	assert.NotEqual(t, schema.ConfidenceError, ans.Confidence)
	assert.Equal(t, schema.ConfidenceMedium, ans.Confidence)
	assert.Len(t, ans.Sources, 2)
}

func TestProcessAllArchived(t *testing.T) {
	archived := []schema.RetrievedDocument{
		{ID: "a1", DisplayName: "Wellness Policy.pdf", NamespacePath: "Company/Archive/HR", Locator: "Archive/Wellness Policy.pdf", Body: "Old wellness rules that no longer apply to anyone."},
		{ID: "a2", DisplayName: "Wellness Policy superceded.pdf", NamespacePath: "Company/HR", Locator: "HR/x.pdf", Body: "Older wellness rules that no longer apply to anyone."},
	}
	idx := &fakeIndex{search: returning(archived...)}
	mock := &MockLLMProvider{response: "Check the HR Policies folder or ask HR."}
	o := newOrchestrator(t, idx, mock)

	ans := o.Process(context.Background(), "wellness policy", nil)
	assert.Equal(t, schema.ConfidenceLow, ans.Confidence)
	assert.Equal(t, 0, ans.DocumentsConsidered)
	assert.Empty(t, ans.Sources)
	assert.NotNil(t, ans.Sources)
	assert.True(t, strings.HasPrefix(ans.Text, "I couldn't find any DTCE policy documents"))
	assert.Contains(t, ans.Text, "ask HR")
	assert.Contains(t, mock.last()[0].Content, "No DTCE documents matched this policy question")
}

func TestProcessNoDocumentsStaticGuidance(t *testing.T) {
	idx := &fakeIndex{search: returning()}
	mock := &MockLLMProvider{err: errors.New("model unavailable")}
	o := newOrchestrator(t, idx, mock)

	ans := o.Process(context.Background(), "wellness policy", nil)
	assert.Equal(t, schema.ConfidenceLow, ans.Confidence)
	assert.Contains(t, ans.Text, "Contacting HR")
	assert.NotContains(t, ans.Text, "model unavailable")
}

func TestProcessRetrievalFailure(t *testing.T) {
	idx := &fakeIndex{search: func(retriever.SearchRequest) ([]schema.RetrievedDocument, error) {
		return nil, errors.New("503 service unavailable")
	}}
	mock := &MockLLMProvider{response: "unused"}
	o := newOrchestrator(t, idx, mock)

	ans := o.Process(context.Background(), "wellness policy", nil)
	assert.Equal(t, schema.ConfidenceError, ans.Confidence)
	assert.Equal(t, retrievalFailureText, ans.Text)
	assert.Equal(t, schema.CategoryPolicy, ans.Category)
	assert.Equal(t, 0, mock.calls)
	assert.Equal(t, 2, idx.count())
}

func TestProcessSynthesisFailure(t *testing.T) {
	for name, mock := range map[string]*MockLLMProvider{
		"error": {err: errors.New("context deadline exceeded")},
		"empty": {response: "  \n"},
	} {
		idx := &fakeIndex{search: returning(policyDocs()...)}
		o := newOrchestrator(t, idx, mock)

		ans := o.Process(context.Background(), "wellness policy", nil)
		assert.Equal(t, schema.ConfidenceError, ans.Confidence, name)
		assert.Equal(t, synthesisFailureText, ans.Text, name)
		assert.NotContains(t, ans.Text, "deadline", name)
	}
}

func TestProcessGeneralKnowledgeSkipsRetrieval(t *testing.T) {
	idx := &fakeIndex{search: returning(policyDocs()...)}
	mock := &MockLLMProvider{response: "Hello! How can I help?"}
	o := newOrchestrator(t, idx, mock)

	ans := o.Process(context.Background(), "hello there", nil)
	assert.Equal(t, schema.CategoryGeneral, ans.Category)
	assert.Equal(t, schema.ConfidenceGeneralKnowledge, ans.Confidence)
	assert.Equal(t, 0, idx.count())
	assert.Empty(t, ans.Sources)
	assert.Contains(t, mock.last()[0].Content, "general professional knowledge")
}

func TestProcessRecoversPanics(t *testing.T) {
	idx := &fakeIndex{search: func(retriever.SearchRequest) ([]schema.RetrievedDocument, error) {
		panic("index client exploded")
	}}
	o := newOrchestrator(t, idx, &MockLLMProvider{response: "x"})

	var ans schema.Answer
	require.NotPanics(t, func() {
		ans = o.Process(context.Background(), "wellness policy", nil)
	})
	assert.Equal(t, schema.ConfidenceError, ans.Confidence)
	assert.Equal(t, internalFailureText, ans.Text)
	assert.NotContains(t, ans.Text, "exploded")
}

func TestProcessPassesHistory(t *testing.T) {
	idx := &fakeIndex{search: returning(policyDocs()...)}
	mock := &MockLLMProvider{response: "Yes [2]."}
	o := newOrchestrator(t, idx, mock)

	history := []schema.Turn{
		{Role: "user", Content: "what's our wellness policy"},
		{Role: "assistant", Content: "Two wellness days per year [1]."},
	}
	o.Process(context.Background(), "does the leave policy mention wellness days", history)

	msgs := mock.last()
	require.Len(t, msgs, 4)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Equal(t, history[0].Content, msgs[1].Content)
	assert.Equal(t, llm.RoleAssistant, msgs[2].Role)
	assert.Equal(t, llm.RoleUser, msgs[3].Role)
	assert.True(t, strings.HasPrefix(msgs[3].Content, "Question: does the leave policy mention wellness days"))
}

func TestProcessQueryFilters(t *testing.T) {
	idx := &fakeIndex{search: returning(policyDocs()...)}
	o := newOrchestrator(t, idx, &MockLLMProvider{response: "ok [1]."})

	o.ProcessQuery(context.Background(), schema.Query{RawText: "foundation report", ProjectFilter: "225001", NamespaceFilter: "Projects/225"})

	idx.mu.Lock()
	defer idx.mu.Unlock()
	require.NotEmpty(t, idx.requests)
	f := idx.requests[0].Filter
	require.NotNil(t, f)
	assert.Equal(t, "225001", f.ProjectID)
	assert.Equal(t, []string{"Projects/225"}, f.Namespaces)
}

func TestProcessIdempotent(t *testing.T) {
	idx := &fakeIndex{search: returning(policyDocs()...)}
	o := newOrchestrator(t, idx, &MockLLMProvider{response: "Two days [1]."})

	a := o.Process(context.Background(), "what's our wellness policy", nil)
	b := o.Process(context.Background(), "what's our wellness policy", nil)
	assert.Equal(t, a.Category, b.Category)
	assert.Equal(t, a.Sources, b.Sources)
	assert.Equal(t, a.Confidence, b.Confidence)
}

func TestProcessEmptyQuestion(t *testing.T) {
	idx := &fakeIndex{search: returning()}
	mock := &MockLLMProvider{response: "x"}
	o := newOrchestrator(t, idx, mock)

	ans := o.Process(context.Background(), "   ", nil)
	assert.Equal(t, schema.ConfidenceLow, ans.Confidence)
	assert.Equal(t, 0, mock.calls)
	assert.Equal(t, 0, idx.count())
}

func TestConfidenceRule(t *testing.T) {
	tests := []struct {
		conf    float64
		docs    int
		skipped bool
		want    schema.Confidence
	}{
		{0.9, 3, false, schema.ConfidenceHigh},
		{0.9, 2, false, schema.ConfidenceMedium},
		{0.8, 5, false, schema.ConfidenceMedium},
		{0.7, 1, false, schema.ConfidenceMedium},
		{0.6, 4, false, schema.ConfidenceLow},
		{0.9, 0, false, schema.ConfidenceLow},
		{0, 0, true, schema.ConfidenceGeneralKnowledge},
		{0.95, 0, true, schema.ConfidenceGeneralKnowledge},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, confidenceFor(tt.conf, tt.docs, tt.skipped), "%v/%d/%v", tt.conf, tt.docs, tt.skipped)
	}
}

func TestPostprocess(t *testing.T) {
	tests := []struct {
		name string
		in   string
		docs int
		want string
	}{
		{"plain", "Two days [1].", 2, "Two days [1]."},
		{"document form", "Two days [Document 2].", 2, "Two days [2]."},
		{"source form", "See [Source: Document 1] and [doc 2].", 2, "See [1] and [2]."},
		{"list", "See [1, 2].", 2, "See [1][2]."},
		{"out of range", "Two days [3].", 2, "Two days."},
		{"no documents", "General advice [1].", 0, "General advice."},
		{"sources block", "Answer [1].\n\n**Sources:**\n- a.pdf\n- b.pdf", 1, "Answer [1]."},
		{"sources inline", "Answer [1].\nSources: a.pdf, b.pdf", 1, "Answer [1]."},
		{"sources word kept", "Answer [1].\nSources say otherwise.", 1, "Answer [1].\nSources say otherwise."},
		{"numbered sources", "Answer [1].\n\n### Sources\n1. Wellness Policy.pdf\n2. Leave Policy.pdf\n", 1, "Answer [1]."},
		{"file name sources", "Answer [1].\nSources:\nWellness Policy.pdf", 1, "Answer [1]."},
		{"references mid-answer", "Apply early [1].\nReferences: the HR handbook covers this.\nStaff should apply early.", 1, "Apply early [1].\nReferences: the HR handbook covers this.\nStaff should apply early."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Postprocess(tt.in, tt.docs), tt.name)
	}
}

func TestNewRequiresStages(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)
}
