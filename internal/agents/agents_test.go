package agents

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/research-swarm-service/internal/domain"
	"github.com/helixir/research-swarm-service/internal/llm"
	"github.com/helixir/research-swarm-service/internal/tools"
)

// fakeGenerator serves scripted responses. Generate returns the next
// script entry as plain content; GenerateStructured unmarshals it into
// the output value.
type fakeGenerator struct {
	mu       sync.Mutex
	script   []string
	requests []llm.Request
	err      error
	tokens   int
}

func (g *fakeGenerator) next(req llm.Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return "", g.err
	}
	if len(g.script) == 0 {
		return "", errors.New("fake generator: script exhausted")
	}
	content := g.script[0]
	g.script = g.script[1:]
	return content, nil
}

func (g *fakeGenerator) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	content, err := g.next(req)
	if err != nil {
		return nil, err
	}
	return &llm.Response{Content: content, OutputTokens: g.tokens}, nil
}

func (g *fakeGenerator) GenerateStructured(_ context.Context, req llm.Request, out any) (*llm.Response, error) {
	content, err := g.next(req)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return nil, err
	}
	return &llm.Response{Content: content, OutputTokens: g.tokens}, nil
}

func (g *fakeGenerator) recorded() []llm.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]llm.Request(nil), g.requests...)
}

type fakeSearcher struct {
	result *tools.SearchResult
	err    error
	query  string
	limit  int
}

func (s *fakeSearcher) SearchAllSources(_ context.Context, query string, limit int) (*tools.SearchResult, error) {
	s.query = query
	s.limit = limit
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func searchPapers() []domain.Paper {
	return []domain.Paper{
		{Title: "Sparse Attention", Authors: []string{"Ada One"}, Abstract: "a", CitationCount: intPtr(5), Source: "arxiv"},
		{Title: "Uncited Preprint", Authors: []string{"Bo Two"}, Abstract: "b", Source: "arxiv"},
		{Title: "Attention Is All You Need", Authors: []string{"Cem Three"}, Abstract: "c", CitationCount: intPtr(100), Source: "semantic_scholar"},
	}
}

func intPtr(v int) *int { return &v }

func TestLiteratureAgent_Run(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{script: []string{"The field has converged on attention mechanisms."}, tokens: 42}
	searcher := &fakeSearcher{result: &tools.SearchResult{Papers: searchPapers(), APICalls: 2}}
	agent := NewLiteratureAgent(gen, searcher, 10, 0)

	rc := NewContext(domain.ResearchTopic{Topic: "sparse attention", Field: "machine learning"})
	result, err := agent.Run(context.Background(), rc)
	require.NoError(t, err)

	assert.Equal(t, "sparse attention machine learning", searcher.query)
	assert.Equal(t, 10, searcher.limit)

	require.Len(t, rc.Papers, 3)
	assert.Equal(t, "Attention Is All You Need", rc.Papers[0].Title)
	assert.Equal(t, "Sparse Attention", rc.Papers[1].Title)
	assert.Equal(t, "Uncited Preprint", rc.Papers[2].Title)

	assert.Equal(t, "The field has converged on attention mechanisms.", rc.LiteratureReview)
	assert.Equal(t, 3, result.APICalls)
	assert.Equal(t, 42, result.TokensUsed)

	reqs := gen.recorded()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Prompt, "Attention Is All You Need")
	assert.Contains(t, reqs[0].Prompt, "sparse attention")
}

func TestLiteratureAgent_Run_QueryIncludesKeywords(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{script: []string{"summary"}}
	searcher := &fakeSearcher{result: &tools.SearchResult{Papers: searchPapers()}}
	agent := NewLiteratureAgent(gen, searcher, 10, 0)

	rc := NewContext(domain.ResearchTopic{
		Topic:    "sparse attention",
		Field:    "machine learning",
		Keywords: []string{"routing", " mixture of experts "},
	})
	_, err := agent.Run(context.Background(), rc)
	require.NoError(t, err)

	assert.Equal(t, "sparse attention machine learning routing mixture of experts", searcher.query)
}

func TestLiteratureAgent_Run_RetainsTopN(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{script: []string{"summary"}}
	searcher := &fakeSearcher{result: &tools.SearchResult{Papers: searchPapers()}}
	agent := NewLiteratureAgent(gen, searcher, 10, 2)

	rc := NewContext(domain.ResearchTopic{Topic: "attention"})
	_, err := agent.Run(context.Background(), rc)
	require.NoError(t, err)

	require.Len(t, rc.Papers, 2)
	assert.Equal(t, "Attention Is All You Need", rc.Papers[0].Title)
	assert.Equal(t, "Sparse Attention", rc.Papers[1].Title)
}

func TestLiteratureAgent_Run_NoPapers(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{}
	searcher := &fakeSearcher{result: &tools.SearchResult{}}
	agent := NewLiteratureAgent(gen, searcher, 0, 0)

	rc := NewContext(domain.ResearchTopic{Topic: "an obscure topic"})
	result, err := agent.Run(context.Background(), rc)
	require.NoError(t, err)

	assert.Empty(t, rc.Papers)
	assert.Equal(t, "No relevant literature was found for this topic.", rc.LiteratureReview)
	assert.Empty(t, gen.recorded(), "no summary call expected without papers")
	assert.Zero(t, result.TokensUsed)
}

func TestLiteratureAgent_Run_SearchError(t *testing.T) {
	t.Parallel()

	agent := NewLiteratureAgent(&fakeGenerator{}, &fakeSearcher{err: errors.New("all paper sources failed")}, 0, 0)

	_, err := agent.Run(context.Background(), NewContext(domain.ResearchTopic{Topic: "x"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "literature search")
}

func TestGapAnalysisAgent_Run(t *testing.T) {
	t.Parallel()

	gapsJSON := `[
		{"description": "No benchmark for long-context retrieval", "significance": "Blocks fair comparison", "supporting_evidence": ["Paper A"]},
		{"description": "Energy cost of training is unreported", "significance": "Hinders sustainability analysis"}
	]`
	gen := &fakeGenerator{script: []string{gapsJSON}, tokens: 10}
	agent := NewGapAnalysisAgent(gen)

	rc := NewContext(domain.ResearchTopic{Topic: "long-context retrieval"})
	rc.LiteratureReview = "Prior work focuses on short contexts."
	result, err := agent.Run(context.Background(), rc)
	require.NoError(t, err)

	require.Len(t, rc.Gaps, 2)
	assert.Equal(t, "No benchmark for long-context retrieval", rc.Gaps[0].Description)
	assert.Equal(t, 1, result.APICalls)

	reqs := gen.recorded()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Prompt, "Prior work focuses on short contexts.")
}

func TestHypothesisAgent_Run(t *testing.T) {
	t.Parallel()

	hypothesesJSON := `[
		{"statement": "Sparse routing halves inference cost", "rationale": "Fewer active experts", "testability": "Ablation on fixed corpus"},
		{"statement": "Curriculum ordering improves convergence", "rationale": "Observed in smaller models"}
	]`
	gen := &fakeGenerator{script: []string{hypothesesJSON}}
	agent := NewHypothesisAgent(gen)

	rc := NewContext(domain.ResearchTopic{Topic: "efficient inference"})
	rc.Gaps = []domain.ResearchGap{{Description: "cost unmeasured", Significance: "high"}}
	_, err := agent.Run(context.Background(), rc)
	require.NoError(t, err)

	require.Len(t, rc.Hypotheses, 2)
	require.NotNil(t, rc.PrimaryHypothesis)
	assert.Equal(t, "Sparse routing halves inference cost", rc.PrimaryHypothesis.Statement)
}

func TestMethodologyAgent_Run(t *testing.T) {
	t.Parallel()

	methodologyJSON := `{
		"approach": "Controlled ablation study",
		"data_requirements": ["Public benchmark corpus"],
		"methods": ["Pairwise comparison", "Significance testing"],
		"validation_strategy": "Held-out evaluation with three seeds",
		"limitations": ["Single language"]
	}`
	gen := &fakeGenerator{script: []string{methodologyJSON}}
	agent := NewMethodologyAgent(gen)

	rc := NewContext(domain.ResearchTopic{Topic: "efficient inference"})
	rc.Hypotheses = []domain.Hypothesis{{Statement: "s", Rationale: "r"}}
	rc.PrimaryHypothesis = &rc.Hypotheses[0]
	_, err := agent.Run(context.Background(), rc)
	require.NoError(t, err)

	require.NotNil(t, rc.Methodology)
	assert.Equal(t, "Controlled ablation study", rc.Methodology.Approach)
	assert.Equal(t, []string{"Pairwise comparison", "Significance testing"}, rc.Methodology.Methods)

	reqs := gen.recorded()
	require.Len(t, reqs, 1)
	// No declared complexity falls back to the intermediate directive.
	assert.Contains(t, reqs[0].Prompt, "Complexity Level: intermediate")
	assert.Contains(t, reqs[0].Prompt, "standard study")
}

func TestMethodologyAgent_Run_ScalesToComplexity(t *testing.T) {
	t.Parallel()

	methodologyJSON := `{
		"approach": "a",
		"methods": ["m"],
		"validation_strategy": "v"
	}`

	tests := []struct {
		complexity string
		directive  string
	}{
		{complexity: domain.ComplexityBasic, directive: "Keep the design simple"},
		{complexity: domain.ComplexityIntermediate, directive: "standard study"},
		{complexity: domain.ComplexityAdvanced, directive: "comprehensive multi-method study"},
	}

	for _, tt := range tests {
		t.Run(tt.complexity, func(t *testing.T) {
			t.Parallel()

			gen := &fakeGenerator{script: []string{methodologyJSON}}
			agent := NewMethodologyAgent(gen)

			rc := NewContext(domain.ResearchTopic{Topic: "efficient inference", Complexity: tt.complexity})
			rc.Hypotheses = []domain.Hypothesis{{Statement: "s", Rationale: "r"}}
			rc.PrimaryHypothesis = &rc.Hypotheses[0]
			_, err := agent.Run(context.Background(), rc)
			require.NoError(t, err)

			reqs := gen.recorded()
			require.Len(t, reqs, 1)
			assert.Contains(t, reqs[0].Prompt, "Complexity Level: "+tt.complexity)
			assert.Contains(t, reqs[0].Prompt, tt.directive)
		})
	}
}

func TestWritingAgent_Run(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{
		script: []string{
			"abstract text", "introduction text", "methodology text",
			"results text", "discussion text", "conclusion text",
		},
		tokens: 100,
	}
	agent := NewWritingAgent(gen)

	rc := NewContext(domain.ResearchTopic{Topic: "sparse attention"})
	rc.Papers = []domain.Paper{
		{Title: "Attention Is All You Need", Authors: []string{"Ashish Vaswani"}, PublicationDate: "2017-06-12"},
	}
	rc.LiteratureReview = "review"
	rc.Gaps = []domain.ResearchGap{{Description: "gap one"}}
	rc.Hypotheses = []domain.Hypothesis{{Statement: "h1"}}
	rc.PrimaryHypothesis = &rc.Hypotheses[0]
	rc.Methodology = &domain.Methodology{
		Approach:           "ablation",
		DataRequirements:   []string{"corpus"},
		Methods:            []string{"comparison"},
		ValidationStrategy: "held-out",
	}

	result, err := agent.Run(context.Background(), rc)
	require.NoError(t, err)

	assert.Equal(t, 6, result.APICalls)
	assert.Equal(t, 600, result.TokensUsed)

	require.NotNil(t, rc.Paper)
	assert.Equal(t, "sparse attention", rc.Paper.Title)
	assert.Equal(t, "abstract text", rc.Paper.Sections.Abstract)
	assert.Equal(t, "introduction text", rc.Paper.Sections.Introduction)
	assert.Equal(t, "conclusion text", rc.Paper.Sections.Conclusion)
	require.Len(t, rc.Paper.References, 1)
	assert.Equal(t, "vaswani2017_1", rc.Paper.References[0].Key)

	reqs := gen.recorded()
	require.Len(t, reqs, 6)
	assert.Contains(t, reqs[1].Prompt, "[1] = Attention Is All You Need",
		"introduction prompt should carry the citation reference")
	assert.Equal(t, 400, reqs[0].MaxTokens)
	assert.Equal(t, 3500, reqs[2].MaxTokens)
	for _, req := range reqs {
		assert.True(t, strings.Contains(req.System, "IEEE"), "system prompt should demand IEEE citations")
		assert.Contains(t, req.Prompt, "Complexity Level: intermediate")
	}
}

func TestWritingAgent_Run_SectionFailure(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{script: []string{"abstract text"}}
	agent := NewWritingAgent(gen)

	rc := NewContext(domain.ResearchTopic{Topic: "x"})
	_, err := agent.Run(context.Background(), rc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "writing introduction section")
}

func ethicsJSON(privacy, ai, integrity int) string {
	payload := map[string]any{
		"data_privacy":       map[string]any{"score": privacy, "findings": []string{"uses public data"}},
		"responsible_ai":     map[string]any{"score": ai},
		"research_integrity": map[string]any{"score": integrity},
		"recommendations":    []string{"cite dataset licenses"},
	}
	b, _ := json.Marshal(payload)
	return string(b)
}

func reviewableContext() *Context {
	rc := NewContext(domain.ResearchTopic{Topic: "sparse attention"})
	rc.Paper = &domain.PaperDocument{
		Title: "sparse attention",
		Sections: domain.PaperSections{
			Abstract:    "abstract",
			Methodology: "methodology",
		},
	}
	return rc
}

func TestEthicsAgent_Run_Approved(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{script: []string{ethicsJSON(90, 80, 70)}}
	agent := NewEthicsAgent(gen, 0)

	rc := reviewableContext()
	result, err := agent.Run(context.Background(), rc)
	require.NoError(t, err)

	require.NotNil(t, rc.Ethics)
	assert.Equal(t, 80, rc.Ethics.OverallScore)
	assert.True(t, rc.Ethics.Approved)
	assert.Equal(t, "data_privacy", rc.Ethics.DataPrivacy.Name)
	assert.Equal(t, []string{"cite dataset licenses"}, rc.Ethics.Recommendations)
	assert.Equal(t, 1, result.APICalls)
}

func TestEthicsAgent_Run_Rejected(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{script: []string{ethicsJSON(50, 40, 30)}}
	agent := NewEthicsAgent(gen, 0)

	rc := reviewableContext()
	result, err := agent.Run(context.Background(), rc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "below threshold")

	require.NotNil(t, rc.Ethics, "report must be recorded even on rejection")
	assert.Equal(t, 40, rc.Ethics.OverallScore)
	assert.False(t, rc.Ethics.Approved)
	require.NotNil(t, result, "usage must be reported even on rejection")
	assert.Equal(t, 1, result.APICalls)
}

func TestEthicsAgent_Run_NoPaper(t *testing.T) {
	t.Parallel()

	agent := NewEthicsAgent(&fakeGenerator{}, 0)
	_, err := agent.Run(context.Background(), NewContext(domain.ResearchTopic{Topic: "x"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no paper to review")
}

func TestEthicsAgent_Run_ClampsScores(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{script: []string{ethicsJSON(120, 100, 100)}}
	agent := NewEthicsAgent(gen, 95)

	rc := reviewableContext()
	_, err := agent.Run(context.Background(), rc)
	require.NoError(t, err)
	assert.Equal(t, 100, rc.Ethics.OverallScore)
}
