package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/helixir/research-swarm-service/internal/domain"
	"github.com/helixir/research-swarm-service/internal/llm"
)

const literatureSystemPrompt = `You are an expert academic researcher specializing in literature review.
Your task is to analyze and summarize academic papers to provide a comprehensive overview
of the current state of research on a given topic.`

// Default limits for the literature search.
const (
	DefaultMaxPapersPerSource = 20
	DefaultMaxPapersRetained  = 15
)

// LiteratureAgent searches the configured paper sources and summarizes
// the retrieved corpus into a literature review.
type LiteratureAgent struct {
	llm       TextGenerator
	searcher  SourceSearcher
	perSource int
	retained  int
}

// NewLiteratureAgent creates the literature review agent. Non-positive
// limits fall back to the defaults.
func NewLiteratureAgent(gen TextGenerator, searcher SourceSearcher, perSource, retained int) *LiteratureAgent {
	if perSource <= 0 {
		perSource = DefaultMaxPapersPerSource
	}
	if retained <= 0 {
		retained = DefaultMaxPapersRetained
	}
	return &LiteratureAgent{
		llm:       gen,
		searcher:  searcher,
		perSource: perSource,
		retained:  retained,
	}
}

// Name identifies the agent.
func (a *LiteratureAgent) Name() string { return "literature_agent" }

// Stage returns the pipeline stage this agent serves.
func (a *LiteratureAgent) Stage() string { return domain.StageLiteratureReview }

// Run searches all sources, retains the most cited papers, and produces
// a literature review summary. Finding no papers is not an error; the
// review records that the search came up empty.
func (a *LiteratureAgent) Run(ctx context.Context, rc *Context) (*Result, error) {
	start := time.Now()
	result := &Result{Agent: a.Name(), Stage: a.Stage()}

	query := buildSearchQuery(rc.Topic)
	searchResult, err := a.searcher.SearchAllSources(ctx, query, a.perSource)
	if err != nil {
		return nil, fmt.Errorf("literature search: %w", err)
	}
	result.APICalls += searchResult.APICalls

	rc.Papers = selectTopPapers(searchResult.Papers, a.retained)
	if len(rc.Papers) == 0 {
		rc.LiteratureReview = "No relevant literature was found for this topic."
		result.Duration = time.Since(start)
		return result, nil
	}

	resp, err := a.llm.Generate(ctx, llm.Request{
		System: literatureSystemPrompt,
		Prompt: buildSummaryPrompt(rc.Topic, rc.Papers),
	})
	if err != nil {
		return nil, fmt.Errorf("literature summary: %w", err)
	}
	result.TokensUsed += resp.TotalTokens()
	result.APICalls++

	rc.LiteratureReview = resp.Content
	result.Duration = time.Since(start)
	return result, nil
}

// buildSearchQuery combines the topic with its field and keywords for
// broader recall.
func buildSearchQuery(topic domain.ResearchTopic) string {
	parts := []string{topic.Topic}
	if topic.Field != "" {
		parts = append(parts, topic.Field)
	}
	for _, kw := range topic.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			parts = append(parts, kw)
		}
	}
	return strings.Join(parts, " ")
}

// selectTopPapers orders papers by citation count descending (unknown
// counts last, original order preserved within ties) and keeps the first n.
func selectTopPapers(papers []domain.Paper, n int) []domain.Paper {
	if len(papers) == 0 {
		return nil
	}

	ranked := make([]domain.Paper, len(papers))
	copy(ranked, papers)
	sort.SliceStable(ranked, func(i, j int) bool {
		return citationRank(&ranked[i]) > citationRank(&ranked[j])
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func citationRank(p *domain.Paper) int {
	if p.CitationCount == nil {
		return -1
	}
	return *p.CitationCount
}

// buildSummaryPrompt lays out the retained papers for summarization.
func buildSummaryPrompt(topic domain.ResearchTopic, papers []domain.Paper) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Research Topic: %s\n", topic.Topic)
	if topic.Field != "" {
		fmt.Fprintf(&sb, "Field: %s\n", topic.Field)
	}
	if len(topic.Constraints) > 0 {
		fmt.Fprintf(&sb, "Constraints: %s\n", strings.Join(topic.Constraints, "; "))
	}

	sb.WriteString("\nAnalyze these papers and provide a literature review summary:\n")
	for i := range papers {
		p := &papers[i]
		fmt.Fprintf(&sb, "\nTitle: %s\nAuthors: %s\nAbstract: %s\n",
			p.Title, strings.Join(p.Authors, ", "), p.Abstract)
	}
	return sb.String()
}
