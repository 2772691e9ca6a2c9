package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/helixir/research-swarm-service/internal/domain"
	"github.com/helixir/research-swarm-service/internal/llm"
)

const gapAnalysisSystemPrompt = `You are an expert research analyst specializing in identifying research gaps.
Analyze existing literature and identify underexplored areas and opportunities for novel contributions.`

// GapAnalysisAgent identifies research gaps from the literature review.
type GapAnalysisAgent struct {
	llm TextGenerator
}

// NewGapAnalysisAgent creates the gap analysis agent.
func NewGapAnalysisAgent(gen TextGenerator) *GapAnalysisAgent {
	return &GapAnalysisAgent{llm: gen}
}

// Name identifies the agent.
func (a *GapAnalysisAgent) Name() string { return "gap_analysis_agent" }

// Stage returns the pipeline stage this agent serves.
func (a *GapAnalysisAgent) Stage() string { return domain.StageGapAnalysis }

// Run produces 3-5 structured research gaps from the literature review.
func (a *GapAnalysisAgent) Run(ctx context.Context, rc *Context) (*Result, error) {
	start := time.Now()

	prompt := fmt.Sprintf(`Research Topic: %s

Literature Summary:
%s

Identify 3-5 specific research gaps and opportunities. Return a JSON array of objects
with fields "description", "significance", and "supporting_evidence" (array of strings).`,
		rc.Topic.Topic, rc.LiteratureReview)

	var gaps []domain.ResearchGap
	resp, err := a.llm.GenerateStructured(ctx, llm.Request{
		System: gapAnalysisSystemPrompt,
		Prompt: prompt,
	}, &gaps)
	if err != nil {
		return nil, fmt.Errorf("gap analysis: %w", err)
	}

	rc.Gaps = gaps
	return &Result{
		Agent:      a.Name(),
		Stage:      a.Stage(),
		TokensUsed: resp.TotalTokens(),
		APICalls:   1,
		Duration:   time.Since(start),
	}, nil
}
