package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/helixir/research-swarm-service/internal/domain"
	"github.com/helixir/research-swarm-service/internal/llm"
)

const hypothesisSystemPrompt = `You are an expert research scientist specializing in hypothesis generation.
Propose novel, testable research hypotheses based on identified gaps in the literature.`

// HypothesisAgent turns identified gaps into testable hypotheses and
// selects a primary one for the methodology stage.
type HypothesisAgent struct {
	llm TextGenerator
}

// NewHypothesisAgent creates the hypothesis generation agent.
func NewHypothesisAgent(gen TextGenerator) *HypothesisAgent {
	return &HypothesisAgent{llm: gen}
}

// Name identifies the agent.
func (a *HypothesisAgent) Name() string { return "hypothesis_agent" }

// Stage returns the pipeline stage this agent serves.
func (a *HypothesisAgent) Stage() string { return domain.StageHypothesisGeneration }

// Run generates structured hypotheses from the gaps. The first hypothesis
// becomes the primary one driving the methodology design.
func (a *HypothesisAgent) Run(ctx context.Context, rc *Context) (*Result, error) {
	start := time.Now()

	var gapsText strings.Builder
	for _, gap := range rc.Gaps {
		fmt.Fprintf(&gapsText, "- %s (%s)\n", gap.Description, gap.Significance)
	}

	prompt := fmt.Sprintf(`Research Topic: %s
Field: %s

Research Gaps:
%s
Generate 3-5 novel research hypotheses ordered from most to least promising.
Return a JSON array of objects with fields "statement", "rationale", and "testability".`,
		rc.Topic.Topic, rc.Topic.Field, gapsText.String())

	var hypotheses []domain.Hypothesis
	resp, err := a.llm.GenerateStructured(ctx, llm.Request{
		System: hypothesisSystemPrompt,
		Prompt: prompt,
	}, &hypotheses)
	if err != nil {
		return nil, fmt.Errorf("hypothesis generation: %w", err)
	}

	rc.Hypotheses = hypotheses
	rc.PrimaryHypothesis = &rc.Hypotheses[0]

	return &Result{
		Agent:      a.Name(),
		Stage:      a.Stage(),
		TokensUsed: resp.TotalTokens(),
		APICalls:   1,
		Duration:   time.Since(start),
	}, nil
}
