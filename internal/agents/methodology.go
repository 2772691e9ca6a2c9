package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/helixir/research-swarm-service/internal/domain"
	"github.com/helixir/research-swarm-service/internal/llm"
)

const methodologySystemPrompt = `You are an expert research methodologist.
Design rigorous, appropriate research methodologies for testing hypotheses.`

// MethodologyAgent designs the study for the primary hypothesis.
type MethodologyAgent struct {
	llm TextGenerator
}

// NewMethodologyAgent creates the methodology design agent.
func NewMethodologyAgent(gen TextGenerator) *MethodologyAgent {
	return &MethodologyAgent{llm: gen}
}

// Name identifies the agent.
func (a *MethodologyAgent) Name() string { return "methodology_agent" }

// Stage returns the pipeline stage this agent serves.
func (a *MethodologyAgent) Stage() string { return domain.StageMethodology }

// Run produces a structured methodology for the primary hypothesis,
// covering the remaining hypotheses as secondary considerations.
func (a *MethodologyAgent) Run(ctx context.Context, rc *Context) (*Result, error) {
	start := time.Now()

	var hypothesesText strings.Builder
	for _, h := range rc.Hypotheses {
		fmt.Fprintf(&hypothesesText, "- %s: %s\n", h.Statement, h.Rationale)
	}

	primary := ""
	if rc.PrimaryHypothesis != nil {
		primary = rc.PrimaryHypothesis.Statement
	}

	prompt := fmt.Sprintf(`Research Topic: %s
Complexity Level: %s
Primary Hypothesis: %s

All Hypotheses:
%s
Design a research methodology for testing the primary hypothesis. %s
Return a JSON object with fields "approach" (string), "data_requirements" (array of strings),
"methods" (array of strings), "validation_strategy" (string), and "limitations" (array of strings).`,
		rc.Topic.Topic, topicComplexity(rc.Topic), primary, hypothesesText.String(),
		complexityDirective(rc.Topic))

	var methodology domain.Methodology
	resp, err := a.llm.GenerateStructured(ctx, llm.Request{
		System: methodologySystemPrompt,
		Prompt: prompt,
	}, &methodology)
	if err != nil {
		return nil, fmt.Errorf("methodology design: %w", err)
	}

	rc.Methodology = &methodology
	return &Result{
		Agent:      a.Name(),
		Stage:      a.Stage(),
		TokensUsed: resp.TotalTokens(),
		APICalls:   1,
		Duration:   time.Since(start),
	}, nil
}

// topicComplexity returns the declared complexity, defaulting when unset.
func topicComplexity(topic domain.ResearchTopic) string {
	if domain.ValidComplexity(topic.Complexity) {
		return topic.Complexity
	}
	return domain.DefaultComplexity
}

// complexityDirective scales the study design instructions to the
// topic's declared complexity level.
func complexityDirective(topic domain.ResearchTopic) string {
	switch topicComplexity(topic) {
	case domain.ComplexityBasic:
		return "Keep the design simple: a single primary method, one dataset, and a straightforward validation step suitable for an exploratory study."
	case domain.ComplexityAdvanced:
		return "Design a comprehensive multi-method study: complementary methods, multiple datasets or conditions, ablations, and a rigorous validation strategy with statistical controls."
	default:
		return "Design a solid standard study: one or two complementary methods with a clear validation strategy."
	}
}
