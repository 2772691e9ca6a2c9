package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/helixir/research-swarm-service/internal/domain"
	"github.com/helixir/research-swarm-service/internal/llm"
)

const ethicsSystemPrompt = `You are a research ethics and compliance reviewer. You assess research
proposals for responsible conduct before publication. Be rigorous but fair: score what the
proposal actually says, not what it omits by reasonable convention.`

// DefaultEthicsPassThreshold is the minimum overall score for approval.
const DefaultEthicsPassThreshold = 60

// EthicsAgent scores the generated paper on data privacy, responsible AI
// use, and research integrity. A paper scoring below the threshold fails
// the stage.
type EthicsAgent struct {
	llm           TextGenerator
	passThreshold int
}

// NewEthicsAgent creates the ethics review agent. A threshold of zero or
// less uses DefaultEthicsPassThreshold.
func NewEthicsAgent(gen TextGenerator, passThreshold int) *EthicsAgent {
	if passThreshold <= 0 {
		passThreshold = DefaultEthicsPassThreshold
	}
	return &EthicsAgent{llm: gen, passThreshold: passThreshold}
}

// Name identifies the agent.
func (a *EthicsAgent) Name() string { return "ethics_agent" }

// Stage returns the pipeline stage this agent serves.
func (a *EthicsAgent) Stage() string { return domain.StageEthicsReview }

// ethicsAssessment is the model-facing shape of the review. The overall
// score and approval are computed locally, not trusted from the model.
type ethicsAssessment struct {
	DataPrivacy       domain.EthicsDimension `json:"data_privacy" validate:"required"`
	ResponsibleAI     domain.EthicsDimension `json:"responsible_ai" validate:"required"`
	ResearchIntegrity domain.EthicsDimension `json:"research_integrity" validate:"required"`
	Recommendations   []string               `json:"recommendations"`
}

// Run reviews the paper and records the report on the context. The report
// is recorded even when the review fails the threshold so callers can see
// why the paper was rejected.
func (a *EthicsAgent) Run(ctx context.Context, rc *Context) (*Result, error) {
	start := time.Now()
	if rc.Paper == nil {
		return nil, fmt.Errorf("ethics review: no paper to review")
	}

	var assessment ethicsAssessment
	resp, err := a.llm.GenerateStructured(ctx, llm.Request{
		System: ethicsSystemPrompt,
		Prompt: a.buildPrompt(rc),
	}, &assessment)
	if err != nil {
		return nil, fmt.Errorf("ethics review: %w", err)
	}

	report := &domain.EthicsReport{
		DataPrivacy:       assessment.DataPrivacy,
		ResponsibleAI:     assessment.ResponsibleAI,
		ResearchIntegrity: assessment.ResearchIntegrity,
		Recommendations:   assessment.Recommendations,
	}
	report.DataPrivacy.Name = "data_privacy"
	report.ResponsibleAI.Name = "responsible_ai"
	report.ResearchIntegrity.Name = "research_integrity"
	report.OverallScore = (clampScore(report.DataPrivacy.Score) +
		clampScore(report.ResponsibleAI.Score) +
		clampScore(report.ResearchIntegrity.Score)) / 3
	report.Approved = report.OverallScore >= a.passThreshold
	rc.Ethics = report

	result := &Result{
		Agent:      a.Name(),
		Stage:      a.Stage(),
		TokensUsed: resp.TotalTokens(),
		APICalls:   1,
		Duration:   time.Since(start),
	}
	if !report.Approved {
		return result, fmt.Errorf("ethics review rejected paper: overall score %d below threshold %d",
			report.OverallScore, a.passThreshold)
	}
	return result, nil
}

func (a *EthicsAgent) buildPrompt(rc *Context) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Review this research proposal on %q for ethics compliance.\n\n", rc.Topic.Topic)
	fmt.Fprintf(&sb, "Abstract:\n%s\n\n", rc.Paper.Sections.Abstract)
	fmt.Fprintf(&sb, "Methodology:\n%s\n\n", rc.Paper.Sections.Methodology)
	sb.WriteString(`Score each dimension from 0 to 100:
- data_privacy: handling of personal or sensitive data, consent, anonymization
- responsible_ai: bias awareness, transparency, appropriate use of AI methods
- research_integrity: honest framing of expected results, proper attribution, reproducibility

Respond with a JSON object:
{
  "data_privacy": {"score": <0-100>, "findings": ["..."]},
  "responsible_ai": {"score": <0-100>, "findings": ["..."]},
  "research_integrity": {"score": <0-100>, "findings": ["..."]},
  "recommendations": ["..."]
}`)
	return sb.String()
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
