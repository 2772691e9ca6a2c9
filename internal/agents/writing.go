package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/helixir/research-swarm-service/internal/domain"
	"github.com/helixir/research-swarm-service/internal/llm"
	"github.com/helixir/research-swarm-service/internal/paper"
)

const writingSystemPrompt = `You are an expert academic writer with extensive experience in scholarly publishing.
You are writing a RESEARCH PROPOSAL that presents a planned original study based on identified
gaps in the literature.

Requirements:
- Use ONLY numbered IEEE-style citations: [1], [2], never (Author, Year).
- All sections must discuss the same research focus; do not introduce new topics.
- No placeholder text such as "[Insert IRB Approval Number]".
- FUTURE TENSE for proposed work, present tense for established facts.
- Write coherent paragraphs of plain academic prose, no markdown or bullet points.
- Do not include section titles in the output.`

// sectionTokenBudget allocates completion tokens per paper section.
var sectionTokenBudget = map[string]int{
	"abstract":     400,
	"introduction": 2800,
	"methodology":  3500,
	"results":      2800,
	"discussion":   3200,
	"conclusion":   800,
}

// WritingAgent composes the research paper section by section and
// assembles the final document with references from the retained papers.
type WritingAgent struct {
	llm TextGenerator
}

// NewWritingAgent creates the paper writing agent.
func NewWritingAgent(gen TextGenerator) *WritingAgent {
	return &WritingAgent{llm: gen}
}

// Name identifies the agent.
func (a *WritingAgent) Name() string { return "writing_agent" }

// Stage returns the pipeline stage this agent serves.
func (a *WritingAgent) Stage() string { return domain.StageWriting }

// Run generates the six required sections in order and builds the paper
// document. Results are framed as expected findings since the study is
// proposed, not executed.
func (a *WritingAgent) Run(ctx context.Context, rc *Context) (*Result, error) {
	start := time.Now()
	result := &Result{Agent: a.Name(), Stage: a.Stage()}

	var sections domain.PaperSections
	for _, name := range domain.SectionNames() {
		resp, err := a.llm.Generate(ctx, llm.Request{
			System:    writingSystemPrompt,
			Prompt:    a.sectionPrompt(name, rc),
			MaxTokens: sectionTokenBudget[name],
		})
		if err != nil {
			return nil, fmt.Errorf("writing %s section: %w", name, err)
		}
		setSection(&sections, name, strings.TrimSpace(resp.Content))
		result.TokensUsed += resp.TotalTokens()
		result.APICalls++
	}

	rc.Paper = paper.BuildDocument(rc.Topic.Topic, sections, rc.Papers)
	result.Duration = time.Since(start)
	return result, nil
}

// setSection assigns generated text to the named section.
func setSection(s *domain.PaperSections, name, content string) {
	switch name {
	case "abstract":
		s.Abstract = content
	case "introduction":
		s.Introduction = content
	case "methodology":
		s.Methodology = content
	case "results":
		s.Results = content
	case "discussion":
		s.Discussion = content
	case "conclusion":
		s.Conclusion = content
	}
}

// sectionPrompt builds the prompt for one section from the accumulated
// research context.
func (a *WritingAgent) sectionPrompt(name string, rc *Context) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Research Topic: %s\n", rc.Topic.Topic)
	if rc.Topic.Field != "" {
		fmt.Fprintf(&sb, "Field: %s\n", rc.Topic.Field)
	}
	if len(rc.Topic.Keywords) > 0 {
		fmt.Fprintf(&sb, "Keywords: %s\n", strings.Join(rc.Topic.Keywords, ", "))
	}
	fmt.Fprintf(&sb, "Complexity Level: %s\n", topicComplexity(rc.Topic))

	switch name {
	case "abstract":
		sb.WriteString("\nWrite a research proposal abstract (250-350 words) as 2-3 flowing paragraphs: ")
		sb.WriteString("background and gap, objectives and approach, expected contributions. ")
		sb.WriteString("Do not include any citations in the abstract.\n")
		fmt.Fprintf(&sb, "\nPrimary Hypothesis: %s\n", primaryStatement(rc))
	case "introduction":
		sb.WriteString("\nWrite the Introduction: background and context, a review of the literature below, ")
		sb.WriteString("the research gap this study addresses, and the study objectives in future tense.\n")
		fmt.Fprintf(&sb, "\nLiterature Summary:\n%s\n", rc.LiteratureReview)
		fmt.Fprintf(&sb, "\nResearch Gaps:\n%s\n", formatGaps(rc.Gaps))
		sb.WriteString(citationReference(rc.Papers))
	case "methodology":
		sb.WriteString("\nWrite the Methodology: research design, data sources, collection procedures, ")
		sb.WriteString("analysis methods, validation strategy, and ethical considerations, all in future tense.\n")
		if rc.Methodology != nil {
			fmt.Fprintf(&sb, "\nMethodology Framework:\nApproach: %s\nMethods: %s\nData Requirements: %s\nValidation: %s\n",
				rc.Methodology.Approach,
				strings.Join(rc.Methodology.Methods, "; "),
				strings.Join(rc.Methodology.DataRequirements, "; "),
				rc.Methodology.ValidationStrategy)
		}
		sb.WriteString(citationReference(rc.Papers))
	case "results":
		sb.WriteString("\nWrite the Results section describing EXPECTED findings for this proposed study. ")
		sb.WriteString("Frame every finding as anticipated or projected; the study has not been executed.\n")
		fmt.Fprintf(&sb, "\nHypotheses:\n%s\n", formatHypotheses(rc.Hypotheses))
	case "discussion":
		sb.WriteString("\nWrite the Discussion: interpret the expected findings against the literature, ")
		sb.WriteString("implications, limitations, and future work.\n")
		fmt.Fprintf(&sb, "\nResearch Gaps:\n%s\n", formatGaps(rc.Gaps))
		if rc.Methodology != nil && len(rc.Methodology.Limitations) > 0 {
			fmt.Fprintf(&sb, "\nKnown Limitations:\n- %s\n", strings.Join(rc.Methodology.Limitations, "\n- "))
		}
		sb.WriteString(citationReference(rc.Papers))
	case "conclusion":
		sb.WriteString("\nWrite the Conclusion: restate the gap and objectives, summarize the proposed ")
		sb.WriteString("approach and expected contributions, and close with the study's potential impact.\n")
		fmt.Fprintf(&sb, "\nPrimary Hypothesis: %s\n", primaryStatement(rc))
	}

	return sb.String()
}

func primaryStatement(rc *Context) string {
	if rc.PrimaryHypothesis == nil {
		return ""
	}
	return rc.PrimaryHypothesis.Statement
}

func formatGaps(gaps []domain.ResearchGap) string {
	var sb strings.Builder
	for _, gap := range gaps {
		fmt.Fprintf(&sb, "- %s\n", gap.Description)
	}
	return sb.String()
}

func formatHypotheses(hypotheses []domain.Hypothesis) string {
	var sb strings.Builder
	for _, h := range hypotheses {
		fmt.Fprintf(&sb, "- %s\n", h.Statement)
	}
	return sb.String()
}

// citationReference lists the numbered sources so the model keeps
// citation numbers consistent across sections.
func citationReference(papers []domain.Paper) string {
	if len(papers) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\nCITATION REFERENCE (keep numbers consistent across ALL sections):\n")
	for i := range papers {
		title := papers[i].Title
		if len(title) > 80 {
			title = title[:80]
		}
		fmt.Fprintf(&sb, "[%d] = %s\n", i+1, title)
	}
	return sb.String()
}
