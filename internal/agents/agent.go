// Package agents implements the research swarm: six specialized agents
// that together take a topic from literature search to an ethics-reviewed
// paper draft, plus the pipeline that runs them in order.
package agents

import (
	"context"
	"time"

	"github.com/helixir/research-swarm-service/internal/domain"
	"github.com/helixir/research-swarm-service/internal/llm"
	"github.com/helixir/research-swarm-service/internal/tools"
)

// TextGenerator is the LLM surface agents depend on.
type TextGenerator interface {
	Generate(ctx context.Context, req llm.Request) (*llm.Response, error)
	GenerateStructured(ctx context.Context, req llm.Request, out any) (*llm.Response, error)
}

// SourceSearcher is the literature search surface agents depend on.
type SourceSearcher interface {
	SearchAllSources(ctx context.Context, query string, limit int) (*tools.SearchResult, error)
}

// Context accumulates the artifacts produced by each pipeline stage.
// Each agent reads the fields of earlier stages and writes its own.
type Context struct {
	Topic domain.ResearchTopic

	// Literature review stage.
	Papers           []domain.Paper
	LiteratureReview string

	// Gap analysis stage.
	Gaps []domain.ResearchGap

	// Hypothesis generation stage.
	Hypotheses        []domain.Hypothesis
	PrimaryHypothesis *domain.Hypothesis

	// Methodology stage.
	Methodology *domain.Methodology

	// Writing stage.
	Paper *domain.PaperDocument

	// Ethics review stage.
	Ethics *domain.EthicsReport

	// Accumulated usage across stages.
	TokensUsed int
	APICalls   int
	Activities []domain.AgentActivity
}

// NewContext creates a pipeline context for the given topic.
func NewContext(topic domain.ResearchTopic) *Context {
	return &Context{Topic: topic}
}

// Result reports one agent's resource usage for a finished stage.
type Result struct {
	Agent      string
	Stage      string
	TokensUsed int
	APICalls   int
	Duration   time.Duration
}

// Agent is a single member of the research swarm.
type Agent interface {
	// Name identifies the agent (e.g. "literature_agent").
	Name() string

	// Stage returns the pipeline stage this agent serves.
	Stage() string

	// Run executes the agent against the accumulated context, mutating
	// it with the stage's artifacts.
	Run(ctx context.Context, rc *Context) (*Result, error)
}
