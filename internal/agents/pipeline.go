package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/research-swarm-service/internal/domain"
)

// Hooks receive pipeline progress callbacks. All fields are optional.
type Hooks struct {
	// OnStageStart fires before a stage's agent runs.
	OnStageStart func(stage string)
	// OnStageEnd fires after a stage's agent returns, with its error if any.
	OnStageEnd func(stage string, result *Result, err error)
	// OnProgress fires with the overall pipeline progress in percent.
	// Reported values never decrease within a run.
	OnProgress func(stage string, overall int)
}

// Pipeline runs the research agents through the fixed stage order,
// accumulating context between stages and stopping on the first failure.
type Pipeline struct {
	agents       []Agent
	hooks        Hooks
	logger       zerolog.Logger
	stageTimeout time.Duration
}

// NewPipeline builds a pipeline from the given agents. The agents must
// cover every pipeline stage in execution order.
func NewPipeline(agents []Agent, hooks Hooks, logger zerolog.Logger, stageTimeout time.Duration) (*Pipeline, error) {
	if len(agents) != len(domain.StageOrder) {
		return nil, fmt.Errorf("pipeline requires %d agents, got %d", len(domain.StageOrder), len(agents))
	}
	for i, agent := range agents {
		if agent.Stage() != domain.StageOrder[i] {
			return nil, fmt.Errorf("agent %d serves stage %q, want %q", i, agent.Stage(), domain.StageOrder[i])
		}
	}
	return &Pipeline{
		agents:       agents,
		hooks:        hooks,
		logger:       logger.With().Str("component", "research_pipeline").Logger(),
		stageTimeout: stageTimeout,
	}, nil
}

// Run executes all stages in order against a fresh research context.
// The returned context holds everything produced so far, including on
// failure, so callers can persist partial results.
func (p *Pipeline) Run(ctx context.Context, topic domain.ResearchTopic) (*Context, error) {
	rc := NewContext(topic)
	total := len(p.agents)

	for i, agent := range p.agents {
		stage := agent.Stage()
		p.reportProgress(stage, i*100/total)
		if p.hooks.OnStageStart != nil {
			p.hooks.OnStageStart(stage)
		}
		p.logger.Info().Str("stage", stage).Str("agent", agent.Name()).Msg("stage started")

		result, err := p.runStage(ctx, agent, rc)
		if result != nil {
			rc.TokensUsed += result.TokensUsed
			rc.APICalls += result.APICalls
			rc.Activities = append(rc.Activities, domain.AgentActivity{
				Name:       result.Agent,
				Stage:      result.Stage,
				Status:     activityStatus(err),
				Tokens:     result.TokensUsed,
				DurationMS: result.Duration.Milliseconds(),
			})
		}
		if p.hooks.OnStageEnd != nil {
			p.hooks.OnStageEnd(stage, result, err)
		}
		if err != nil {
			p.logger.Error().Err(err).Str("stage", stage).Msg("stage failed")
			return rc, domain.NewStageError(stage, err)
		}

		p.logger.Info().
			Str("stage", stage).
			Int("tokens", result.TokensUsed).
			Dur("duration", result.Duration).
			Msg("stage completed")
		p.reportProgress(stage, (i+1)*100/total)
	}

	return rc, nil
}

func (p *Pipeline) runStage(ctx context.Context, agent Agent, rc *Context) (*Result, error) {
	if p.stageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.stageTimeout)
		defer cancel()
	}
	return agent.Run(ctx, rc)
}

func (p *Pipeline) reportProgress(stage string, overall int) {
	if p.hooks.OnProgress != nil {
		p.hooks.OnProgress(stage, overall)
	}
}

func activityStatus(err error) string {
	if err != nil {
		return "failed"
	}
	return "completed"
}
