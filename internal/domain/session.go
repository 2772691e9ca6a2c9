package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the lifecycle state of a research session.
type SessionStatus string

// Session lifecycle states.
const (
	SessionStatusConfiguring SessionStatus = "configuring"
	SessionStatusRunning     SessionStatus = "running"
	SessionStatusCompleted   SessionStatus = "completed"
	SessionStatusFailed      SessionStatus = "failed"
)

// validStatusTransitions defines the allowed session state machine transitions.
// A session that is stopped before starting goes straight from configuring to failed.
var validStatusTransitions = map[SessionStatus][]SessionStatus{
	SessionStatusConfiguring: {SessionStatusRunning, SessionStatusFailed},
	SessionStatusRunning:     {SessionStatusCompleted, SessionStatusFailed},
	SessionStatusCompleted:   {},
	SessionStatusFailed:      {},
}

// IsValidStatusTransition reports whether moving from one session status
// to another is allowed by the state machine.
func IsValidStatusTransition(from, to SessionStatus) bool {
	for _, allowed := range validStatusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status is a final state.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusFailed
}

// StageStatus represents the state of a single pipeline stage.
type StageStatus string

// Pipeline stage states.
const (
	StageStatusPending   StageStatus = "pending"
	StageStatusRunning   StageStatus = "running"
	StageStatusCompleted StageStatus = "completed"
	StageStatusFailed    StageStatus = "failed"
)

// Pipeline stage names in execution order.
const (
	StageLiteratureReview     = "literature_review"
	StageGapAnalysis          = "gap_analysis"
	StageHypothesisGeneration = "hypothesis_generation"
	StageMethodology          = "methodology"
	StageWriting              = "writing"
	StageEthicsReview         = "ethics_review"
)

// StageOrder is the fixed execution order of the research pipeline.
var StageOrder = []string{
	StageLiteratureReview,
	StageGapAnalysis,
	StageHypothesisGeneration,
	StageMethodology,
	StageWriting,
	StageEthicsReview,
}

// StageDisplayNames maps stage identifiers to human-readable names
// surfaced through the API.
var StageDisplayNames = map[string]string{
	StageLiteratureReview:     "Literature Review",
	StageGapAnalysis:          "Gap Analysis",
	StageHypothesisGeneration: "Hypothesis Generation",
	StageMethodology:          "Methodology Design",
	StageWriting:              "Paper Writing",
	StageEthicsReview:         "Ethics Review",
}

// StageState tracks the progress of one pipeline stage within a session.
type StageState struct {
	Name        string      `json:"name"`
	DisplayName string      `json:"display_name"`
	Status      StageStatus `json:"status"`
	Progress    int         `json:"progress"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// NewStageStates returns the six pipeline stages in execution order,
// all pending with zero progress.
func NewStageStates() []StageState {
	stages := make([]StageState, 0, len(StageOrder))
	for _, name := range StageOrder {
		stages = append(stages, StageState{
			Name:        name,
			DisplayName: StageDisplayNames[name],
			Status:      StageStatusPending,
		})
	}
	return stages
}

// AgentActivity describes one agent's contribution to the session.
type AgentActivity struct {
	Name       string `json:"name"`
	Stage      string `json:"stage"`
	Status     string `json:"status"`
	Tokens     int    `json:"tokens"`
	DurationMS int64  `json:"duration_ms"`
}

// SessionMetrics aggregates counters and quality scores for a session.
type SessionMetrics struct {
	TotalAgents      int     `json:"total_agents"`
	ActiveAgents     int     `json:"active_agents"`
	TasksCompleted   int     `json:"tasks_completed"`
	TotalTokens      int     `json:"total_tokens"`
	APICalls         int     `json:"api_calls"`
	PapersAnalyzed   int     `json:"papers_analyzed"`
	OriginalityScore int     `json:"originality_score"`
	NoveltyScore     int     `json:"novelty_score"`
	EthicsScore      int     `json:"ethics_score"`
	DurationSeconds  float64 `json:"duration_seconds"`
}

// Complexity levels a research topic can declare. The methodology and
// writing agents scale their output to the declared level.
const (
	ComplexityBasic        = "basic"
	ComplexityIntermediate = "intermediate"
	ComplexityAdvanced     = "advanced"
)

// DefaultComplexity is used when a topic declares no complexity.
const DefaultComplexity = ComplexityIntermediate

// ValidComplexity reports whether the value is a known complexity level.
func ValidComplexity(c string) bool {
	switch c {
	case ComplexityBasic, ComplexityIntermediate, ComplexityAdvanced:
		return true
	}
	return false
}

// ResearchTopic is the configuration a session runs against.
type ResearchTopic struct {
	Topic       string   `json:"topic"`
	Field       string   `json:"field,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Complexity  string   `json:"complexity,omitempty"`
	Constraints []string `json:"constraints,omitempty"`
}

// SessionState is the full observable state of a research session.
// Snapshots handed out to readers are deep copies; see Clone.
type SessionState struct {
	ID           uuid.UUID       `json:"id"`
	Status       SessionStatus   `json:"status"`
	Topic        ResearchTopic   `json:"topic"`
	Stages       []StageState    `json:"stages"`
	CurrentStage string          `json:"current_stage,omitempty"`
	Progress     int             `json:"progress"`
	Metrics      SessionMetrics  `json:"metrics"`
	Agents       []AgentActivity `json:"agents,omitempty"`
	Paper        *PaperDocument  `json:"paper,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// NewSessionState creates a session in the configuring state with all
// stages pending.
func NewSessionState(topic ResearchTopic) *SessionState {
	now := time.Now().UTC()
	return &SessionState{
		ID:        uuid.New(),
		Status:    SessionStatusConfiguring,
		Topic:     topic,
		Stages:    NewStageStates(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy of the session state. Readers receive clones
// so they never observe concurrent mutation.
func (s *SessionState) Clone() *SessionState {
	cp := *s

	cp.Stages = make([]StageState, len(s.Stages))
	copy(cp.Stages, s.Stages)

	if len(s.Agents) > 0 {
		cp.Agents = make([]AgentActivity, len(s.Agents))
		copy(cp.Agents, s.Agents)
	}
	if len(s.Topic.Keywords) > 0 {
		cp.Topic.Keywords = append([]string(nil), s.Topic.Keywords...)
	}
	if len(s.Topic.Constraints) > 0 {
		cp.Topic.Constraints = append([]string(nil), s.Topic.Constraints...)
	}
	if s.StartedAt != nil {
		t := *s.StartedAt
		cp.StartedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		cp.CompletedAt = &t
	}
	if s.Paper != nil {
		cp.Paper = s.Paper.Clone()
	}
	return &cp
}

// StageIndex returns the position of the named stage in the pipeline
// order, or -1 when unknown.
func StageIndex(name string) int {
	for i, s := range StageOrder {
		if s == name {
			return i
		}
	}
	return -1
}
