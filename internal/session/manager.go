// Package session manages research session lifecycles: the
// configuring/running/completed/failed state machine, one background
// pipeline task per session, and orphan recovery after restarts.
package session

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/research-swarm-service/internal/agents"
	"github.com/helixir/research-swarm-service/internal/dedup"
	"github.com/helixir/research-swarm-service/internal/domain"
	"github.com/helixir/research-swarm-service/internal/observability"
)

// InterruptedMessage is recorded on sessions found running after a restart.
const InterruptedMessage = "Session interrupted due to backend restart"

// CancelledMessage is recorded on sessions stopped while running.
const CancelledMessage = "Session cancelled by user"

// PipelineRunner executes the research pipeline for a topic.
type PipelineRunner interface {
	Run(ctx context.Context, topic domain.ResearchTopic) (*agents.Context, error)
}

// Store persists session state. Implementations must tolerate repeated
// Save calls with the same snapshot.
type Store interface {
	Create(ctx context.Context, state *domain.SessionState) error
	Save(ctx context.Context, state *domain.SessionState) error
	MarkInterrupted(ctx context.Context, message string) (int64, error)
}

// Publisher emits session lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, event *domain.SessionEvent) error
}

// RunnerFactory builds a pipeline runner per session. Hooks are wired by
// the manager to track stage progress.
type RunnerFactory func(hooks agents.Hooks) (PipelineRunner, error)

type sessionTask struct {
	state   *domain.SessionState
	cancel  context.CancelFunc
	running bool

	// cancelled is set by Stop before the task context is cancelled so
	// that results still in flight are discarded instead of applied.
	cancelled bool
	// paused suspends hook-driven state updates while the pipeline keeps
	// executing. Terminal finalization is not suspended.
	paused bool
}

// Manager owns all sessions and their background pipeline tasks. All
// state access goes through the manager's lock; readers receive deep
// copies.
type Manager struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*sessionTask

	newRunner      RunnerFactory
	store          Store
	publisher      Publisher
	metrics        *observability.Metrics
	logger         zerolog.Logger
	persistTimeout time.Duration

	wg sync.WaitGroup
}

// NewManager creates a session manager. store, publisher and metrics may
// be nil; persistence, events and instrumentation are then skipped.
func NewManager(newRunner RunnerFactory, store Store, publisher Publisher, metrics *observability.Metrics, logger zerolog.Logger) *Manager {
	return &Manager{
		sessions:       make(map[uuid.UUID]*sessionTask),
		newRunner:      newRunner,
		store:          store,
		publisher:      publisher,
		metrics:        metrics,
		logger:         logger.With().Str("component", "session_manager").Logger(),
		persistTimeout: 10 * time.Second,
	}
}

// Create registers a new session in the configuring state.
func (m *Manager) Create(ctx context.Context, topic domain.ResearchTopic) (*domain.SessionState, error) {
	topic.Topic = strings.TrimSpace(topic.Topic)
	if topic.Topic == "" {
		return nil, domain.NewValidationError("topic", "must not be empty")
	}
	topic.Complexity = strings.ToLower(strings.TrimSpace(topic.Complexity))
	if topic.Complexity == "" {
		topic.Complexity = domain.DefaultComplexity
	} else if !domain.ValidComplexity(topic.Complexity) {
		return nil, domain.NewValidationError("complexity", "must be one of basic, intermediate, advanced")
	}
	var keywords []string
	for _, kw := range topic.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	topic.Keywords = keywords

	state := domain.NewSessionState(topic)
	if m.store != nil {
		if err := m.store.Create(ctx, state); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	m.sessions[state.ID] = &sessionTask{state: state}
	m.mu.Unlock()

	m.publish(domain.EventTypeSessionCreated, state.ID, domain.SessionCreatedPayload{
		Topic: topic.Topic,
		Field: topic.Field,
	})
	m.logger.Info().Str("session_id", state.ID.String()).Str("topic", topic.Topic).Msg("session created")
	return state.Clone(), nil
}

// Snapshot returns a deep copy of the session state.
func (m *Manager) Snapshot(id uuid.UUID) (*domain.SessionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	task, ok := m.sessions[id]
	if !ok {
		return nil, domain.NewNotFoundError("session", id.String())
	}
	return task.state.Clone(), nil
}

// List returns deep copies of all sessions, newest first.
func (m *Manager) List() []*domain.SessionState {
	m.mu.RLock()
	states := make([]*domain.SessionState, 0, len(m.sessions))
	for _, task := range m.sessions {
		states = append(states, task.state.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(states, func(i, j int) bool {
		return states[i].CreatedAt.After(states[j].CreatedAt)
	})
	return states
}

// Start launches the background pipeline task for a configuring session.
// A session can be started at most once.
func (m *Manager) Start(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	task, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return domain.NewNotFoundError("session", id.String())
	}
	if task.running {
		m.mu.Unlock()
		return domain.ErrTaskAlreadyRunning
	}
	if task.state.Status != domain.SessionStatusConfiguring {
		from := task.state.Status
		m.mu.Unlock()
		return &domain.InvalidTransitionError{From: from, To: domain.SessionStatusRunning}
	}

	now := time.Now().UTC()
	task.state.Status = domain.SessionStatusRunning
	task.state.StartedAt = &now
	task.state.UpdatedAt = now
	task.state.Metrics.TotalAgents = len(domain.StageOrder)

	runner, err := m.newRunner(m.hooksFor(id))
	if err != nil {
		task.state.Status = domain.SessionStatusFailed
		task.state.ErrorMessage = err.Error()
		m.mu.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	task.cancel = cancel
	task.running = true
	topic := task.state.Topic
	snapshot := task.state.Clone()
	m.mu.Unlock()

	m.persist(snapshot)
	m.publish(domain.EventTypeSessionStarted, id, domain.SessionStartedPayload{Topic: topic.Topic})
	if m.metrics != nil {
		m.metrics.SessionsStarted.Inc()
	}
	m.logger.Info().Str("session_id", id.String()).Msg("session started")

	m.wg.Add(1)
	go m.run(runCtx, id, runner, topic)
	return nil
}

// Stop cancels a session. Stopping a configuring session fails it
// immediately; stopping a running session cancels its task. Stop is
// idempotent and a no-op on terminal sessions.
func (m *Manager) Stop(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	task, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return domain.NewNotFoundError("session", id.String())
	}

	switch task.state.Status {
	case domain.SessionStatusConfiguring:
		now := time.Now().UTC()
		task.state.Status = domain.SessionStatusFailed
		task.state.ErrorMessage = "stopped before start"
		task.state.CompletedAt = &now
		task.state.UpdatedAt = now
		snapshot := task.state.Clone()
		m.mu.Unlock()

		m.persist(snapshot)
		m.publish(domain.EventTypeSessionFailed, id, domain.SessionFailedPayload{Error: "stopped before start"})
		if m.metrics != nil {
			m.metrics.SessionsFailed.Inc()
		}
		return nil
	case domain.SessionStatusRunning:
		task.cancelled = true
		cancel := task.cancel
		m.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		return nil
	default:
		m.mu.Unlock()
		return nil
	}
}

// Pause is a soft request: the running pipeline keeps executing, but
// its stage and progress updates are dropped until the session is
// stopped or finishes. Pause is idempotent and accepted only while the
// session is running; there is no resume.
func (m *Manager) Pause(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	task, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return domain.NewNotFoundError("session", id.String())
	}
	if task.state.Status != domain.SessionStatusRunning {
		from := task.state.Status
		m.mu.Unlock()
		return &domain.InvalidTransitionError{From: from, To: domain.SessionStatusRunning}
	}
	if task.paused {
		m.mu.Unlock()
		return nil
	}
	task.paused = true
	m.mu.Unlock()

	m.logger.Info().Str("session_id", id.String()).Msg("session paused")
	return nil
}

// RecoverOrphans marks sessions persisted as running failed with the
// restart interruption message. Called once at boot, before the HTTP
// server accepts traffic.
func (m *Manager) RecoverOrphans(ctx context.Context) (int64, error) {
	if m.store == nil {
		return 0, nil
	}
	count, err := m.store.MarkInterrupted(ctx, InterruptedMessage)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		m.logger.Warn().Int64("count", count).Msg("marked interrupted sessions as failed")
	}
	return count, nil
}

// Shutdown cancels all running tasks and waits for them to finish or
// the context to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	for _, task := range m.sessions {
		if task.running && task.cancel != nil {
			task.cancel()
		}
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run executes the pipeline and finalizes the session state.
func (m *Manager) run(ctx context.Context, id uuid.UUID, runner PipelineRunner, topic domain.ResearchTopic) {
	defer m.wg.Done()

	rc, err := runner.Run(ctx, topic)
	if err != nil {
		m.finishFailed(id, rc, err)
		return
	}
	m.finishCompleted(id, rc)
}

// hooksFor wires pipeline callbacks to session state updates.
func (m *Manager) hooksFor(id uuid.UUID) agents.Hooks {
	return agents.Hooks{
		OnStageStart: func(stage string) {
			m.updateState(id, func(s *domain.SessionState) {
				s.CurrentStage = stage
				if st := stageState(s, stage); st != nil {
					now := time.Now().UTC()
					st.Status = domain.StageStatusRunning
					st.StartedAt = &now
				}
			})
		},
		OnStageEnd: func(stage string, result *agents.Result, err error) {
			if m.metrics != nil {
				var seconds float64
				if result != nil {
					seconds = result.Duration.Seconds()
				}
				m.metrics.RecordStageResult(stage, seconds, err != nil)
			}
			m.updateState(id, func(s *domain.SessionState) {
				st := stageState(s, stage)
				if st == nil {
					return
				}
				now := time.Now().UTC()
				st.CompletedAt = &now
				if err != nil {
					st.Status = domain.StageStatusFailed
					st.Error = err.Error()
				} else {
					st.Status = domain.StageStatusCompleted
					st.Progress = 100
					s.Metrics.TasksCompleted++
				}
				if result != nil {
					s.Metrics.TotalTokens += result.TokensUsed
					s.Metrics.APICalls += result.APICalls
					s.Agents = append(s.Agents, domain.AgentActivity{
						Name:       result.Agent,
						Stage:      result.Stage,
						Status:     string(st.Status),
						Tokens:     result.TokensUsed,
						DurationMS: result.Duration.Milliseconds(),
					})
				}
			})
		},
		OnProgress: func(_ string, overall int) {
			m.updateState(id, func(s *domain.SessionState) {
				if overall > s.Progress {
					s.Progress = overall
				}
			})
		},
	}
}

// updateState applies fn to the session under lock and persists the
// resulting snapshot. Updates are dropped for cancelled, paused, and
// terminal sessions; only finalization may touch those.
func (m *Manager) updateState(id uuid.UUID, fn func(*domain.SessionState)) {
	m.mu.Lock()
	task, ok := m.sessions[id]
	if !ok || task.cancelled || task.paused || task.state.Status.IsTerminal() {
		m.mu.Unlock()
		return
	}
	fn(task.state)
	task.state.UpdatedAt = time.Now().UTC()
	snapshot := task.state.Clone()
	m.mu.Unlock()

	m.persist(snapshot)
}

func (m *Manager) finishCompleted(id uuid.UUID, rc *agents.Context) {
	var payload domain.SessionCompletedPayload
	m.mu.Lock()
	task, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	if task.cancelled {
		// The user stopped the session while the last stages were in
		// flight; the finished pipeline's results are discarded.
		m.mu.Unlock()
		m.finishFailed(id, nil, context.Canceled)
		return
	}
	now := time.Now().UTC()
	s := task.state
	s.Status = domain.SessionStatusCompleted
	s.Progress = 100
	s.CurrentStage = ""
	s.Paper = rc.Paper
	s.CompletedAt = &now
	s.UpdatedAt = now
	applyMetrics(s, rc, now)
	task.running = false

	payload = domain.SessionCompletedPayload{
		TasksCompleted:  s.Metrics.TasksCompleted,
		TotalTokens:     s.Metrics.TotalTokens,
		EthicsScore:     s.Metrics.EthicsScore,
		DurationSeconds: s.Metrics.DurationSeconds,
	}
	if s.Paper != nil {
		payload.PaperTitle = s.Paper.Title
	}
	snapshot := s.Clone()
	m.mu.Unlock()

	m.persist(snapshot)
	m.publish(domain.EventTypeSessionCompleted, id, payload)
	if m.metrics != nil {
		m.metrics.SessionsCompleted.Inc()
		m.metrics.SessionDuration.Observe(snapshot.Metrics.DurationSeconds)
	}
	m.logger.Info().Str("session_id", id.String()).Msg("session completed")
}

func (m *Manager) finishFailed(id uuid.UUID, rc *agents.Context, runErr error) {
	message := failureMessage(runErr)

	m.mu.Lock()
	task, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	if task.cancelled {
		message = CancelledMessage
		rc = nil
	}
	now := time.Now().UTC()
	s := task.state
	s.Status = domain.SessionStatusFailed
	s.ErrorMessage = message
	s.CurrentStage = ""
	s.CompletedAt = &now
	s.UpdatedAt = now
	if rc != nil {
		applyMetrics(s, rc, now)
	}
	task.running = false
	snapshot := s.Clone()
	m.mu.Unlock()

	failedPayload := domain.SessionFailedPayload{Error: message}
	var stageErr *domain.StageError
	if errors.As(runErr, &stageErr) {
		failedPayload.Stage = stageErr.Stage
	}

	m.persist(snapshot)
	m.publish(domain.EventTypeSessionFailed, id, failedPayload)
	if m.metrics != nil {
		m.metrics.SessionsFailed.Inc()
	}
	m.logger.Warn().Str("session_id", id.String()).Str("error", message).Msg("session failed")
}

// applyMetrics copies pipeline usage and quality scores onto the session.
func applyMetrics(s *domain.SessionState, rc *agents.Context, now time.Time) {
	s.Metrics.PapersAnalyzed = len(rc.Papers)
	if s.Metrics.TotalTokens < rc.TokensUsed {
		s.Metrics.TotalTokens = rc.TokensUsed
	}
	if s.Metrics.APICalls < rc.APICalls {
		s.Metrics.APICalls = rc.APICalls
	}
	if s.StartedAt != nil {
		s.Metrics.DurationSeconds = now.Sub(*s.StartedAt).Seconds()
	}
	if rc.Ethics != nil {
		s.Metrics.EthicsScore = rc.Ethics.OverallScore
	}
	s.Metrics.OriginalityScore = originalityScore(s.Topic.Topic, rc.Papers)
	if rc.PrimaryHypothesis != nil {
		s.Metrics.NoveltyScore = originalityScore(rc.PrimaryHypothesis.Statement, rc.Papers)
	}
}

// originalityScore is 100 minus the highest title similarity between the
// text and any analyzed paper, as a percentage. No papers means fully
// original as far as the corpus can tell.
func originalityScore(text string, papers []domain.Paper) int {
	maxSim := 0.0
	for i := range papers {
		if sim := dedup.TitleSimilarity(text, papers[i].Title); sim > maxSim {
			maxSim = sim
		}
	}
	return int((1 - maxSim) * 100)
}

// failureMessage derives a non-empty error message for a failed session.
func failureMessage(err error) string {
	switch {
	case err == nil:
		return "research pipeline failed"
	case errors.Is(err, context.Canceled):
		return CancelledMessage
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return "research pipeline failed"
}

func stageState(s *domain.SessionState, name string) *domain.StageState {
	for i := range s.Stages {
		if s.Stages[i].Name == name {
			return &s.Stages[i]
		}
	}
	return nil
}

func (m *Manager) persist(state *domain.SessionState) {
	if m.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.persistTimeout)
	defer cancel()
	if err := m.store.Save(ctx, state); err != nil {
		m.logger.Error().Err(err).Str("session_id", state.ID.String()).Msg("failed to persist session state")
	}
}

func (m *Manager) publish(eventType string, id uuid.UUID, payload any) {
	if m.publisher == nil {
		return
	}
	event, err := domain.NewSessionEvent(eventType, id, payload)
	if err != nil {
		m.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to build session event")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.persistTimeout)
	defer cancel()
	if err := m.publisher.Publish(ctx, event); err != nil {
		m.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to publish session event")
	}
}
