//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/research-swarm-service/internal/domain"
	"github.com/helixir/research-swarm-service/internal/repository"
	"github.com/helixir/research-swarm-service/internal/session"
)

func newSession(topic string) *domain.SessionState {
	return domain.NewSessionState(domain.ResearchTopic{
		Topic: topic,
		Field: "machine learning",
	})
}

func TestPgSessionRepository_Integration(t *testing.T) {
	cleanTable(t, "research_sessions")
	repo := repository.NewPgSessionRepository(testPool)
	ctx := context.Background()

	t.Run("Create and Get roundtrip", func(t *testing.T) {
		state := newSession("sparse attention under noise")

		require.NoError(t, repo.Create(ctx, state))

		got, err := repo.Get(ctx, state.ID)
		require.NoError(t, err)
		assert.Equal(t, state.ID, got.ID)
		assert.Equal(t, domain.SessionStatusConfiguring, got.Status)
		assert.Equal(t, state.Topic.Topic, got.Topic.Topic)
		assert.Len(t, got.Stages, 6)
		for _, stage := range got.Stages {
			assert.Equal(t, domain.StageStatusPending, stage.Status)
		}
		assert.Nil(t, got.Paper)
	})

	t.Run("Create duplicate returns already exists", func(t *testing.T) {
		state := newSession("duplicate session")
		require.NoError(t, repo.Create(ctx, state))

		err := repo.Create(ctx, state)
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})

	t.Run("Get missing returns not found", func(t *testing.T) {
		_, err := repo.Get(ctx, uuid.New())
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Save walks the state machine and persists the paper", func(t *testing.T) {
		state := newSession("state machine walk")
		require.NoError(t, repo.Create(ctx, state))

		state.Status = domain.SessionStatusRunning
		state.CurrentStage = domain.StageLiteratureReview
		state.Progress = 16
		require.NoError(t, repo.Save(ctx, state))

		state.Status = domain.SessionStatusCompleted
		state.Progress = 100
		state.Paper = &domain.PaperDocument{
			Title: "state machine walk",
			Sections: domain.PaperSections{
				Abstract:   "abstract text",
				Conclusion: "conclusion text",
			},
			WordCount: 240,
		}
		require.NoError(t, repo.Save(ctx, state))

		got, err := repo.Get(ctx, state.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.SessionStatusCompleted, got.Status)
		assert.Equal(t, 100, got.Progress)
		require.NotNil(t, got.Paper)
		assert.Equal(t, "abstract text", got.Paper.Sections.Abstract)
		assert.Equal(t, 240, got.Paper.WordCount)
	})

	t.Run("Save refuses invalid transitions", func(t *testing.T) {
		state := newSession("terminal session")
		require.NoError(t, repo.Create(ctx, state))

		state.Status = domain.SessionStatusRunning
		require.NoError(t, repo.Save(ctx, state))
		state.Status = domain.SessionStatusFailed
		state.ErrorMessage = "provider down"
		require.NoError(t, repo.Save(ctx, state))

		// Failed is terminal: the session cannot run again.
		state.Status = domain.SessionStatusRunning
		err := repo.Save(ctx, state)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("List filters by status", func(t *testing.T) {
		cleanTable(t, "research_sessions")

		first := newSession("first topic")
		require.NoError(t, repo.Create(ctx, first))

		second := newSession("second topic")
		require.NoError(t, repo.Create(ctx, second))
		second.Status = domain.SessionStatusRunning
		require.NoError(t, repo.Save(ctx, second))

		all, total, err := repo.List(ctx, repository.SessionFilter{})
		require.NoError(t, err)
		assert.EqualValues(t, 2, total)
		assert.Len(t, all, 2)

		running := domain.SessionStatusRunning
		filtered, total, err := repo.List(ctx, repository.SessionFilter{Status: &running})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		require.Len(t, filtered, 1)
		assert.Equal(t, second.ID, filtered[0].ID)
	})

	t.Run("MarkInterrupted fails running sessions", func(t *testing.T) {
		cleanTable(t, "research_sessions")

		orphan := newSession("orphaned run")
		require.NoError(t, repo.Create(ctx, orphan))
		orphan.Status = domain.SessionStatusRunning
		require.NoError(t, repo.Save(ctx, orphan))

		idle := newSession("idle session")
		require.NoError(t, repo.Create(ctx, idle))

		count, err := repo.MarkInterrupted(ctx, session.InterruptedMessage)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)

		got, err := repo.Get(ctx, orphan.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.SessionStatusFailed, got.Status)
		assert.Equal(t, session.InterruptedMessage, got.ErrorMessage)

		untouched, err := repo.Get(ctx, idle.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.SessionStatusConfiguring, untouched.Status)
	})
}
