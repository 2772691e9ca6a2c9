package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/helixir/research-swarm-service/internal/domain"
)

// SessionRepository persists research session state.
type SessionRepository interface {
	// Create inserts a new session row.
	// Returns domain.ErrAlreadyExists if the ID is taken.
	Create(ctx context.Context, state *domain.SessionState) error

	// Get retrieves a session snapshot by ID.
	// Returns domain.ErrNotFound if no matching session exists.
	Get(ctx context.Context, id uuid.UUID) (*domain.SessionState, error)

	// Save upserts the session snapshot. Status changes are guarded by
	// the session state machine: a row whose persisted status cannot
	// reach the snapshot's status is left untouched and
	// domain.ErrInvalidTransition is returned.
	Save(ctx context.Context, state *domain.SessionState) error

	// List retrieves session snapshots matching the filter, newest
	// first, along with the total match count for pagination.
	List(ctx context.Context, filter SessionFilter) ([]*domain.SessionState, int64, error)

	// MarkInterrupted fails every session persisted as running,
	// recording the given error message. Returns the number of sessions
	// updated. Called once at boot to recover orphans left by a crash
	// or restart.
	MarkInterrupted(ctx context.Context, message string) (int64, error)
}

// SessionFilter specifies criteria for listing sessions.
type SessionFilter struct {
	// Status filters to sessions in a specific lifecycle state (optional).
	Status *domain.SessionStatus

	// Limit specifies maximum number of results (default: 100, max: 1000).
	Limit int

	// Offset specifies the starting position for pagination.
	Offset int
}

// Validate normalizes pagination values.
func (f *SessionFilter) Validate() error {
	applyPaginationDefaults(&f.Limit, &f.Offset)
	return nil
}
