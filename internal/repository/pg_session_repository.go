package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/helixir/research-swarm-service/internal/domain"
)

// Compile-time interface verification.
var _ SessionRepository = (*PgSessionRepository)(nil)

// uniqueViolationCode is the PostgreSQL error code for unique constraint violations.
const uniqueViolationCode = "23505"

// PgSessionRepository is a PostgreSQL implementation of SessionRepository.
// The full session snapshot is stored as JSONB, with the paper payload in
// its own column; scalar columns mirror the fields queries filter on.
type PgSessionRepository struct {
	db DBTX
}

// NewPgSessionRepository creates a new PostgreSQL session repository.
func NewPgSessionRepository(db DBTX) *PgSessionRepository {
	return &PgSessionRepository{db: db}
}

// Create inserts a new session row.
func (r *PgSessionRepository) Create(ctx context.Context, state *domain.SessionState) error {
	if state == nil {
		return domain.NewValidationError("session", "session cannot be nil")
	}

	stateJSON, paperJSON, err := marshalState(state)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO research_sessions (
			id, status, topic, state, paper, error_message, progress,
			created_at, updated_at, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = r.db.Exec(ctx, query,
		state.ID,
		string(state.Status),
		state.Topic.Topic,
		stateJSON,
		paperJSON,
		state.ErrorMessage,
		state.Progress,
		state.CreatedAt,
		state.UpdatedAt,
		state.StartedAt,
		state.CompletedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return fmt.Errorf("session %s: %w", state.ID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// Get retrieves a session snapshot by ID.
func (r *PgSessionRepository) Get(ctx context.Context, id uuid.UUID) (*domain.SessionState, error) {
	query := `SELECT state, paper FROM research_sessions WHERE id = $1`

	var stateJSON, paperJSON []byte
	err := r.db.QueryRow(ctx, query, id).Scan(&stateJSON, &paperJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("session", id.String())
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return unmarshalState(stateJSON, paperJSON)
}

// Save upserts the session snapshot with a state machine guard: the
// update only applies when the persisted status equals the snapshot's
// status or can legally transition to it.
func (r *PgSessionRepository) Save(ctx context.Context, state *domain.SessionState) error {
	if state == nil {
		return domain.NewValidationError("session", "session cannot be nil")
	}

	stateJSON, paperJSON, err := marshalState(state)
	if err != nil {
		return err
	}

	query := `
		UPDATE research_sessions SET
			status = $2,
			state = $3,
			paper = $4,
			error_message = $5,
			progress = $6,
			updated_at = $7,
			started_at = $8,
			completed_at = $9
		WHERE id = $1 AND (status = $2 OR status = ANY($10))`

	tag, err := r.db.Exec(ctx, query,
		state.ID,
		string(state.Status),
		stateJSON,
		paperJSON,
		state.ErrorMessage,
		state.Progress,
		state.UpdatedAt,
		state.StartedAt,
		state.CompletedAt,
		validFromStatuses(state.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Either the session is missing or the persisted status refuses
	// the transition; distinguish for the caller.
	var current string
	err = r.db.QueryRow(ctx, `SELECT status FROM research_sessions WHERE id = $1`, state.ID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NewNotFoundError("session", state.ID.String())
		}
		return fmt.Errorf("failed to check session status: %w", err)
	}
	return &domain.InvalidTransitionError{
		From: domain.SessionStatus(current),
		To:   state.Status,
	}
}

// List retrieves session snapshots matching the filter, newest first.
func (r *PgSessionRepository) List(ctx context.Context, filter SessionFilter) ([]*domain.SessionState, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	where := ""
	countArgs := []interface{}{}
	if filter.Status != nil {
		where = " WHERE status = $1"
		countArgs = append(countArgs, string(*filter.Status))
	}

	var total int64
	err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM research_sessions"+where, countArgs...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	args := append([]interface{}{}, countArgs...)
	query := "SELECT state, paper FROM research_sessions" + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.SessionState
	for rows.Next() {
		var stateJSON, paperJSON []byte
		if err := rows.Scan(&stateJSON, &paperJSON); err != nil {
			return nil, 0, fmt.Errorf("failed to scan session: %w", err)
		}
		state, err := unmarshalState(stateJSON, paperJSON)
		if err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, state)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return sessions, total, nil
}

// MarkInterrupted fails every running session with the given message.
func (r *PgSessionRepository) MarkInterrupted(ctx context.Context, message string) (int64, error) {
	query := `
		UPDATE research_sessions SET
			status = $1,
			error_message = $2,
			completed_at = NOW(),
			updated_at = NOW(),
			state = jsonb_set(
				jsonb_set(state, '{status}', to_jsonb($1::text)),
				'{error_message}', to_jsonb($2::text)
			)
		WHERE status = $3`

	tag, err := r.db.Exec(ctx, query,
		string(domain.SessionStatusFailed),
		message,
		string(domain.SessionStatusRunning),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark interrupted sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// marshalState splits a snapshot into its JSONB payloads. The paper is
// stored in its own column and stripped from the state document.
func marshalState(state *domain.SessionState) (stateJSON, paperJSON []byte, err error) {
	var paper *domain.PaperDocument
	if state.Paper != nil {
		paper = state.Paper
		paperJSON, err = json.Marshal(paper)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal paper: %w", err)
		}
	}

	trimmed := *state
	trimmed.Paper = nil
	stateJSON, err = json.Marshal(&trimmed)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal session state: %w", err)
	}
	return stateJSON, paperJSON, nil
}

// unmarshalState recombines the state document with its paper payload.
func unmarshalState(stateJSON, paperJSON []byte) (*domain.SessionState, error) {
	var state domain.SessionState
	if err := json.Unmarshal(stateJSON, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session state: %w", err)
	}
	if len(paperJSON) > 0 {
		var paper domain.PaperDocument
		if err := json.Unmarshal(paperJSON, &paper); err != nil {
			return nil, fmt.Errorf("failed to unmarshal paper: %w", err)
		}
		state.Paper = &paper
	}
	return &state, nil
}

// validFromStatuses lists the statuses allowed to transition into the
// target status.
func validFromStatuses(to domain.SessionStatus) []string {
	all := []domain.SessionStatus{
		domain.SessionStatusConfiguring,
		domain.SessionStatusRunning,
		domain.SessionStatusCompleted,
		domain.SessionStatusFailed,
	}
	var froms []string
	for _, from := range all {
		if domain.IsValidStatusTransition(from, to) {
			froms = append(froms, string(from))
		}
	}
	return froms
}
