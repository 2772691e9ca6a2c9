package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/research-swarm-service/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

// sessionSummary is the compact shape used by the list endpoint.
type sessionSummary struct {
	ID           uuid.UUID            `json:"id"`
	Status       domain.SessionStatus `json:"status"`
	Topic        string               `json:"topic"`
	Field        string               `json:"field,omitempty"`
	CurrentStage string               `json:"current_stage,omitempty"`
	Progress     int                  `json:"progress"`
	ErrorMessage string               `json:"error_message,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	CompletedAt  *time.Time           `json:"completed_at,omitempty"`
}

type listSessionsResponse struct {
	Sessions   []sessionSummary `json:"sessions"`
	TotalCount int              `json:"total_count"`
}

// sessionView is the session detail shape. The paper body is served by
// its own endpoint, so the view only reports whether one exists.
type sessionView struct {
	*domain.SessionState
	Paper          *domain.PaperDocument `json:"paper,omitempty"`
	PaperAvailable bool                  `json:"paper_available"`
}

type paperResponse struct {
	SessionID uuid.UUID             `json:"session_id"`
	Topic     string                `json:"topic"`
	Paper     *domain.PaperDocument `json:"paper"`
	Metrics   domain.SessionMetrics `json:"metrics"`
}

func toSessionView(state *domain.SessionState) sessionView {
	view := sessionView{SessionState: state, PaperAvailable: state.Paper != nil}
	state.Paper = nil
	return view
}

func toSessionSummary(state *domain.SessionState) sessionSummary {
	return sessionSummary{
		ID:           state.ID,
		Status:       state.Status,
		Topic:        state.Topic.Topic,
		Field:        state.Topic.Field,
		CurrentStage: state.CurrentStage,
		Progress:     state.Progress,
		ErrorMessage: state.ErrorMessage,
		CreatedAt:    state.CreatedAt,
		CompletedAt:  state.CompletedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
