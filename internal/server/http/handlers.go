package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/helixir/research-swarm-service/internal/domain"
)

const maxRequestBody = 1 << 20

type createSessionRequest struct {
	Topic       string   `json:"topic"`
	Field       string   `json:"field"`
	Keywords    []string `json:"keywords"`
	Complexity  string   `json:"complexity"`
	Constraints []string `json:"constraints"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req createSessionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}

	req.Topic = strings.TrimSpace(req.Topic)
	if req.Topic == "" {
		writeError(w, http.StatusBadRequest, "topic is required")
		return
	}

	state, err := s.sessions.Create(r.Context(), domain.ResearchTopic{
		Topic:       req.Topic,
		Field:       strings.TrimSpace(req.Field),
		Keywords:    req.Keywords,
		Complexity:  req.Complexity,
		Constraints: req.Constraints,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toSessionView(state))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	states := s.sessions.List()

	statusFilter := domain.SessionStatus(r.URL.Query().Get("status"))
	summaries := make([]sessionSummary, 0, len(states))
	for _, state := range states {
		if statusFilter != "" && state.Status != statusFilter {
			continue
		}
		summaries = append(summaries, toSessionSummary(state))
	}

	writeJSON(w, http.StatusOK, listSessionsResponse{
		Sessions:   summaries,
		TotalCount: len(summaries),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	state, err := s.sessions.Snapshot(id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSessionView(state))
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	if err := s.sessions.Start(r.Context(), id); err != nil {
		s.writeDomainError(w, err)
		return
	}

	state, err := s.sessions.Snapshot(id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, toSessionView(state))
}

func (s *Server) handlePauseSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	if err := s.sessions.Pause(r.Context(), id); err != nil {
		s.writeDomainError(w, err)
		return
	}

	state, err := s.sessions.Snapshot(id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSessionView(state))
}

func (s *Server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	if err := s.sessions.Stop(r.Context(), id); err != nil {
		s.writeDomainError(w, err)
		return
	}

	state, err := s.sessions.Snapshot(id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSessionView(state))
}

func (s *Server) handleGetPaper(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	state, err := s.sessions.Snapshot(id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	if state.Status != domain.SessionStatusCompleted || state.Paper == nil {
		writeError(w, http.StatusConflict, "paper is not available: session status is "+string(state.Status))
		return
	}

	writeJSON(w, http.StatusOK, paperResponse{
		SessionID: state.ID,
		Topic:     state.Topic.Topic,
		Paper:     state.Paper,
		Metrics:   state.Metrics,
	})
}

func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "sessionID")
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session ID")
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrTaskAlreadyRunning),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		s.logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
