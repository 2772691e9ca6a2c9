package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event type constants for session lifecycle events.
const (
	EventTypeSessionCreated   = "session.created"
	EventTypeSessionStarted   = "session.started"
	EventTypeSessionCompleted = "session.completed"
	EventTypeSessionFailed    = "session.failed"
	EventTypeStageCompleted   = "session.stage_completed"
)

// SessionEvent is a lifecycle event published to the event bus.
type SessionEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	SessionID uuid.UUID `json:"session_id"`
	Payload   []byte    `json:"payload,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewSessionEvent creates a session event with a JSON-serialized payload.
func NewSessionEvent(eventType string, sessionID uuid.UUID, payload interface{}) (*SessionEvent, error) {
	var payloadBytes []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		payloadBytes = b
	}

	return &SessionEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		SessionID: sessionID,
		Payload:   payloadBytes,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// SessionCreatedPayload is the payload for session.created events.
type SessionCreatedPayload struct {
	Topic string `json:"topic"`
	Field string `json:"field,omitempty"`
}

// SessionStartedPayload is the payload for session.started events.
type SessionStartedPayload struct {
	Topic string `json:"topic"`
}

// SessionCompletedPayload is the payload for session.completed events.
type SessionCompletedPayload struct {
	PaperTitle      string  `json:"paper_title"`
	TasksCompleted  int     `json:"tasks_completed"`
	TotalTokens     int     `json:"total_tokens"`
	EthicsScore     int     `json:"ethics_score"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// SessionFailedPayload is the payload for session.failed events.
type SessionFailedPayload struct {
	Stage string `json:"stage,omitempty"`
	Error string `json:"error"`
}

// StageCompletedPayload is the payload for session.stage_completed events.
type StageCompletedPayload struct {
	Stage           string  `json:"stage"`
	DurationSeconds float64 `json:"duration_seconds"`
}
