package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/research-swarm-service/internal/agents"
	"github.com/helixir/research-swarm-service/internal/domain"
	"github.com/helixir/research-swarm-service/internal/session"
)

type fakeRunner struct {
	run func(ctx context.Context) (*agents.Context, error)
}

func (r *fakeRunner) Run(ctx context.Context, _ domain.ResearchTopic) (*agents.Context, error) {
	return r.run(ctx)
}

func runnerFactory(run func(ctx context.Context) (*agents.Context, error)) session.RunnerFactory {
	return func(_ agents.Hooks) (session.PipelineRunner, error) {
		return &fakeRunner{run: run}, nil
	}
}

func completedRun(topic domain.ResearchTopic) *agents.Context {
	rc := agents.NewContext(topic)
	rc.Papers = []domain.Paper{{Title: "Prior Art", Authors: []string{"A"}}}
	rc.PrimaryHypothesis = &domain.Hypothesis{Statement: "a new idea"}
	rc.Paper = &domain.PaperDocument{Title: topic.Topic, WordCount: 1200}
	rc.Ethics = &domain.EthicsReport{OverallScore: 85, Approved: true}
	rc.TokensUsed = 500
	rc.APICalls = 10
	return rc
}

func newTestServer(t *testing.T, factory session.RunnerFactory) (*Server, *session.Manager) {
	t.Helper()

	manager := session.NewManager(factory, nil, nil, nil, zerolog.Nop())
	srv, err := New(DefaultConfig(), manager, nil, nil, zerolog.Nop())
	require.NoError(t, err)
	return srv, manager
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestNew_RequiresManager(t *testing.T) {
	t.Parallel()

	_, err := New(DefaultConfig(), nil, nil, nil, zerolog.Nop())
	require.Error(t, err)
}

func TestHandleHealthz(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, nil)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandleReadyz_NoDatabase(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, nil)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/readyz", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleCreateSession(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, nil)
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/sessions", createSessionRequest{
		Topic: "sparse attention in transformers",
		Field: "machine learning",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeSession(t, rec)
	assert.Equal(t, "configuring", body["status"])
	assert.Equal(t, false, body["paper_available"])
	assert.NotEmpty(t, body["id"])

	topic, ok := body["topic"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "sparse attention in transformers", topic["topic"])

	stages, ok := body["stages"].([]any)
	require.True(t, ok)
	assert.Len(t, stages, 6)
}

func TestHandleCreateSession_KeywordsAndComplexity(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, nil)
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/sessions", createSessionRequest{
		Topic:      "sparse attention in transformers",
		Keywords:   []string{"attention", "sparsity"},
		Complexity: "advanced",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeSession(t, rec)
	topic, ok := body["topic"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "advanced", topic["complexity"])
	assert.Equal(t, []any{"attention", "sparsity"}, topic["keywords"])

	// Omitted complexity falls back to the default level.
	rec = doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/sessions", createSessionRequest{
		Topic: "sparse attention in transformers",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	body = decodeSession(t, rec)
	topic, ok = body["topic"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, domain.DefaultComplexity, topic["complexity"])

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/sessions", createSessionRequest{
		Topic:      "sparse attention in transformers",
		Complexity: "impossible",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "complexity")
}

func TestHandleCreateSession_Validation(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{name: "missing topic", body: `{"field":"ml"}`},
		{name: "blank topic", body: `{"topic":"   "}`},
		{name: "malformed json", body: `{"topic":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", bytes.NewReader([]byte(tt.body)))
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "error")
		})
	}
}

func TestHandleGetSession_NotFound(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, nil)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/sessions/"+uuid.NewString(), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetSession_InvalidID(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, nil)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/sessions/not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid session ID")
}

func TestHandleStartSession_RunsToCompletion(t *testing.T) {
	t.Parallel()

	factory := runnerFactory(func(_ context.Context) (*agents.Context, error) {
		return completedRun(domain.ResearchTopic{Topic: "graph neural networks"}), nil
	})
	srv, manager := newTestServer(t, factory)

	state, err := manager.Create(context.Background(), domain.ResearchTopic{Topic: "graph neural networks"})
	require.NoError(t, err)

	rec := doJSON(t, srv.Handler(), http.MethodPost, fmt.Sprintf("/api/v1/sessions/%s/start", state.ID), nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		snap, err := manager.Snapshot(state.ID)
		return err == nil && snap.Status == domain.SessionStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/sessions/"+state.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeSession(t, rec)
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, true, body["paper_available"])
	assert.NotContains(t, body, "paper")
}

func TestHandleStartSession_Conflicts(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	factory := runnerFactory(func(ctx context.Context) (*agents.Context, error) {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil, ctx.Err()
	})
	srv, manager := newTestServer(t, factory)
	t.Cleanup(func() { close(block) })

	state, err := manager.Create(context.Background(), domain.ResearchTopic{Topic: "topic"})
	require.NoError(t, err)

	rec := doJSON(t, srv.Handler(), http.MethodPost, fmt.Sprintf("/api/v1/sessions/%s/start", state.ID), nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = doJSON(t, srv.Handler(), http.MethodPost, fmt.Sprintf("/api/v1/sessions/%s/start", state.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlePauseSession(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	factory := runnerFactory(func(ctx context.Context) (*agents.Context, error) {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil, ctx.Err()
	})
	srv, manager := newTestServer(t, factory)
	t.Cleanup(func() { close(block) })

	state, err := manager.Create(context.Background(), domain.ResearchTopic{Topic: "topic"})
	require.NoError(t, err)

	// Pause is only accepted while running.
	rec := doJSON(t, srv.Handler(), http.MethodPost, fmt.Sprintf("/api/v1/sessions/%s/pause", state.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	require.NoError(t, manager.Start(context.Background(), state.ID))
	rec = doJSON(t, srv.Handler(), http.MethodPost, fmt.Sprintf("/api/v1/sessions/%s/pause", state.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeSession(t, rec)
	assert.Equal(t, "running", body["status"])

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/sessions/"+uuid.NewString()+"/pause", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleStopSession(t *testing.T) {
	t.Parallel()

	srv, manager := newTestServer(t, nil)

	state, err := manager.Create(context.Background(), domain.ResearchTopic{Topic: "topic"})
	require.NoError(t, err)

	rec := doJSON(t, srv.Handler(), http.MethodPost, fmt.Sprintf("/api/v1/sessions/%s/stop", state.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeSession(t, rec)
	assert.Equal(t, "failed", body["status"])
	assert.NotEmpty(t, body["error_message"])
}

func TestHandleGetPaper(t *testing.T) {
	t.Parallel()

	factory := runnerFactory(func(_ context.Context) (*agents.Context, error) {
		return completedRun(domain.ResearchTopic{Topic: "topic"}), nil
	})
	srv, manager := newTestServer(t, factory)

	state, err := manager.Create(context.Background(), domain.ResearchTopic{Topic: "topic"})
	require.NoError(t, err)

	// Not completed yet: paper is unavailable.
	rec := doJSON(t, srv.Handler(), http.MethodGet, fmt.Sprintf("/api/v1/sessions/%s/paper", state.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	require.NoError(t, manager.Start(context.Background(), state.ID))
	require.Eventually(t, func() bool {
		snap, err := manager.Snapshot(state.ID)
		return err == nil && snap.Status == domain.SessionStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	rec = doJSON(t, srv.Handler(), http.MethodGet, fmt.Sprintf("/api/v1/sessions/%s/paper", state.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp paperResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, state.ID, resp.SessionID)
	require.NotNil(t, resp.Paper)
	assert.Equal(t, "topic", resp.Paper.Title)
	assert.Equal(t, 1200, resp.Paper.WordCount)
}

func TestHandleListSessions(t *testing.T) {
	t.Parallel()

	srv, manager := newTestServer(t, nil)

	_, err := manager.Create(context.Background(), domain.ResearchTopic{Topic: "first topic"})
	require.NoError(t, err)
	second, err := manager.Create(context.Background(), domain.ResearchTopic{Topic: "second topic"})
	require.NoError(t, err)
	require.NoError(t, manager.Stop(context.Background(), second.ID))

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp listSessionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.TotalCount)

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/sessions?status=failed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = listSessionsResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.TotalCount)
	assert.Equal(t, second.ID, resp.Sessions[0].ID)
	assert.Equal(t, "second topic", resp.Sessions[0].Topic)
}

func TestHandleContentType(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, nil)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/sessions", nil)

	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
}
