package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/research-swarm-service/internal/domain"
	"github.com/helixir/research-swarm-service/internal/observability"
)

// scriptedProvider returns canned responses in order.
type scriptedProvider struct {
	responses []string
	err       error
	prompts   []string
}

func (s *scriptedProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	s.prompts = append(s.prompts, req.Prompt)
	if s.err != nil {
		return nil, s.err
	}
	idx := len(s.prompts) - 1
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return &Response{
		Content:      s.responses[idx],
		Model:        "scripted",
		InputTokens:  10,
		OutputTokens: 5,
	}, nil
}

func (s *scriptedProvider) Provider() string { return "scripted" }
func (s *scriptedProvider) Model() string    { return "scripted" }

type gapOutput struct {
	Description  string `json:"description" validate:"required"`
	Significance string `json:"significance" validate:"required"`
}

func TestGenerateStructured_ValidFirstAttempt(t *testing.T) {
	p := &scriptedProvider{responses: []string{
		`{"description": "missing longitudinal data", "significance": "high"}`,
	}}
	c := NewClient(p, ClientConfig{})

	var out gapOutput
	resp, err := c.GenerateStructured(context.Background(), Request{Prompt: "find gaps"}, &out)
	require.NoError(t, err)

	assert.Equal(t, "missing longitudinal data", out.Description)
	assert.Equal(t, 15, resp.TotalTokens())
	require.Len(t, p.prompts, 1)
	assert.Contains(t, p.prompts[0], "valid JSON only")
}

func TestGenerateStructured_StripsCodeFences(t *testing.T) {
	p := &scriptedProvider{responses: []string{
		"```json\n{\"description\": \"d\", \"significance\": \"s\"}\n```",
	}}
	c := NewClient(p, ClientConfig{})

	var out gapOutput
	_, err := c.GenerateStructured(context.Background(), Request{Prompt: "find gaps"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "d", out.Description)
}

func TestGenerateStructured_RetriesOnceOnInvalidOutput(t *testing.T) {
	p := &scriptedProvider{responses: []string{
		"this is not JSON at all",
		`{"description": "fixed", "significance": "s"}`,
	}}
	c := NewClient(p, ClientConfig{})

	var out gapOutput
	_, err := c.GenerateStructured(context.Background(), Request{Prompt: "find gaps"}, &out)
	require.NoError(t, err)

	assert.Equal(t, "fixed", out.Description)
	require.Len(t, p.prompts, 2)
	// The retry prompt carries the failure.
	assert.Contains(t, p.prompts[1], "previous response was invalid")
}

func TestGenerateStructured_SecondFailureReturnsValidationError(t *testing.T) {
	p := &scriptedProvider{responses: []string{"garbage", "still garbage"}}
	c := NewClient(p, ClientConfig{})

	var out gapOutput
	_, err := c.GenerateStructured(context.Background(), Request{Prompt: "find gaps"}, &out)
	require.Error(t, err)

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	require.Len(t, p.prompts, 2)
}

func TestGenerateStructured_ValidationTagsEnforced(t *testing.T) {
	p := &scriptedProvider{responses: []string{
		// Well-formed JSON missing a required field: fails validation, retried.
		`{"description": "only description"}`,
		`{"description": "complete", "significance": "s"}`,
	}}
	c := NewClient(p, ClientConfig{})

	var out gapOutput
	_, err := c.GenerateStructured(context.Background(), Request{Prompt: "find gaps"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "complete", out.Description)
	assert.Len(t, p.prompts, 2)
}

func TestGenerateStructured_SliceTarget(t *testing.T) {
	p := &scriptedProvider{responses: []string{
		`[{"description": "a", "significance": "x"}, {"description": "b", "significance": "y"}]`,
	}}
	c := NewClient(p, ClientConfig{})

	var out []gapOutput
	_, err := c.GenerateStructured(context.Background(), Request{Prompt: "find gaps"}, &out)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[1].Description)
}

func TestGenerateStructured_EmptySliceRejected(t *testing.T) {
	p := &scriptedProvider{responses: []string{`[]`, `[]`}}
	c := NewClient(p, ClientConfig{})

	var out []gapOutput
	_, err := c.GenerateStructured(context.Background(), Request{Prompt: "find gaps"}, &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestGenerateStructured_FailedAttemptDoesNotPollute(t *testing.T) {
	p := &scriptedProvider{responses: []string{
		`{"description": "stale value", "significance": ""}`,
		`{"description": "final", "significance": "s"}`,
	}}
	c := NewClient(p, ClientConfig{})

	var out gapOutput
	_, err := c.GenerateStructured(context.Background(), Request{Prompt: "find gaps"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "final", out.Description)
	assert.Equal(t, "s", out.Significance)
}

func TestGenerateStructured_ProviderErrorNotRetried(t *testing.T) {
	p := &scriptedProvider{err: errors.New("provider down")}
	c := NewClient(p, ClientConfig{})

	var out gapOutput
	_, err := c.GenerateStructured(context.Background(), Request{Prompt: "find gaps"}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider down")
	assert.Len(t, p.prompts, 1)
}

func TestGenerateStructured_RequiresPointer(t *testing.T) {
	c := NewClient(&scriptedProvider{responses: []string{"{}"}}, ClientConfig{})

	var out gapOutput
	_, err := c.GenerateStructured(context.Background(), Request{Prompt: "x"}, out)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestGenerate_AppliesRateSmoothing(t *testing.T) {
	p := &scriptedProvider{responses: []string{"ok"}}
	c := NewClient(p, ClientConfig{RateLimitRPS: 20, RateLimitBurst: 1})

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.Generate(context.Background(), Request{Prompt: "x"})
		require.NoError(t, err)
	}
	// Two waits at 20 rps is at least ~100ms total.
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestGenerate_RecordsUsageMetrics(t *testing.T) {
	metrics := observability.NewMetrics("llm_client_test")

	p := &scriptedProvider{responses: []string{"fine"}}
	c := NewClient(p, ClientConfig{Metrics: metrics})

	_, err := c.Generate(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LLMRequestsTotal.WithLabelValues("scripted", "scripted")))
	assert.Zero(t, testutil.ToFloat64(metrics.LLMRequestsFailed.WithLabelValues("scripted", "scripted")))
	assert.Equal(t, 10.0, testutil.ToFloat64(metrics.LLMTokensUsed.WithLabelValues("scripted", "scripted", "input")))
	assert.Equal(t, 5.0, testutil.ToFloat64(metrics.LLMTokensUsed.WithLabelValues("scripted", "scripted", "output")))

	failing := NewClient(&scriptedProvider{err: errors.New("boom")}, ClientConfig{Metrics: metrics})
	_, err = failing.Generate(context.Background(), Request{Prompt: "x"})
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LLMRequestsFailed.WithLabelValues("scripted", "scripted")))
}

func TestStripCodeFences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "no fences", input: `{"a": 1}`, expected: `{"a": 1}`},
		{name: "json fence", input: "```json\n{\"a\": 1}\n```", expected: `{"a": 1}`},
		{name: "bare fence", input: "```\n{\"a\": 1}\n```", expected: `{"a": 1}`},
		{name: "surrounding whitespace", input: "  \n```json\n{\"a\": 1}\n```\n ", expected: `{"a": 1}`},
		{name: "single line fence", input: "```{\"a\": 1}```", expected: `{"a": 1}`},
		{name: "empty", input: "", expected: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, StripCodeFences(tc.input))
		})
	}
}
