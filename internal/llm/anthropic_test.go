package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func anthropicMessagesResponse(text string) string {
	body, _ := json.Marshal(map[string]any{
		"id":   "msg-1",
		"type": "message",
		"role": "assistant",
		"content": []map[string]string{
			{"type": "text", "text": text},
		},
		"model":       "claude-sonnet-4-20250514",
		"stop_reason": "end_turn",
		"usage":       map[string]int{"input_tokens": 55, "output_tokens": 21},
	})
	return string(body)
}

func newAnthropicTestProvider(baseURL string) *AnthropicProvider {
	return NewAnthropicProvider(
		AnthropicConfig{APIKey: "ant-test-key", Model: "claude-sonnet-4-20250514", BaseURL: baseURL},
		ProviderOptions{Temperature: 0.5, MaxRetries: 3, RetryDelay: time.Millisecond},
	)
}

func TestAnthropicProvider_Complete(t *testing.T) {
	var gotKey, gotVersion, gotReq atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey.Store(r.Header.Get("x-api-key"))
		gotVersion.Store(r.Header.Get("anthropic-version"))
		var req messagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotReq.Store(req)
		fmt.Fprint(w, anthropicMessagesResponse("the answer"))
	}))
	defer server.Close()

	p := newAnthropicTestProvider(server.URL)

	resp, err := p.Complete(context.Background(), Request{
		System: "You are a researcher.",
		Prompt: "Propose a hypothesis.",
	})
	require.NoError(t, err)

	assert.Equal(t, "the answer", resp.Content)
	assert.Equal(t, "claude-sonnet-4-20250514", resp.Model)
	assert.Equal(t, 55, resp.InputTokens)
	assert.Equal(t, 21, resp.OutputTokens)

	assert.Equal(t, "ant-test-key", gotKey.Load())
	assert.Equal(t, anthropicAPIVersion, gotVersion.Load())

	req := gotReq.Load().(messagesRequest)
	assert.Equal(t, "You are a researcher.", req.System)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "user", req.Messages[0].Role)
	assert.Equal(t, "Propose a hypothesis.", req.Messages[0].Content)
}

func TestAnthropicProvider_Complete_SkipsNonTextBlocks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"id": "msg-1", "type": "message", "role": "assistant",
			"content": [
				{"type": "thinking"},
				{"type": "text", "text": "visible text"}
			],
			"model": "claude-sonnet-4-20250514",
			"usage": {"input_tokens": 1, "output_tokens": 1}
		}`)
	}))
	defer server.Close()

	p := newAnthropicTestProvider(server.URL)

	resp, err := p.Complete(context.Background(), Request{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "visible text", resp.Content)
}

func TestAnthropicProvider_Complete_NoContentBlocks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": "msg-1", "content": [], "usage": {}}`)
	}))
	defer server.Close()

	p := newAnthropicTestProvider(server.URL)

	_, err := p.Complete(context.Background(), Request{Prompt: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no content blocks")
}

func TestAnthropicProvider_Complete_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"type": "error", "error": {"type": "rate_limit_error", "message": "slow down"}}`)
			return
		}
		fmt.Fprint(w, anthropicMessagesResponse("recovered"))
	}))
	defer server.Close()

	p := newAnthropicTestProvider(server.URL)

	resp, err := p.Complete(context.Background(), Request{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Content)
	assert.Equal(t, int32(2), calls.Load())
}

func TestAnthropicProvider_Complete_ParsesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"type": "error", "error": {"type": "authentication_error", "message": "invalid x-api-key ant-test-key"}}`)
	}))
	defer server.Close()

	p := newAnthropicTestProvider(server.URL)

	_, err := p.Complete(context.Background(), Request{Prompt: "hello"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "anthropic", apiErr.Provider)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "authentication_error", apiErr.Type)
	assert.NotContains(t, err.Error(), "ant-test-key")
	assert.Contains(t, err.Error(), "[REDACTED]")
}
