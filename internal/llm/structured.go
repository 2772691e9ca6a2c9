package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"github.com/helixir/research-swarm-service/internal/domain"
	"github.com/helixir/research-swarm-service/internal/observability"
)

// jsonOnlyInstruction is appended to structured generation prompts.
const jsonOnlyInstruction = "Respond with valid JSON only. " +
	"Do not include any prose, explanation, or markdown outside the JSON value."

// ClientConfig configures the Client wrapper.
type ClientConfig struct {
	// RateLimitRPS smooths outgoing requests. Zero or negative disables smoothing.
	RateLimitRPS float64

	// RateLimitBurst is the smoothing burst size (defaults to 1).
	RateLimitBurst int

	// Metrics receives per-request and token usage counters. Nil skips
	// instrumentation.
	Metrics *observability.Metrics
}

// Client wraps a Provider with request smoothing and schema-validated
// structured generation. It is safe for concurrent use.
type Client struct {
	provider Provider
	limiter  *rate.Limiter
	validate *validator.Validate
	metrics  *observability.Metrics
}

// NewClient creates a Client around the given provider.
func NewClient(provider Provider, cfg ClientConfig) *Client {
	limit := rate.Inf
	if cfg.RateLimitRPS > 0 {
		limit = rate.Limit(cfg.RateLimitRPS)
	}
	burst := cfg.RateLimitBurst
	if burst < 1 {
		burst = 1
	}

	return &Client{
		provider: provider,
		limiter:  rate.NewLimiter(limit, burst),
		validate: validator.New(),
		metrics:  cfg.Metrics,
	}
}

// Provider returns the name of the underlying LLM provider.
func (c *Client) Provider() string {
	return c.provider.Provider()
}

// Model returns the model identifier being used.
func (c *Client) Model() string {
	return c.provider.Model()
}

// Generate produces free-form text for the request.
func (c *Client) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("llm rate limiter wait: %w", err)
	}
	resp, err := c.provider.Complete(ctx, req)
	if c.metrics != nil {
		var in, out int
		if resp != nil {
			in, out = resp.InputTokens, resp.OutputTokens
		}
		c.metrics.RecordLLMUsage(c.provider.Provider(), c.provider.Model(), in, out, err != nil)
	}
	return resp, err
}

// GenerateStructured produces JSON output decoded into out, which must be
// a non-nil pointer. The model is instructed to emit JSON only; code fences
// are stripped before decoding, and the decoded value is checked against
// the validate tags of its type. On a decode or validation failure the
// request is retried exactly once with the failure appended to the prompt.
// A second failure returns a ValidationError.
//
// The returned Response carries the usage of the last attempt; its Content
// is the raw model output.
func (c *Client) GenerateStructured(ctx context.Context, req Request, out any) (*Response, error) {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return nil, domain.NewValidationError("out", "must be a non-nil pointer")
	}

	prompt := req.Prompt + "\n\n" + jsonOnlyInstruction
	var lastResp *Response
	var lastErr error

	for attempt := 0; attempt < 2; attempt++ {
		attemptReq := req
		attemptReq.Prompt = prompt
		if attempt > 0 {
			attemptReq.Prompt = fmt.Sprintf(
				"%s\n\nYour previous response was invalid: %v\nReturn corrected JSON only.",
				prompt, lastErr)
		}

		resp, err := c.Generate(ctx, attemptReq)
		if err != nil {
			return nil, err
		}
		lastResp = resp

		lastErr = c.decodeInto(resp.Content, rv)
		if lastErr == nil {
			return resp, nil
		}
	}

	return lastResp, domain.NewValidationError("response",
		fmt.Sprintf("structured output failed validation after retry: %v", lastErr))
}

// decodeInto unmarshals content into a fresh value of out's type, validates
// it, and on success copies it into out. Decoding into a fresh value keeps
// a failed first attempt from leaking partial data into the result.
func (c *Client) decodeInto(content string, rv reflect.Value) error {
	fresh := reflect.New(rv.Elem().Type())

	if err := json.Unmarshal([]byte(StripCodeFences(content)), fresh.Interface()); err != nil {
		return fmt.Errorf("decoding JSON: %w", err)
	}
	if err := c.validateValue(fresh.Elem()); err != nil {
		return err
	}

	rv.Elem().Set(fresh.Elem())
	return nil
}

// validateValue applies validator tags to a decoded struct or to each
// element of a decoded slice. Other kinds pass through.
func (c *Client) validateValue(v reflect.Value) error {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return fmt.Errorf("decoded value is null")
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Struct:
		if err := c.validate.Struct(v.Interface()); err != nil {
			return fmt.Errorf("validating fields: %w", err)
		}
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return fmt.Errorf("response contains no items")
		}
		for i := 0; i < v.Len(); i++ {
			elem := v.Index(i)
			for elem.Kind() == reflect.Pointer && !elem.IsNil() {
				elem = elem.Elem()
			}
			if elem.Kind() != reflect.Struct {
				continue
			}
			if err := c.validate.Struct(elem.Interface()); err != nil {
				return fmt.Errorf("validating item %d: %w", i, err)
			}
		}
	}
	return nil
}

// StripCodeFences removes a surrounding markdown code fence from s, if
// present, and trims whitespace. Models regularly wrap JSON in
// ```json fences despite instructions not to.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	// Drop the opening fence line (``` or ```json).
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[idx+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}

	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
