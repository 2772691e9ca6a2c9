package papersources

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/helixir/research-swarm-service/internal/domain"
)

// DefaultUserAgent identifies this service to external APIs.
const DefaultUserAgent = "Helixir-ResearchSwarm/1.0"

// HTTPClientConfig configures the HTTP client.
type HTTPClientConfig struct {
	// Timeout is the request timeout for HTTP operations.
	Timeout time.Duration

	// MaxRequests is the request quota per rate limit window.
	MaxRequests int

	// Window is the sliding window over which requests are counted.
	Window time.Duration

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// APIKey is an optional API key for authentication.
	APIKey string

	// APIKeyHeader is the header name for the API key (e.g., "x-api-key").
	APIKeyHeader string
}

// HTTPClient wraps http.Client with sliding-window rate limiting and
// standard headers. Retries are the caller's concern (see RetryPolicy);
// this keeps Retry-After information available to the retry layer through
// the returned error types. It is safe for concurrent use.
type HTTPClient struct {
	client      *http.Client
	rateLimiter *RateLimiter
	config      HTTPClientConfig
}

// NewHTTPClient creates a new HTTP client with rate limiting.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 10
	}
	if cfg.Window == 0 {
		cfg.Window = time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: NewRateLimiter(cfg.MaxRequests, cfg.Window),
		config:      cfg,
	}
}

// RateLimiter exposes the underlying limiter for wait-time inspection.
func (c *HTTPClient) RateLimiter() *RateLimiter {
	return c.rateLimiter
}

// Do executes an HTTP request after acquiring a rate limit slot.
// It sets the User-Agent and optional API key headers.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.config.APIKey != "" && c.config.APIKeyHeader != "" {
		req.Header.Set(c.config.APIKeyHeader, c.config.APIKey)
	}

	if err := c.rateLimiter.Acquire(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// StatusError converts a non-2xx response into a typed error and drains
// the body. 429 becomes a RateLimitError carrying any Retry-After hint;
// 401 and 403 wrap ErrUnauthenticated so the retry layer gives up
// immediately. Returns nil for 2xx responses.
func StatusError(source string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return domain.NewRateLimitError(source, ParseRetryAfter(resp))
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.NewExternalAPIError(source, resp.StatusCode, string(body), domain.ErrUnauthenticated)
	default:
		return domain.NewExternalAPIError(source, resp.StatusCode, string(body), nil)
	}
}

// ParseRetryAfter extracts the Retry-After header as a duration,
// supporting both delta-seconds and HTTP-date forms. Returns zero when
// absent or unparseable.
func ParseRetryAfter(resp *http.Response) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.ParseInt(retryAfter, 10, 64); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return 0
	}

	if t, err := http.ParseTime(retryAfter); err == nil {
		if delay := time.Until(t); delay > 0 {
			return delay
		}
	}
	return 0
}
