// Package semanticscholar implements the papersources.PaperSource interface
// for the Semantic Scholar Graph API.
//
// API Documentation: https://api.semanticscholar.org/api-docs/
package semanticscholar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/research-swarm-service/internal/domain"
	"github.com/helixir/research-swarm-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default Semantic Scholar Graph API base URL.
	DefaultBaseURL = "https://api.semanticscholar.org/graph/v1"

	// DefaultMaxRequests and DefaultWindow encode the unauthenticated
	// limit of 100 requests per five minutes.
	DefaultMaxRequests = 100
	DefaultWindow      = 5 * time.Minute

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per request.
	DefaultMaxResults = 20

	// apiKeyHeader is the header Semantic Scholar reads API keys from.
	apiKeyHeader = "x-api-key"

	// paperFields lists the fields requested from the search endpoint.
	paperFields = "title,abstract,authors,year,publicationDate,externalIds,citationCount,url"

	// sourceName is the human-readable name for this source.
	sourceName = "Semantic Scholar"
)

// Config holds configuration for the Semantic Scholar client.
type Config struct {
	// BaseURL is the Graph API base URL.
	BaseURL string

	// APIKey is an optional API key granting a higher rate limit.
	APIKey string

	// Timeout is the request timeout.
	Timeout time.Duration

	// MaxRequests is the request quota per rate limit window.
	MaxRequests int

	// Window is the sliding rate limit window.
	Window time.Duration

	// MaxResults is the maximum results to return per search request.
	MaxResults int

	// Enabled indicates whether this source is enabled for searches.
	Enabled bool

	// Retry overrides the default retry policy (3 retries, 1s/2s/4s).
	Retry *papersources.RetryPolicy
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRequests == 0 {
		c.MaxRequests = DefaultMaxRequests
	}
	if c.Window == 0 {
		c.Window = DefaultWindow
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// Client implements the papersources.PaperSource interface for Semantic Scholar.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
	retry      papersources.RetryPolicy
}

// Ensure Client implements PaperSource interface.
var _ papersources.PaperSource = (*Client)(nil)

// New creates a new Semantic Scholar client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:      cfg.Timeout,
		MaxRequests:  cfg.MaxRequests,
		Window:       cfg.Window,
		APIKey:       cfg.APIKey,
		APIKeyHeader: apiKeyHeader,
	})

	return NewWithHTTPClient(cfg, httpClient)
}

// NewWithHTTPClient creates a new Semantic Scholar client with a custom HTTP
// client. This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	retry := papersources.DefaultRetryPolicy()
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		retry:      retry,
	}
}

// Search queries Semantic Scholar for papers matching the query, sorted by
// relevance. Results missing a title or abstract are dropped.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]domain.Paper, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.NewValidationError("query", "must not be empty")
	}

	searchURL, err := c.buildSearchURL(query, limit)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	var searchResp SearchResponse
	err = c.retry.Execute(ctx, "semantic scholar search", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("executing request: %w", err)
		}
		defer resp.Body.Close()

		if err := papersources.StatusError(sourceName, resp); err != nil {
			return err
		}

		// Decode the JSON response (limit body to 10MB).
		searchResp = SearchResponse{}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&searchResp); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	papers := make([]domain.Paper, 0, len(searchResp.Data))
	for i := range searchResp.Data {
		if paper, ok := resultToPaper(&searchResp.Data[i]); ok {
			papers = append(papers, paper)
		}
	}
	return papers, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeSemanticScholar
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// buildSearchURL constructs the paper search endpoint URL.
func (c *Client) buildSearchURL(query string, limit int) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	searchURL := baseURL.JoinPath("paper", "search")

	if limit <= 0 || limit > c.config.MaxResults {
		limit = c.config.MaxResults
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("fields", paperFields)

	searchURL.RawQuery = q.Encode()
	return searchURL.String(), nil
}

// resultToPaper converts a Semantic Scholar result to a domain Paper.
// Results without a title or abstract are rejected.
func resultToPaper(result *PaperResult) (domain.Paper, bool) {
	title := strings.TrimSpace(result.Title)
	abstract := strings.TrimSpace(result.Abstract)
	if title == "" || abstract == "" {
		return domain.Paper{}, false
	}

	authors := make([]string, 0, len(result.Authors))
	for _, a := range result.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			authors = append(authors, name)
		}
	}

	// Prefer the full publication date; fall back to the year alone.
	pubDate := strings.TrimSpace(result.PublicationDate)
	if pubDate == "" && result.Year > 0 {
		pubDate = strconv.Itoa(result.Year)
	}

	paper := domain.Paper{
		Title:           title,
		Authors:         authors,
		Abstract:        abstract,
		PublicationDate: pubDate,
		SourceURL:       strings.TrimSpace(result.URL),
		CitationCount:   result.CitationCount,
		Source:          string(domain.SourceTypeSemanticScholar),
	}
	if result.ExternalIDs != nil {
		if doi := strings.TrimSpace(result.ExternalIDs.DOI); doi != "" {
			paper.DOI = &doi
		}
	}
	return paper, true
}
