// Package papersources provides interfaces and types for academic paper source clients.
//
// Each external database (arXiv, Semantic Scholar) implements the PaperSource
// interface, allowing the research pipeline to search multiple sources
// concurrently with a unified API. Clients combine a sliding-window rate
// limiter, matching each API's published quota, with an exponential-backoff
// retry policy for transient failures.
//
// Example usage:
//
//	source := arxiv.New(arxiv.Config{Enabled: true})
//	papers, err := source.Search(ctx, "quantum error correction", 20)
package papersources

import (
	"context"

	"github.com/helixir/research-swarm-service/internal/domain"
)

// PaperSource defines the interface that all paper source clients implement.
type PaperSource interface {
	// Search queries the source for papers matching the query. limit caps
	// the number of results; a value <= 0 uses the source's default.
	// Results missing a title or abstract are dropped by implementations.
	//
	// Implementations should:
	//   - Respect context cancellation
	//   - Apply rate limiting before every request
	//   - Retry transient failures with exponential backoff
	//   - Transform source-specific responses to domain.Paper
	Search(ctx context.Context, query string, limit int) ([]domain.Paper, error)

	// SourceType returns the type identifier for this paper source.
	// Used for attribution and deduplication merge preference.
	SourceType() domain.SourceType

	// Name returns a human-readable name for logging and metrics.
	Name() string

	// IsEnabled reports whether this source participates in searches.
	// A source may be disabled through configuration or a missing API key.
	IsEnabled() bool
}
