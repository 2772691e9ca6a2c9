// Package tools coordinates the external research tools available to
// agents, fanning searches out across paper sources.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/research-swarm-service/internal/dedup"
	"github.com/helixir/research-swarm-service/internal/domain"
	"github.com/helixir/research-swarm-service/internal/observability"
	"github.com/helixir/research-swarm-service/internal/papersources"
)

// SourceOutcome holds the result of a search from one source.
type SourceOutcome struct {
	// Source identifies which paper source produced this outcome.
	Source domain.SourceType

	// Papers contains the results if the search succeeded.
	Papers []domain.Paper

	// Err contains the error if the search failed.
	Err error
}

// SearchResult is the aggregate outcome of a fan-out search.
type SearchResult struct {
	// Papers is the deduplicated union of all successful source results,
	// in source registration order then result order.
	Papers []domain.Paper

	// Outcomes records the per-source results, including failures.
	Outcomes []SourceOutcome

	// APICalls counts the external search calls issued.
	APICalls int
}

// Orchestrator fans searches out across registered paper sources
// concurrently and deduplicates the combined results. It is safe for
// concurrent use.
type Orchestrator struct {
	mu      sync.RWMutex
	sources []papersources.PaperSource

	dedup   *dedup.Deduplicator
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// NewOrchestrator creates an orchestrator with no registered sources.
// metrics may be nil; search instrumentation is then skipped.
func NewOrchestrator(deduplicator *dedup.Deduplicator, metrics *observability.Metrics, logger zerolog.Logger) *Orchestrator {
	if deduplicator == nil {
		deduplicator = dedup.New(0)
	}
	return &Orchestrator{
		dedup:   deduplicator,
		metrics: metrics,
		logger:  logger.With().Str("component", "tool_orchestrator").Logger(),
	}
}

// Register adds a source. A source with the same type replaces the
// earlier registration, keeping its position.
func (o *Orchestrator) Register(source papersources.PaperSource) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i, existing := range o.sources {
		if existing.SourceType() == source.SourceType() {
			o.sources[i] = source
			return
		}
	}
	o.sources = append(o.sources, source)
}

// EnabledSources returns a snapshot of the enabled sources in
// registration order.
func (o *Orchestrator) EnabledSources() []papersources.PaperSource {
	o.mu.RLock()
	defer o.mu.RUnlock()

	sources := make([]papersources.PaperSource, 0, len(o.sources))
	for _, source := range o.sources {
		if source.IsEnabled() {
			sources = append(sources, source)
		}
	}
	return sources
}

// SearchAllSources searches every enabled source concurrently and returns
// the deduplicated union. A failing source is logged and skipped; an error
// is returned only when no source is registered or every enabled source
// failed.
func (o *Orchestrator) SearchAllSources(ctx context.Context, query string, limit int) (*SearchResult, error) {
	sources := o.EnabledSources()
	if len(sources) == 0 {
		return nil, fmt.Errorf("no enabled paper sources: %w", domain.ErrServiceUnavailable)
	}

	outcomes := make([]SourceOutcome, len(sources))
	var wg sync.WaitGroup

	for i, source := range sources {
		wg.Add(1)
		go func(idx int, s papersources.PaperSource) {
			defer wg.Done()

			start := time.Now()
			papers, err := s.Search(ctx, query, limit)
			o.recordSearch(s.SourceType(), time.Since(start), err)
			outcomes[idx] = SourceOutcome{
				Source: s.SourceType(),
				Papers: papers,
				Err:    err,
			}
		}(i, source)
	}
	wg.Wait()

	result := &SearchResult{
		Outcomes: outcomes,
		APICalls: len(sources),
	}

	var combined []domain.Paper
	var failures []error
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			o.logger.Warn().
				Err(outcome.Err).
				Str("source", string(outcome.Source)).
				Str("query", query).
				Msg("Paper source search failed")
			failures = append(failures, fmt.Errorf("%s: %w", outcome.Source, outcome.Err))
			continue
		}
		combined = append(combined, outcome.Papers...)
	}

	if len(failures) == len(sources) {
		return nil, fmt.Errorf("all paper sources failed: %w", errors.Join(failures...))
	}

	result.Papers = o.dedup.Deduplicate(combined)
	if o.metrics != nil {
		o.metrics.PapersDiscovered.Add(float64(len(result.Papers)))
		o.metrics.PapersDuplicate.Add(float64(len(combined) - len(result.Papers)))
	}

	o.logger.Debug().
		Str("query", query).
		Int("sources", len(sources)).
		Int("failed", len(failures)).
		Int("papers", len(result.Papers)).
		Msg("Source fan-out complete")

	return result, nil
}

// recordSearch updates per-source search counters.
func (o *Orchestrator) recordSearch(source domain.SourceType, elapsed time.Duration, err error) {
	if o.metrics == nil {
		return
	}
	label := string(source)
	o.metrics.SearchesTotal.WithLabelValues(label).Inc()
	o.metrics.SearchDuration.WithLabelValues(label).Observe(elapsed.Seconds())
	if err != nil {
		o.metrics.SearchesFailed.WithLabelValues(label).Inc()
		if errors.Is(err, domain.ErrRateLimited) {
			o.metrics.SourceRateLimited.WithLabelValues(label).Inc()
		}
	}
}
