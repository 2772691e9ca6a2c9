package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the research swarm
// service, organized by subsystem: sessions, stages, paper sources,
// and LLM operations. All metrics register with the default registry
// via promauto.
type Metrics struct {
	// SessionsStarted counts the research sessions started.
	SessionsStarted prometheus.Counter

	// SessionsCompleted counts the sessions that produced a paper.
	SessionsCompleted prometheus.Counter

	// SessionsFailed counts the sessions that ended in failure,
	// including user stops and restart interruptions.
	SessionsFailed prometheus.Counter

	// SessionDuration observes end-to-end session duration in seconds.
	SessionDuration prometheus.Histogram

	// StagesCompleted counts completed pipeline stages, labeled by stage.
	StagesCompleted *prometheus.CounterVec

	// StagesFailed counts failed pipeline stages, labeled by stage.
	StagesFailed *prometheus.CounterVec

	// StageDuration observes stage duration in seconds, labeled by stage.
	StageDuration *prometheus.HistogramVec

	// PapersDiscovered counts unique papers retained after deduplication.
	PapersDiscovered prometheus.Counter

	// PapersDuplicate counts duplicates removed during deduplication.
	PapersDuplicate prometheus.Counter

	// SearchesTotal counts searches issued, labeled by paper source.
	SearchesTotal *prometheus.CounterVec

	// SearchesFailed counts failed searches, labeled by paper source.
	SearchesFailed *prometheus.CounterVec

	// SearchDuration observes search duration in seconds, labeled by source.
	SearchDuration *prometheus.HistogramVec

	// SourceRateLimited counts rate-limited responses, labeled by source.
	SourceRateLimited *prometheus.CounterVec

	// LLMRequestsTotal counts LLM API requests, labeled by provider and model.
	LLMRequestsTotal *prometheus.CounterVec

	// LLMRequestsFailed counts failed LLM requests, labeled by provider and model.
	LLMRequestsFailed *prometheus.CounterVec

	// LLMTokensUsed counts tokens consumed, labeled by provider, model,
	// and token type (input, output).
	LLMTokensUsed *prometheus.CounterVec

	// HTTPRequestDuration observes API request duration in seconds,
	// labeled by method, route, and status code.
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates all metrics under the given namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of research sessions started",
		}),
		SessionsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_completed_total",
			Help:      "Total number of research sessions completed successfully",
		}),
		SessionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_failed_total",
			Help:      "Total number of research sessions that failed",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "End-to-end duration of research sessions in seconds",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200, 1800, 3600},
		}),
		StagesCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stages_completed_total",
			Help:      "Total number of completed pipeline stages",
		}, []string{"stage"}),
		StagesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stages_failed_total",
			Help:      "Total number of failed pipeline stages",
		}, []string{"stage"}),
		StageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"stage"}),
		PapersDiscovered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_discovered_total",
			Help:      "Total number of unique papers retained after deduplication",
		}),
		PapersDuplicate: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_duplicate_total",
			Help:      "Total number of duplicate papers removed",
		}),
		SearchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Total number of paper source searches",
		}, []string{"source"}),
		SearchesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_failed_total",
			Help:      "Total number of failed paper source searches",
		}, []string{"source"}),
		SearchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of paper source searches in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		SourceRateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rate_limited_total",
			Help:      "Total number of rate-limited responses from paper sources",
		}, []string{"source"}),
		LLMRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM API requests",
		}, []string{"provider", "model"}),
		LLMRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_failed_total",
			Help:      "Total number of failed LLM API requests",
		}, []string{"provider", "model"}),
		LLMTokensUsed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of LLM tokens consumed",
		}, []string{"provider", "model", "type"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of API requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// RecordStageResult updates the stage counters and duration histogram.
func (m *Metrics) RecordStageResult(stage string, seconds float64, failed bool) {
	if failed {
		m.StagesFailed.WithLabelValues(stage).Inc()
	} else {
		m.StagesCompleted.WithLabelValues(stage).Inc()
	}
	m.StageDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordLLMUsage updates LLM request and token counters.
func (m *Metrics) RecordLLMUsage(provider, model string, inputTokens, outputTokens int, failed bool) {
	m.LLMRequestsTotal.WithLabelValues(provider, model).Inc()
	if failed {
		m.LLMRequestsFailed.WithLabelValues(provider, model).Inc()
	}
	if inputTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
	}
}
