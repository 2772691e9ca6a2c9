// Package observability provides logging and metrics support for the
// research swarm service.
//
// # Logging
//
// Create a logger from configuration:
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	})
//
// Add session context to a logger:
//
//	logger = observability.WithSessionContext(logger, sessionID)
//
// # Metrics
//
// Initialize Prometheus metrics once at startup:
//
//	metrics := observability.NewMetrics("research_swarm")
//	metrics.SessionsStarted.Inc()
//	metrics.StagesCompleted.WithLabelValues("literature_review").Inc()
//
// # Standard Fields
//
// Common log fields used across the service:
//
//   - session_id: Research session identifier
//   - stage: Pipeline stage (literature_review, gap_analysis, ...)
//   - agent: Agent name (literature_agent, writing_agent, ...)
//   - source: Paper source (arxiv, semantic_scholar)
//   - request_id: HTTP request identifier
//
// All components are safe for concurrent use from multiple goroutines.
package observability
