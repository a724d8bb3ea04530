// Package observability provides logging and metrics support for the
// arXiv collector.
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
//	logger = observability.WithComponent(logger, "collector")
//
// # Metrics
//
//	metrics := observability.NewMetrics("arxiv_collector")
//	metrics.RecordCategoryFetched("math.AG", 0.8, 42)
//
// # Standard Fields
//
//   - component: emitting package
//   - run_id: collection run identifier
//   - mode: update or backfill
//   - category: taxonomy code being fetched
//   - window_start, window_end: publication window of a fetch
//   - external_id: article identifier
//   - request_id: HTTP request identifier
package observability
