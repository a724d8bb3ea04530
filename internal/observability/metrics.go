package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons recorded by RecordEntriesDropped.
const (
	DropReasonMalformed   = "malformed"
	DropReasonOutOfWindow = "out_of_window"
)

// Metrics contains the Prometheus metrics for collection runs and reads.
type Metrics struct {
	// RunsStarted counts collection runs, labeled by mode (update, backfill).
	RunsStarted *prometheus.CounterVec

	// CategoryFetches counts per-category fetch attempts, labeled by category and outcome.
	CategoryFetches *prometheus.CounterVec

	// FetchDuration observes remote page request duration in seconds, labeled by category.
	FetchDuration *prometheus.HistogramVec

	// ArticlesWritten counts records inserted or overwritten, labeled by category.
	ArticlesWritten *prometheus.CounterVec

	// EntriesDropped counts feed entries the parser did not accept, labeled by reason.
	EntriesDropped *prometheus.CounterVec

	// IntegrityConflicts counts single-record writes the store refused.
	IntegrityConflicts prometheus.Counter

	// QueriesServed counts query engine reads, labeled by kind (list, detail, stats).
	QueriesServed *prometheus.CounterVec

	// QueriesRejected counts reads refused for invalid input.
	QueriesRejected prometheus.Counter

	// QueryDuration observes query engine read duration in seconds.
	QueryDuration prometheus.Histogram
}

// NewMetrics creates the metrics on the default Prometheus registry.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith creates the metrics on reg.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RunsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Total number of collection runs started",
		}, []string{"mode"}),
		CategoryFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "category_fetches_total",
			Help:      "Total number of per-category fetch attempts",
		}, []string{"category", "outcome"}),
		FetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of remote page requests in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"category"}),
		ArticlesWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_written_total",
			Help:      "Total number of articles inserted or overwritten",
		}, []string{"category"}),
		EntriesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_dropped_total",
			Help:      "Total number of feed entries not accepted by the parser",
		}, []string{"reason"}),
		IntegrityConflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "integrity_conflicts_total",
			Help:      "Total number of record writes skipped on integrity faults",
		}),
		QueriesServed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_served_total",
			Help:      "Total number of reads served",
		}, []string{"kind"}),
		QueriesRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_rejected_total",
			Help:      "Total number of reads rejected for invalid input",
		}),
		QueryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Duration of reads in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// RecordRunStarted increments the runs counter for mode.
func (m *Metrics) RecordRunStarted(mode string) {
	m.RunsStarted.WithLabelValues(mode).Inc()
}

// RecordCategoryFetched records a successful category fetch.
func (m *Metrics) RecordCategoryFetched(category string, durationSeconds float64, written int) {
	m.CategoryFetches.WithLabelValues(category, "ok").Inc()
	m.FetchDuration.WithLabelValues(category).Observe(durationSeconds)
	m.ArticlesWritten.WithLabelValues(category).Add(float64(written))
}

// RecordCategoryFailed records a failed category fetch.
func (m *Metrics) RecordCategoryFailed(category string, durationSeconds float64) {
	m.CategoryFetches.WithLabelValues(category, "failed").Inc()
	m.FetchDuration.WithLabelValues(category).Observe(durationSeconds)
}

// RecordEntriesDropped adds count dropped entries for reason.
func (m *Metrics) RecordEntriesDropped(reason string, count int) {
	if count > 0 {
		m.EntriesDropped.WithLabelValues(reason).Add(float64(count))
	}
}

// RecordIntegrityConflicts adds count skipped writes.
func (m *Metrics) RecordIntegrityConflicts(count int) {
	if count > 0 {
		m.IntegrityConflicts.Add(float64(count))
	}
}

// RecordQuery records a served read of kind.
func (m *Metrics) RecordQuery(kind string, durationSeconds float64) {
	m.QueriesServed.WithLabelValues(kind).Inc()
	m.QueryDuration.Observe(durationSeconds)
}

// RecordQueryRejected records a read refused for invalid input.
func (m *Metrics) RecordQueryRejected() {
	m.QueriesRejected.Inc()
}
