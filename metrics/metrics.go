// Package metrics registers the Prometheus instrumentation for the
// event store.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsImported = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eveconsole_events_imported_total",
			Help: "Total number of events written through the import sink",
		},
	)

	AlertQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eveconsole_alert_queries_total",
			Help: "Total number of alert aggregation queries by strategy",
		},
		[]string{"strategy"},
	)

	AlertQueryTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eveconsole_alert_query_timeouts_total",
			Help: "Alert aggregation queries truncated by the time budget",
		},
	)

	AlertQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eveconsole_alert_query_duration_seconds",
			Help:    "Time taken to aggregate alerts",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	AlertGroups = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eveconsole_alert_groups",
			Help:    "Number of deduplicated groups per alert query",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	EventQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eveconsole_event_query_duration_seconds",
			Help:    "Time taken to run event list queries",
			Buckets: prometheus.DefBuckets,
		},
	)
)
