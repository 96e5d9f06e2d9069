// ABOUTME: Prometheus collectors for the store, offline queue, scheduler, and HTTP layer.
// ABOUTME: Registered on the default registry via promauto and served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpsertsTotal counts ownership-safe upserts by table and result
	// (applied, conflict, error).
	UpsertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cradle_upserts_total",
			Help: "Ownership-safe upserts by table and result",
		},
		[]string{"table", "result"},
	)

	// AccountUnitsTotal counts account-wide atomic units by kind and result.
	AccountUnitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cradle_account_units_total",
			Help: "Account-wide transactions (import, delete) by kind and result",
		},
		[]string{"kind", "result"},
	)

	// QueueEntriesTotal counts drained queue entries by outcome
	// (applied, discarded, retried, dropped, held_back).
	QueueEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cradle_queue_entries_total",
			Help: "Offline queue entries processed by outcome",
		},
		[]string{"outcome"},
	)

	// ScheduleClaimsTotal counts scheduler decisions by result
	// (fired, skipped_suspicious, lost_race, error).
	ScheduleClaimsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cradle_schedule_claims_total",
			Help: "Notification schedule claims by result",
		},
		[]string{"result"},
	)

	// HTTPRequestsTotal counts API requests.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cradle_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes API latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cradle_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)
)
