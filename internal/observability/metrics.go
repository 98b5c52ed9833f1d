package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// Forecast provider call rate by status. Watch for: error vs success ratio.
	ProviderCallsTotal *prometheus.CounterVec

	// Forecast provider latency per request. Watch for: p95 > 2s (upstream degradation).
	ProviderDuration *prometheus.HistogramVec

	// Retry attempts for provider calls. Watch for: high retries = unstable upstream.
	ProviderRetriesTotal prometheus.Counter

	// Sync job pages processed, by partition offset. rate() gives crawl throughput.
	SyncPagesTotal *prometheus.CounterVec

	// Locations seen per sync page, by outcome
	// (refreshed, fresh, invalid_topic, offset_mismatch, provider_error, malformed).
	SyncLocationsTotal *prometheus.CounterVec

	// Full job invocation latency, by job kind. Bounded by the slowest provider call in a page.
	JobDuration *prometheus.HistogramVec

	// Job invocations by kind and outcome (ok, error, locked).
	JobRunsTotal *prometheus.CounterVec

	// Queue entries staged, by message type.
	QueueEntriesTotal *prometheus.CounterVec

	// Dispatch outcomes (sent, discarded, missing). Discards are validation
	// failures, not errors.
	DispatchTotal *prometheus.CounterVec

	// Push send rate by status. Watch for: send failures after entry delete
	// (those notifications are gone for the day).
	PushSendsTotal *prometheus.CounterVec

	// HTTP request rate for the profile/analytics surface.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request.
	HTTPRequestDuration *prometheus.HistogramVec
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	ProviderCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "providerCallsTotal",
			Help: "Total number of forecast provider API calls",
		},
		[]string{"status"},
	)
	ProviderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "providerDurationSeconds",
			Help:    "Forecast provider API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)
	ProviderRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "providerRetriesTotal",
			Help: "Total number of retry attempts for provider calls",
		},
	)
	SyncPagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncPagesTotal",
			Help: "Pages of locations processed by the weather sync job",
		},
		[]string{"offset"},
	)
	SyncLocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncLocationsTotal",
			Help: "Locations seen by the weather sync job, by outcome",
		},
		[]string{"outcome"},
	)
	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobDurationSeconds",
			Help:    "Job invocation latency in seconds",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)
	JobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobRunsTotal",
			Help: "Job invocations by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
	QueueEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queueEntriesTotal",
			Help: "Notification queue entries staged, by message type",
		},
		[]string{"messageType"},
	)
	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatchTotal",
			Help: "Queue dispatch outcomes (sent, discarded, missing)",
		},
		[]string{"outcome"},
	)
	PushSendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushSendsTotal",
			Help: "Push notification sends by status",
		},
		[]string{"status"},
	)
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	registry.MustRegister(
		ProviderCallsTotal, ProviderDuration, ProviderRetriesTotal,
		SyncPagesTotal, SyncLocationsTotal,
		JobDuration, JobRunsTotal,
		QueueEntriesTotal, DispatchTotal, PushSendsTotal,
		HTTPRequestsTotal, HTTPRequestDuration,
	)
}

// MetricsHandler returns the /metrics endpoint handler for the service registry.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
