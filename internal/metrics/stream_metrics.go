package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Labels are low-cardinality only (no camera_id/user_id/subscriber id).

var (
	// StreamSubscribers is the current registry size
	StreamSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stream_subscribers",
			Help: "Live event stream subscribers",
		},
	)

	// StreamMessagesTotal counts messages accepted into subscriber queues
	StreamMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_messages_total",
			Help: "Messages enqueued to stream subscribers by kind",
		},
		[]string{"kind"},
	)

	// StreamTeardownsTotal counts subscriber removals by reason
	StreamTeardownsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_teardowns_total",
			Help: "Stream subscriber teardowns by reason",
		},
		[]string{"reason"},
	)

	// EventsCreatedTotal counts persisted events by entry point
	EventsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_created_total",
			Help: "Events persisted by source",
		},
		[]string{"source"},
	)

	// EventQueryFailuresTotal counts filtered queries answered with an empty page
	EventQueryFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "event_query_failures_total",
			Help: "Filtered event queries that failed in the store",
		},
	)

	// IngestMessagesTotal counts NATS detection messages by outcome
	IngestMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_messages_total",
			Help: "Ingested detection messages by kind and result",
		},
		[]string{"kind", "result"},
	)

	// HTTPRequestsTotal counts API requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method and status class",
		},
		[]string{"method", "code"},
	)

	// HTTPRequestDuration tracks handler latency
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// RateLimitTotal counts limiter decisions
	RateLimitTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_requests_total",
			Help: "Rate limiter decisions by scope and result",
		},
		[]string{"scope", "result"},
	)

	// RateLimitRedisErrorsTotal counts fail-open decisions
	RateLimitRedisErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ratelimit_redis_errors_total",
			Help: "Redis errors seen by the rate limiter",
		},
	)
)

func RecordMessage(kind string) {
	StreamMessagesTotal.WithLabelValues(kind).Inc()
}

func RecordTeardown(reason string) {
	StreamTeardownsTotal.WithLabelValues(reason).Inc()
}

func SetSubscribers(n int) {
	StreamSubscribers.Set(float64(n))
}

func RecordEventCreated(source string) {
	EventsCreatedTotal.WithLabelValues(source).Inc()
}

func RecordIngest(kind, result string) {
	IngestMessagesTotal.WithLabelValues(kind, result).Inc()
}

func RecordRateLimit(scope, result string) {
	RateLimitTotal.WithLabelValues(scope, result).Inc()
}

func RecordRedisError() {
	RateLimitRedisErrorsTotal.Inc()
}
