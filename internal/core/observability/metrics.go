package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream", "op", "outcome"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)

	updateCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "places_update_cycles_total",
			Help: "Place group update cycles by result.",
		},
		[]string{"result"},
	)

	updateCycleSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "places_update_cycle_duration_seconds",
			Help:    "Duration of a full update cycle.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	groupOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "places_group_outcomes_total",
			Help: "Per place group update outcomes.",
		},
		[]string{"outcome"},
	)

	groupFeatures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "places_group_features",
			Help: "Number of features in the last registered version of a place group.",
		},
		[]string{"group"},
	)

	cacheOpSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cache_op_duration_seconds",
			Help:    "Latency of Redis cache operations.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op", "outcome"},
	)

	eventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "places_events_total",
			Help: "Kafka events published or consumed by outcome.",
		},
		[]string{"direction", "outcome"},
	)

	cacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "places_cache_results_total",
			Help: "Place group cache lookups by outcome.",
		},
		[]string{"backend", "outcome"},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream, op string, err error, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(upstream, op, outcomeLabel(err)).Observe(durationSeconds)
}

func ObserveCycle(result string, durationSeconds float64) {
	updateCycles.WithLabelValues(result).Inc()
	updateCycleSeconds.Observe(durationSeconds)
}

func IncGroupOutcome(outcome string) {
	groupOutcomes.WithLabelValues(outcome).Inc()
}

func SetGroupFeatures(group string, n int) {
	groupFeatures.WithLabelValues(group).Set(float64(n))
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	cacheOpSeconds.WithLabelValues(op, outcomeLabel(err)).Observe(durationSeconds)
}

// IncEvent counts a Kafka event; direction is "out" or "in".
func IncEvent(direction string, err error) {
	eventsPublished.WithLabelValues(direction, outcomeLabel(err)).Inc()
}

func outcomeLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func IncCacheHit(backend string) {
	cacheResults.WithLabelValues(backend, "hit").Inc()
}

func IncCacheMiss(backend string) {
	cacheResults.WithLabelValues(backend, "miss").Inc()
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
