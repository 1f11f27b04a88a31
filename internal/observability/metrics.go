// Package observability defines the service's prometheus collectors.
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
			Help:    "Latency of upstream calls (geocode, content api) in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream"},
	)

	cacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Cache results by cache and outcome.",
		},
		[]string{"cache", "outcome"},
	)

	geocodeMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geocode_misses_total",
			Help: "Reverse geocode calls that resolved to no region.",
		},
	)

	staleDropsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stale_resolution_drops_total",
			Help: "Out-of-order async completions discarded by sequence guards.",
		},
		[]string{"kind"},
	)

	liveMarkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "map_live_markers",
			Help: "Markers currently drawn across all surfaces.",
		},
	)

	livePolygons = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "map_live_polygons",
			Help: "Boundary polygons currently drawn across all surfaces.",
		},
	)

	openSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "explorer_open_sessions",
			Help: "Explorer sessions currently open.",
		},
	)

	invalidationEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invalidation_events_total",
			Help: "Content invalidation events processed, by op and outcome.",
		},
		[]string{"op", "outcome"},
	)

	kafkaConsumerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_consumer_errors_total",
			Help: "Kafka consumer errors by kind.",
		},
		[]string{"kind"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(upstream).Observe(durationSeconds)
}

func IncCacheHit(cache string)  { cacheResults.WithLabelValues(cache, "hit").Inc() }
func IncCacheMiss(cache string) { cacheResults.WithLabelValues(cache, "miss").Inc() }

func IncGeocodeMiss() { geocodeMisses.Inc() }

func IncStaleDrop(kind string) { staleDropsTotal.WithLabelValues(kind).Inc() }

func AddLiveMarkers(n int)  { liveMarkers.Add(float64(n)) }
func AddLivePolygons(n int) { livePolygons.Add(float64(n)) }

func SessionOpened() { openSessions.Inc() }
func SessionClosed() { openSessions.Dec() }

func ObserveInvalidation(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	invalidationEvents.WithLabelValues(op, outcome).Inc()
}

func IncKafkaConsumerError(kind string) { kafkaConsumerErrors.WithLabelValues(kind).Inc() }

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
