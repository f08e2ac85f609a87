// Package metrics exposes Prometheus collectors for the snapshot service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Render outcomes.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Cache lookup results.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

var (
	rendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_renders_total",
			Help: "Total number of renders, labeled by kind and status.",
		},
		[]string{"kind", "status"},
	)

	renderDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snapshot_render_duration_seconds",
			Help:    "Histogram of render latencies, labeled by kind.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"kind"},
	)

	pdfBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_pdf_bytes_total",
			Help: "Total number of PDF bytes produced, labeled by kind.",
		},
		[]string{"kind"},
	)

	scrollIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "snapshot_scroll_iterations",
			Help:    "Histogram of scroll steps taken before printing.",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20, 50, 100},
		},
	)

	activeRenders = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "snapshot_active_renders",
			Help: "Number of renders currently in progress.",
		},
	)

	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_cache_lookups_total",
			Help: "Total number of cache lookups, labeled by result.",
		},
		[]string{"result"},
	)

	throttledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "snapshot_throttled_total",
			Help: "Total number of requests rejected by the per-client throttle.",
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"method", "route"},
	)
)

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRender records one render outcome.
func ObserveRender(kind, status string, duration time.Duration, pdfBytes int) {
	rendersTotal.WithLabelValues(kind, status).Inc()
	renderDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
	if pdfBytes > 0 {
		pdfBytesTotal.WithLabelValues(kind).Add(float64(pdfBytes))
	}
}

// ObserveScrollIterations records how many scroll steps a render took.
func ObserveScrollIterations(n int) {
	scrollIterations.Observe(float64(n))
}

// IncActiveRenders increments the active renders gauge.
func IncActiveRenders() {
	activeRenders.Inc()
}

// DecActiveRenders decrements the active renders gauge.
func DecActiveRenders() {
	activeRenders.Dec()
}

// ObserveCacheLookup counts a cache hit, miss or error.
func ObserveCacheLookup(result string) {
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveThrottled counts a request rejected by the throttle.
func ObserveThrottled() {
	throttledTotal.Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
