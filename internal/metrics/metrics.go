// Package metrics exposes Prometheus collectors for ingest and the query API.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	pageFetchesTotal           *prometheus.CounterVec
	pageBytesTotal             *prometheus.CounterVec
	sitemapFetchesTotal        *prometheus.CounterVec
	rateLimitDelaySeconds      *prometheus.HistogramVec
	upstreamCallsTotal         *prometheus.CounterVec
	upstreamCallSeconds        *prometheus.HistogramVec
	chunksIndexedTotal         prometheus.Counter

	once sync.Once
)

// Init registers the collectors on the default registry. Safe to call repeatedly.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tgcrag_http_requests_total",
			Help: "API requests, labeled by method and code.",
		}, []string{"method", "code"})

		httpRequestDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tgcrag_http_request_duration_seconds",
			Help:    "API request latency, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"method", "route"})

		pageFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tgcrag_page_fetches_total",
			Help: "Article page fetches, labeled by site and outcome.",
		}, []string{"site", "outcome"})

		pageBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tgcrag_page_bytes_total",
			Help: "Article page bytes fetched, labeled by site.",
		}, []string{"site"})

		sitemapFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tgcrag_sitemap_fetches_total",
			Help: "Sitemap document fetches, labeled by outcome.",
		}, []string{"outcome"})

		rateLimitDelaySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tgcrag_rate_limit_delay_seconds",
			Help:    "Time spent waiting on the politeness pacer.",
			Buckets: []float64{0.1, 0.5, 1, 1.5, 2, 5, 10},
		}, []string{"site"})

		upstreamCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tgcrag_upstream_calls_total",
			Help: "Model provider calls, labeled by kind and outcome.",
		}, []string{"kind", "outcome"})

		upstreamCallSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tgcrag_upstream_call_duration_seconds",
			Help:    "Model provider call latency, labeled by kind.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"kind"})

		chunksIndexedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "tgcrag_chunks_indexed_total",
			Help: "Chunks written to the vector collection.",
		})
	})
}

// SanitizeSite extracts a lowercase hostname, or "unknown".
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

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest records one API request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveFetch records an article fetch.
func ObserveFetch(rawURL, outcome string, bytesFetched int) {
	Init()
	site := SanitizeSite(rawURL)
	pageFetchesTotal.WithLabelValues(site, outcome).Inc()
	if bytesFetched > 0 {
		pageBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
}

// ObserveSitemapFetch records a sitemap document fetch.
func ObserveSitemapFetch(outcome string) {
	Init()
	sitemapFetchesTotal.WithLabelValues(outcome).Inc()
}

// ObserveRateLimitDelay records time spent waiting on the pacer.
func ObserveRateLimitDelay(site string, duration time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(site).Observe(duration.Seconds())
}

// ObserveUpstreamCall records a model provider call.
func ObserveUpstreamCall(kind, outcome string, duration time.Duration) {
	Init()
	upstreamCallsTotal.WithLabelValues(kind, outcome).Inc()
	upstreamCallSeconds.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObserveChunksIndexed adds n to the indexed-chunk counter.
func ObserveChunksIndexed(n int) {
	Init()
	if n > 0 {
		chunksIndexedTotal.Add(float64(n))
	}
}
