// Package metrics exposes Prometheus collectors for the harvester service.
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
	operationsTotal            *prometheus.CounterVec
	operationDurationSeconds   *prometheus.HistogramVec
	crawlPagesTotal            *prometheus.CounterVec
	crawlBytesTotal            *prometheus.CounterVec
	fetchResultsTotal          *prometheus.CounterVec
	fetchRetriesTotal          prometheus.Counter
	fetchesInFlight            prometheus.Gauge
	extractionsTotal           *prometheus.CounterVec
	analysesTotal              *prometheus.CounterVec
	archivesTotal              *prometheus.CounterVec
	rateLimitWaitSeconds       *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		operationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_operations_total",
				Help: "Total number of pipeline operations, labeled by operation type and outcome.",
			},
			[]string{"operation", "outcome"},
		)

		operationDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvester_operation_duration_seconds",
				Help:    "Histogram of pipeline operation latencies, labeled by operation type.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
			},
			[]string{"operation"},
		)

		crawlPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_crawl_pages_total",
				Help: "Total number of crawl dispatches, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		crawlBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_crawl_bytes_total",
				Help: "Total number of page bytes fetched during crawls, labeled by site.",
			},
			[]string{"site"},
		)

		fetchResultsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_fetch_results_total",
				Help: "Total number of retried fetches, labeled by terminal classification.",
			},
			[]string{"class"},
		)

		fetchRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_fetch_retries_total",
				Help: "Total number of fetch attempts beyond the first.",
			},
		)

		fetchesInFlight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvester_crawl_fetches_in_flight",
				Help: "Number of crawl fetches currently in flight.",
			},
		)

		extractionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_extractions_total",
				Help: "Total number of page extractions, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		analysesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_analyses_total",
				Help: "Total number of analysis calls, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		archivesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_archives_total",
				Help: "Total number of archive attempts, labeled by sink and outcome.",
			},
			[]string{"sink", "outcome"},
		)

		rateLimitWaitSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvester_ratelimit_wait_seconds",
				Help:    "Time outbound calls spent waiting for a rate limit token, labeled by host.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 3, 10},
			},
			[]string{"host"},
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"method", "route"},
		)
	})
}

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
	Init()
	return promhttp.Handler()
}

// ObserveOperation records one pipeline operation.
func ObserveOperation(operation, outcome string, duration time.Duration) {
	Init()
	operationsTotal.WithLabelValues(operation, outcome).Inc()
	operationDurationSeconds.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveCrawlPage records one crawl dispatch outcome.
func ObserveCrawlPage(site, outcome string, bytesFetched int) {
	Init()
	sanitizedSite := SanitizeSite(site)
	crawlPagesTotal.WithLabelValues(sanitizedSite, outcome).Inc()
	if bytesFetched > 0 {
		crawlBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
}

// ObserveFetch records the terminal class of a retried fetch and its extra attempts.
func ObserveFetch(class string, attempts int) {
	Init()
	fetchResultsTotal.WithLabelValues(class).Inc()
	if attempts > 1 {
		fetchRetriesTotal.Add(float64(attempts - 1))
	}
}

// IncFetchesInFlight increments the in-flight crawl fetch gauge.
func IncFetchesInFlight() {
	Init()
	fetchesInFlight.Inc()
}

// DecFetchesInFlight decrements the in-flight crawl fetch gauge.
func DecFetchesInFlight() {
	Init()
	fetchesInFlight.Dec()
}

// ObserveExtraction records one page extraction.
func ObserveExtraction(success bool) {
	Init()
	extractionsTotal.WithLabelValues(outcomeLabel(success)).Inc()
}

// ObserveAnalysis records one analysis call outcome.
func ObserveAnalysis(outcome string) {
	Init()
	analysesTotal.WithLabelValues(outcome).Inc()
}

// ObserveRateLimitWait records a delay introduced by an outbound rate limiter.
func ObserveRateLimitWait(host string, d time.Duration) {
	Init()
	rateLimitWaitSeconds.WithLabelValues(SanitizeSite(host)).Observe(d.Seconds())
}

// ObserveArchive records one archive sink write.
func ObserveArchive(sink string, success bool) {
	Init()
	archivesTotal.WithLabelValues(sink, outcomeLabel(success)).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

func outcomeLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
