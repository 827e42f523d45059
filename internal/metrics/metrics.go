// Package metrics exposes Prometheus collectors for the crawler.
package metrics

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlerListingsTotal        *prometheus.CounterVec
	crawlerRecordsTotal         prometheus.Counter
	crawlerDetailFetchesTotal   *prometheus.CounterVec
	crawlerFetchRetriesTotal    *prometheus.CounterVec
	crawlerFetchDurationSeconds *prometheus.HistogramVec
	crawlerFrontierRemaining    prometheus.Gauge
	crawlerRateLimitDelay       *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerListingsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_listing_pages_total",
				Help: "Listing pages processed, labeled by outcome (extracted, skipped, duplicate).",
			},
			[]string{"outcome"},
		)

		crawlerRecordsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_records_total",
				Help: "Restaurant records appended to the run batch.",
			},
		)

		crawlerDetailFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_detail_fetches_total",
				Help: "Detail page fetches, labeled by outcome (ok, failed).",
			},
			[]string{"outcome"},
		)

		crawlerFetchRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_fetch_retries_total",
				Help: "Retries issued by the fetch client, labeled by site.",
			},
			[]string{"site"},
		)

		crawlerFetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_fetch_duration_seconds",
				Help:    "Wall time of one logical fetch including retries.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"site"},
		)

		crawlerFrontierRemaining = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_frontier_remaining",
				Help: "Listing URLs left in the checkpoint.",
			},
		)

		crawlerRateLimitDelay = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_rate_limit_delay_seconds",
				Help:    "Time spent waiting on the per-host rate limiter.",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
			},
			[]string{"site"},
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
	return promhttp.Handler()
}

// ObserveListing counts one processed listing URL.
func ObserveListing(outcome string) {
	crawlerListingsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRecords adds n records to the batch counter.
func ObserveRecords(n int) {
	if n > 0 {
		crawlerRecordsTotal.Add(float64(n))
	}
}

// ObserveDetail counts one detail page fetch.
func ObserveDetail(outcome string) {
	crawlerDetailFetchesTotal.WithLabelValues(outcome).Inc()
}

// ObserveRetry counts one retry against the URL's host.
func ObserveRetry(rawURL string) {
	crawlerFetchRetriesTotal.WithLabelValues(SanitizeSite(rawURL)).Inc()
}

// ObserveFetch records the duration of one logical fetch.
func ObserveFetch(rawURL string, d time.Duration) {
	crawlerFetchDurationSeconds.WithLabelValues(SanitizeSite(rawURL)).Observe(d.Seconds())
}

// SetFrontierRemaining records the checkpoint length.
func SetFrontierRemaining(n int) {
	crawlerFrontierRemaining.Set(float64(n))
}

// ObserveRateLimitDelay records time spent waiting for a rate limit token.
func ObserveRateLimitDelay(rawURL string, d time.Duration) {
	crawlerRateLimitDelay.WithLabelValues(SanitizeSite(rawURL)).Observe(d.Seconds())
}
