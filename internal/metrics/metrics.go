// Package metrics exposes Prometheus instrumentation for marketplace fetches,
// source outcomes and whole comparisons.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haggle_fetch_requests_total",
			Help: "Total number of marketplace requests executed",
		},
		[]string{"source", "status", "detected"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "haggle_fetch_duration_seconds",
			Help:    "Duration of marketplace requests in seconds, including the pre-request pause",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"source"},
	)

	FetchBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haggle_fetch_bytes_total",
			Help: "Total bytes downloaded from marketplaces",
		},
		[]string{"source"},
	)

	ProxyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haggle_proxy_failures_total",
			Help: "Total number of proxy failures during marketplace requests",
		},
		[]string{"proxy_url"},
	)

	SourceListingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haggle_source_listings_total",
			Help: "Total listings returned by each source before matching",
		},
		[]string{"source"},
	)

	SourceFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haggle_source_failures_total",
			Help: "Total source searches that degraded to no results, by reason",
		},
		[]string{"source", "reason"},
	)

	CompareDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "haggle_compare_duration_seconds",
			Help:    "End-to-end duration of a price comparison",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30},
		},
	)

	MatchedListings = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "haggle_matched_listings",
			Help:    "Number of listings accepted by the matcher per comparison",
			Buckets: []float64{0, 1, 2, 5, 10, 15, 20},
		},
	)
)

// RecordFetch updates the fetch metrics. status 0 means the request failed
// before a response arrived.
func RecordFetch(source string, status int, detected bool, duration time.Duration, bytes int) {
	statusStr := "error"
	if status > 0 {
		statusStr = strconv.Itoa(status)
	}

	FetchRequestsTotal.WithLabelValues(source, statusStr, strconv.FormatBool(detected)).Inc()
	FetchDuration.WithLabelValues(source).Observe(duration.Seconds())
	FetchBytesTotal.WithLabelValues(source).Add(float64(bytes))
}

// RecordSource counts the listings a source produced, and its failure reason
// when it degraded. An empty reason means the search succeeded.
func RecordSource(source string, listings int, reason string) {
	SourceListingsTotal.WithLabelValues(source).Add(float64(listings))
	if reason != "" {
		SourceFailuresTotal.WithLabelValues(source, reason).Inc()
	}
}

// RecordCompare observes one finished comparison.
func RecordCompare(duration time.Duration, matched int) {
	CompareDuration.Observe(duration.Seconds())
	MatchedListings.Observe(float64(matched))
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
