// Package metrics exposes Prometheus collectors for the crawl pipeline.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlDaysTotal        *prometheus.CounterVec
	crawlDayDuration      *prometheus.HistogramVec
	crawlRetriesTotal     prometheus.Counter
	crawlActiveWorkers    prometheus.Gauge
	crawlCheckpointOffset prometheus.Gauge

	once sync.Once
)

// Init registers the collectors on the default registry. It is safe to call
// multiple times; the Observe helpers call it lazily.
func Init() {
	once.Do(func() {
		crawlDaysTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fonapi_crawl_days_total",
				Help: "Total number of days reaching a terminal outcome, labeled by status.",
			},
			[]string{"status"},
		)

		crawlDayDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fonapi_crawl_day_duration_seconds",
				Help:    "Histogram of per-day crawl durations, labeled by status.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"status"},
		)

		crawlRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "fonapi_crawl_retries_total",
				Help: "Total number of retried fetch attempts.",
			},
		)

		crawlActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "fonapi_crawl_active_workers",
				Help: "Number of workers currently processing a day.",
			},
		)

		crawlCheckpointOffset = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "fonapi_crawl_checkpoint_unix_seconds",
				Help: "The last fully completed day as a unix timestamp.",
			},
		)
	})
}

// Handler returns an http.Handler exposing the Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveDay records a terminal day outcome and its duration.
func ObserveDay(status string, duration time.Duration) {
	Init()
	crawlDaysTotal.WithLabelValues(status).Inc()
	crawlDayDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// ObserveRetry increments the retry counter.
func ObserveRetry() {
	Init()
	crawlRetriesTotal.Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	crawlActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	crawlActiveWorkers.Dec()
}

// SetCheckpoint publishes the checkpoint position.
func SetCheckpoint(day time.Time) {
	Init()
	crawlCheckpointOffset.Set(float64(day.Unix()))
}
