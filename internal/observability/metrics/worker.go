package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CacheJanitorMetrics instruments the semantic cache's periodic expired-entry
// sweep (spec section 4.4's TTL eviction), repurposed from the teacher's
// document-processing worker metrics onto the retrieval core's only
// background task.
type CacheJanitorMetrics struct {
	registry *prometheus.Registry

	sweepTotal     *prometheus.CounterVec
	sweepDuration  *prometheus.HistogramVec
	sweepRemoved   *prometheus.HistogramVec
	cacheSizeAfter prometheus.Gauge
}

func NewCacheJanitorMetrics(service string) *CacheJanitorMetrics {
	registry := prometheus.NewRegistry()

	sweepTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "retrieval",
			Subsystem: "cache_janitor",
			Name:      "sweep_total",
			Help:      "Total expired-entry sweeps run against the semantic cache.",
		},
		[]string{"service"},
	)
	sweepDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "retrieval",
			Subsystem: "cache_janitor",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of each expired-entry sweep.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	sweepRemoved := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "retrieval",
			Subsystem: "cache_janitor",
			Name:      "sweep_removed_entries",
			Help:      "Distribution of entries removed per sweep.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
		[]string{"service"},
	)
	cacheSizeAfter := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "retrieval",
			Subsystem: "cache_janitor",
			Name:      "cache_size_after_sweep",
			Help:      "Semantic cache size immediately after the last sweep.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(sweepTotal, sweepDuration, sweepRemoved, cacheSizeAfter)

	return &CacheJanitorMetrics{
		registry:       registry,
		sweepTotal:     sweepTotal,
		sweepDuration:  sweepDuration,
		sweepRemoved:   sweepRemoved,
		cacheSizeAfter: cacheSizeAfter,
	}
}

func (m *CacheJanitorMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *CacheJanitorMetrics) ObserveSweep(service string, duration time.Duration, removed, sizeAfter int) {
	m.sweepTotal.WithLabelValues(service).Inc()
	m.sweepDuration.WithLabelValues(service).Observe(duration.Seconds())
	m.sweepRemoved.WithLabelValues(service).Observe(float64(removed))
	m.cacheSizeAfter.Set(float64(sizeAfter))
}

// RunJanitor periodically sweeps expired cache entries until ctx is
// cancelled. sweep removes expired entries and returns how many were
// removed; sizeAfter reports the cache size once the sweep completes. It is
// started as a background goroutine from cmd/api/main.go alongside the HTTP
// server.
func RunJanitor(ctx context.Context, service string, interval time.Duration, sweep func() int, sizeAfter func() int, m *CacheJanitorMetrics) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			removed := sweep()
			m.ObserveSweep(service, time.Since(start), removed, sizeAfter())
		}
	}
}
