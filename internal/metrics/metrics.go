// Package metrics exposes Prometheus instrumentation for the region cache and
// slide reads.
//
// Collectors are registered with the default registry at package init, so
// importing the package is enough to make them visible on /metrics.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Region cache metrics, labelled by cache name ("global" or a caller label).
	RegionCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "region_cache_hits_total",
			Help: "Total number of region cache hits",
		},
		[]string{"cache"},
	)

	RegionCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "region_cache_misses_total",
			Help: "Total number of region cache misses",
		},
		[]string{"cache"},
	)

	RegionCacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "region_cache_evictions_total",
			Help: "Total number of entries evicted by capacity pressure",
		},
		[]string{"cache"},
	)

	RegionCacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "region_cache_entries",
			Help: "Current number of cached regions",
		},
		[]string{"cache"},
	)

	// Slide read metrics
	RegionReadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slide_region_read_duration_seconds",
			Help:    "Duration of read_region calls in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"format", "source"}, // source: "cache" or "decoder"
	)

	RegionReadErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slide_region_read_errors_total",
			Help: "Total number of failed read_region calls",
		},
		[]string{"format"},
	)

	SessionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slide_sessions_open",
			Help: "Current number of open slide sessions",
		},
	)
)

// CacheObserver forwards cache events to the region cache collectors under a
// fixed cache label.
type CacheObserver struct {
	name string
}

// NewCacheObserver returns an observer that reports under the given label.
func NewCacheObserver(name string) *CacheObserver {
	return &CacheObserver{name: name}
}

// Hit records a cache hit.
func (o *CacheObserver) Hit() {
	RegionCacheHits.WithLabelValues(o.name).Inc()
}

// Miss records a cache miss.
func (o *CacheObserver) Miss() {
	RegionCacheMisses.WithLabelValues(o.name).Inc()
}

// Evicted records n capacity evictions.
func (o *CacheObserver) Evicted(n int) {
	if n <= 0 {
		return
	}
	RegionCacheEvictions.WithLabelValues(o.name).Add(float64(n))
}

// SizeChanged adjusts the resident entry gauge. Caches sharing a label add
// up, so the gauge reports their total.
func (o *CacheObserver) SizeChanged(delta int) {
	RegionCacheEntries.WithLabelValues(o.name).Add(float64(delta))
}

// RecordRegionRead records a read_region call. source is "cache" when the
// region came from an attached cache and "decoder" otherwise.
func RecordRegionRead(format, source string, duration time.Duration, err error) {
	if err != nil {
		RegionReadErrors.WithLabelValues(format).Inc()
		return
	}
	RegionReadDuration.WithLabelValues(format, source).Observe(duration.Seconds())
}

// TrackSession adjusts the open session gauge.
func TrackSession(open bool) {
	if open {
		SessionsOpen.Inc()
	} else {
		SessionsOpen.Dec()
	}
}

// Serve starts a blocking HTTP listener exposing /metrics on addr.
func Serve(addr string) error {
	if addr == "" {
		return errors.New("metrics listen address is empty")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}
