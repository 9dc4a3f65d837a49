// Package metrics provides Prometheus instrumentation for TokenSentinel.
package metrics

import (
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tokensentinel",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tokensentinel",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// ProviderRequestsTotal counts outbound signal-provider calls by
	// provider name and outcome (ok, unavailable, error).
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tokensentinel",
			Name:      "provider_requests_total",
			Help:      "Outbound provider requests by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	// ProviderRequestDuration observes outbound call latency per provider.
	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tokensentinel",
			Name:      "provider_request_duration_seconds",
			Help:      "Outbound provider request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider"},
	)

	// CacheHits counts cache hits by operation kind.
	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tokensentinel",
			Name:      "cache_hits_total",
			Help:      "Cache hits by operation kind.",
		},
		[]string{"kind"},
	)

	// CacheMisses counts cache misses (including store errors) by kind.
	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tokensentinel",
			Name:      "cache_misses_total",
			Help:      "Cache misses by operation kind.",
		},
		[]string{"kind"},
	)

	// AnalysesTotal counts contract analyses by resulting risk level.
	AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tokensentinel",
			Name:      "analyses_total",
			Help:      "Completed contract analyses by risk level.",
		},
		[]string{"level"},
	)

	// QuickChecksTotal counts quick checks by resulting risk level.
	QuickChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tokensentinel",
			Name:      "quick_checks_total",
			Help:      "Completed quick checks by risk level.",
		},
		[]string{"level"},
	)

	// WalletScansTotal counts wallet approval scans by grade.
	WalletScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tokensentinel",
			Name:      "wallet_scans_total",
			Help:      "Completed wallet scans by security grade.",
		},
		[]string{"grade"},
	)

	// ExplanationFallbacksTotal counts how often the deterministic
	// explanation fallback replaced generated text.
	ExplanationFallbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tokensentinel",
		Name:      "explanation_fallbacks_total",
		Help:      "Explanations served from the deterministic fallback.",
	})

	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tokensentinel", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ProviderRequestsTotal,
		ProviderRequestDuration,
		CacheHits,
		CacheMisses,
		AnalysesTotal,
		QuickChecksTotal,
		WalletScansTotal,
		ExplanationFallbacksTotal,
		GoroutineCount,
	)
}

// StartRuntimeCollector periodically samples the goroutine count.
// Call in a goroutine; exits when stop is closed.
func StartRuntimeCollector(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
