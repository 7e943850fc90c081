// Package metrics provides Prometheus instrumentation for the service.
package metrics

import (
	"context"
	"database/sql"
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
			Namespace: "trapdetect",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trapdetect",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// AnalyzeRequestsTotal counts analyze calls by mode and locale.
	AnalyzeRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trapdetect",
			Name:      "analyze_requests_total",
			Help:      "Total analyze requests by mode and language.",
		},
		[]string{"mode", "lang"},
	)

	// RiskSignalsTotal counts emitted risk signals by identifier.
	RiskSignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trapdetect",
			Name:      "risk_signals_total",
			Help:      "Total risk signals emitted by signal ID.",
		},
		[]string{"id"},
	)

	// ClassifierLookupsTotal counts on-chain contract classifications by result.
	ClassifierLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trapdetect",
			Name:      "classifier_lookups_total",
			Help:      "Total contract-code lookups by result (contract, eoa, error).",
		},
		[]string{"result"},
	)

	// PaymentsVerifiedTotal counts paywall verifications by outcome.
	PaymentsVerifiedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trapdetect",
			Name:      "payments_verified_total",
			Help:      "Total payment proof verifications by outcome.",
		},
		[]string{"outcome"},
	)

	// DBOpenConnections tracks open DB connections.
	DBOpenConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "trapdetect",
			Name:      "db_open_connections",
			Help:      "Number of open database connections.",
		},
	)

	// DBIdleConnections tracks idle DB connections.
	DBIdleConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "trapdetect",
			Name:      "db_idle_connections",
			Help:      "Number of idle database connections.",
		},
	)

	// DBInUseConnections tracks in-use DB connections.
	DBInUseConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "trapdetect",
			Name:      "db_in_use_connections",
			Help:      "Number of in-use database connections.",
		},
	)

	// DBWaitCount tracks total connection waits.
	DBWaitCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "trapdetect",
			Name:      "db_wait_count",
			Help:      "Cumulative number of connections waited for.",
		},
	)

	// DBWaitDuration tracks total time blocked waiting for connections.
	DBWaitDuration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "trapdetect",
			Name:      "db_wait_duration_seconds",
			Help:      "Cumulative time blocked waiting for a connection, in seconds.",
		},
	)

	// GoroutineCount tracks current goroutine count.
	GoroutineCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "trapdetect",
			Name:      "goroutines",
			Help:      "Current number of goroutines.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		AnalyzeRequestsTotal,
		RiskSignalsTotal,
		ClassifierLookupsTotal,
		PaymentsVerifiedTotal,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		DBWaitCount,
		DBWaitDuration,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime goroutine
// count into Prometheus gauges. Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			DBWaitCount.Set(float64(stats.WaitCount))
			DBWaitDuration.Set(stats.WaitDuration.Seconds())
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
