package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instrumentation for the signing service.
// Each Metrics instance carries its own registry so that multiple instances
// can coexist (for example in tests).
type Metrics struct {
	registry *prometheus.Registry

	DocumentsSignedTotal  prometheus.Counter
	SignaturesFilledTotal prometheus.Counter
	SignFailuresTotal     *prometheus.CounterVec
	SignDuration          prometheus.Histogram

	APIRequestsTotal    *prometheus.CounterVec
	APIRequestDuration  *prometheus.HistogramVec
	APIRequestsInFlight prometheus.Gauge
}

// NewMetrics creates and registers the signing service metrics.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.DocumentsSignedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "xmlsign_documents_signed_total",
		Help: "Total number of documents signed successfully",
	})
	m.SignaturesFilledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "xmlsign_signatures_filled_total",
		Help: "Total number of signature templates filled",
	})
	m.SignFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "xmlsign_sign_failures_total",
		Help: "Total number of failed signing runs by failure class",
	}, []string{"reason"})
	m.SignDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "xmlsign_sign_duration_seconds",
		Help:    "Duration of document signing runs",
		Buckets: prometheus.DefBuckets,
	})

	m.APIRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "xmlsign_api_requests_total",
		Help: "Total number of API requests by method, path and status",
	}, []string{"method", "path", "status"})
	m.APIRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "xmlsign_api_request_duration_seconds",
		Help:    "Duration of API requests by method and path",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
	m.APIRequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "xmlsign_api_requests_in_flight",
		Help: "Number of API requests currently being served",
	})

	m.registry.MustRegister(
		m.DocumentsSignedTotal,
		m.SignaturesFilledTotal,
		m.SignFailuresTotal,
		m.SignDuration,
		m.APIRequestsTotal,
		m.APIRequestDuration,
		m.APIRequestsInFlight,
	)
	return m
}

// Handler returns the HTTP handler serving the metrics registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// MetricsMiddleware instruments API requests. The metrics endpoint itself is
// not instrumented.
func (m *Metrics) MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		m.APIRequestsInFlight.Inc()
		c.Next()
		m.APIRequestsInFlight.Dec()

		elapsed := time.Since(start).Seconds()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		m.APIRequestDuration.WithLabelValues(c.Request.Method, path).Observe(elapsed)
		m.APIRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// RecordRun records the outcome of one signing run.
func (m *Metrics) RecordRun(signatures int, elapsed time.Duration, err error) {
	if err != nil {
		m.SignFailuresTotal.WithLabelValues(failureReason(err)).Inc()
		return
	}
	m.DocumentsSignedTotal.Inc()
	m.SignaturesFilledTotal.Add(float64(signatures))
	m.SignDuration.Observe(elapsed.Seconds())
}
