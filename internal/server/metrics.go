// Package server: metrics.go registers the Prometheus metrics owned by the
// HTTP layer. Advisory-pipeline metrics live in the advisor package.
package server

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// labelHandler is the "handler" label used to partition metrics by the
// logical endpoint name rather than the raw URL path.
const labelHandler = "handler"

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, handler, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec

	// uploadBytes records the size of documents attached to questions.
	uploadBytes prometheus.Histogram
}

// newServerMetrics registers all server metrics against reg.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kisan",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kisan",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 90},
		}, []string{"method", labelHandler}),

		uploadBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "kisan",
			Subsystem: "http",
			Name:      "upload_bytes",
			Help:      "Size of documents uploaded with questions.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		}),
	}
}

// observe records one completed request.
func (m *serverMetrics) observe(method, handler string, status int, elapsed time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, handler, strconv.Itoa(status)).Inc()
	m.httpDurationSeconds.WithLabelValues(method, handler).Observe(elapsed.Seconds())
}
