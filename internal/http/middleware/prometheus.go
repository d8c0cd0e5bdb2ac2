package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMiddleware holds the HTTP and ingestion metrics.
type PrometheusMiddleware struct {
	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	ingestBytes     prometheus.Counter
	duplicateHits   prometheus.Counter
}

// NewPrometheusMiddleware creates a new PrometheusMiddleware registered on reg.
func NewPrometheusMiddleware(reg prometheus.Registerer) (*PrometheusMiddleware, error) {
	m := &PrometheusMiddleware{
		requestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests processed.",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		ingestBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blob_ingest_bytes_total",
			Help: "Total uncompressed bytes accepted by the upload pipeline.",
		}),
		duplicateHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blob_duplicate_hits_total",
			Help: "Total uploads deduplicated against an existing digest.",
		}),
	}

	for _, col := range []prometheus.Collector{
		m.requestCount, m.requestDuration, m.ingestBytes, m.duplicateHits,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// AddIngestBytes records the uncompressed size of an accepted upload.
func (m *PrometheusMiddleware) AddIngestBytes(n int64) {
	if n > 0 {
		m.ingestBytes.Add(float64(n))
	}
}

// IncDuplicateHit records an upload that resolved to an existing blob.
func (m *PrometheusMiddleware) IncDuplicateHit() {
	m.duplicateHits.Inc()
}

// Handler returns the fiber middleware handler.
func (m *PrometheusMiddleware) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Exclude /metrics from being counted
		if c.Path() == "/metrics" {
			return c.Next()
		}

		start := time.Now()

		// Process the request
		err := c.Next()

		// Get path pattern (e.g., /json/:id instead of /json/123)
		path := c.Route().Path
		if path == "" {
			path = c.Path() // Fallback to raw path if route not found (e.g. 404)
		}

		status := c.Response().StatusCode()
		if err != nil {
			if fiberErr, ok := err.(*fiber.Error); ok {
				status = fiberErr.Code
			} else {
				// Default to 500 if error is not a fiber.Error; the global
				// ErrorHandler will render it as such.
				status = fiber.StatusInternalServerError
			}
		}

		m.requestCount.WithLabelValues(
			c.Method(),
			path,
			strconv.Itoa(status),
		).Inc()
		m.requestDuration.WithLabelValues(c.Method(), path).
			Observe(time.Since(start).Seconds())

		return err
	}
}
