package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"

	"blobvault/internal/ratelimit"
)

// uploadPath is the one route whose request bodies count against the
// per-client volume window.
const uploadPath = "/upload"

// limitedPrefixes are the route prefixes the request window covers. Probes,
// metrics, docs and key administration stay outside the window.
var limitedPrefixes = []string{"/upload", "/download/", "/json/", "/list", "/delete/"}

// RateLimitMiddleware applies the per-client request and upload-volume
// windows before any handler runs.
type RateLimitMiddleware struct {
	limiter    *ratelimit.Limiter
	rejections *prometheus.CounterVec
}

// NewRateLimitMiddleware creates a RateLimitMiddleware with its rejection
// counter registered on reg.
func NewRateLimitMiddleware(l *ratelimit.Limiter, reg prometheus.Registerer) (*RateLimitMiddleware, error) {
	m := &RateLimitMiddleware{
		limiter: l,
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratelimit_rejections_total",
				Help: "Requests rejected by a sliding rate-limit window.",
			},
			[]string{"kind"},
		),
	}

	if err := reg.Register(m.rejections); err != nil {
		return nil, err
	}

	return m, nil
}

// Handler returns the fiber middleware handler. The request window covers
// the blob routes; the volume window only charges the upload route, using
// the declared Content-Length so an over-budget body is refused before it is
// read.
func (m *RateLimitMiddleware) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !limited(c.Path()) {
			return c.Next()
		}

		client := c.IP()

		if rej := m.limiter.AllowRequest(client); rej != nil {
			m.rejections.WithLabelValues("requests").Inc()
			return m.reject(c, rej)
		}

		if c.Method() == fiber.MethodPost && c.Path() == uploadPath {
			size := int64(c.Request().Header.ContentLength())
			if size < 0 {
				size = 0
			}
			if rej := m.limiter.AllowUpload(client, size); rej != nil {
				m.rejections.WithLabelValues("upload_volume").Inc()
				return m.reject(c, rej)
			}
		}

		return c.Next()
	}
}

func limited(path string) bool {
	for _, p := range limitedPrefixes {
		if path == p || (strings.HasSuffix(p, "/") && strings.HasPrefix(path, p)) {
			return true
		}
	}
	return false
}

func (m *RateLimitMiddleware) reject(c *fiber.Ctx, rej *ratelimit.Rejection) error {
	c.Set(fiber.HeaderRetryAfter, strconv.Itoa(rej.WindowSec))
	return c.Status(fiber.StatusTooManyRequests).JSON(rej)
}
