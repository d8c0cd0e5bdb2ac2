package handler

import (
	"database/sql"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"blobvault/internal/http/middleware"
	"blobvault/internal/service"
)

// RouterDeps carries everything RegisterRoutes wires together.
type RouterDeps struct {
	DB       *sql.DB
	Blobs    service.BlobService
	Keys     service.APIKeyService
	Auth     fiber.Handler
	Metrics  *middleware.PrometheusMiddleware
	Gatherer prometheus.Gatherer
	Compress bool
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app. Probes,
// metrics, docs and key administration are public; every blob route sits
// behind API key auth.
func RegisterRoutes(app *fiber.App, deps RouterDeps) {
	// Serve OpenAPI spec and Swagger UI
	app.Get("/openapi.yaml", func(c *fiber.Ctx) error {
		c.Type("yaml")
		return c.SendFile("openapi.yaml")
	})
	app.Get("/docs", func(c *fiber.Ctx) error {
		html := `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: '/openapi.yaml',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: 'BaseLayout'
    });
  </script>
</body>
</html>`
		return c.Type("html").SendString(html)
	})

	// Readiness (checks DB connectivity) and liveness probes
	app.Get("/health", HealthCheck(deps.DB))
	app.Get("/healthz", LivenessProbe())

	if deps.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(
			promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	var m IngestMetrics
	if deps.Metrics != nil {
		m = deps.Metrics
	}

	app.Post("/upload", deps.Auth, Upload(deps.Blobs, deps.Compress, m))
	app.Get("/download/:id", deps.Auth, Download(deps.Blobs))
	app.Get("/json/:id", deps.Auth, GetJSON(deps.Blobs))
	app.Get("/list", deps.Auth, ListBlobs(deps.Blobs))
	app.Delete("/delete/:id", deps.Auth, DeleteBlob(deps.Blobs))

	// Key administration is a separate operational surface: it is how the
	// first key comes into existence, so it cannot sit behind the key check.
	app.Post("/admin/keys", CreateKey(deps.Keys))
	app.Get("/admin/keys", ListKeys(deps.Keys))
	app.Delete("/admin/keys/:id", RevokeKey(deps.Keys))
}
