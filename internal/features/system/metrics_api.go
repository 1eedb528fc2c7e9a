package system

import (
	"go-workflow/internal/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

type MetricsApi struct {
	recorder *metrics.Recorder
}

func NewMetricsApi(recorder *metrics.Recorder) *MetricsApi {
	return &MetricsApi{recorder: recorder}
}

// Setup exposes the Prometheus registry. It is left unauthenticated for
// the scraper.
func (h *MetricsApi) Setup(app *fiber.App) {
	app.Get("/metrics", adaptor.HTTPHandler(h.recorder.Handler()))
}
