package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Routes holds every handler the kiosk server exposes
type Routes struct {
	Callback   *CallbackHandler
	Results    *ResultsHandler
	Scan       *ScanHandler
	Facilities *FacilityHandler
	Metrics    *MetricsHandler
	Health     *HealthHandler
}

// NewApp creates the fiber app with the standard middleware
func NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "fingerprint-kiosk",
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())

	return app
}

// Register mounts the routes on app. Nil handlers are skipped.
func (r *Routes) Register(app *fiber.App) {
	if r.Health != nil {
		app.Get("/health", r.Health.Health)
	}

	api := app.Group("/api")

	// Backend-facing relay
	if r.Callback != nil {
		api.Post("/process-callback", r.Callback.ProcessCallback)
	}
	if r.Results != nil {
		api.Get("/check-results", r.Results.CheckResults)
	}

	// Kiosk operator flow
	if r.Scan != nil {
		api.Post("/scan", r.Scan.StartScan)
		api.Get("/scan/:session_id", r.Scan.GetScanStatus)
		api.Delete("/scan/:session_id", r.Scan.CancelScan)
	}
	if r.Results != nil && r.Results.Kiosk != nil {
		api.Get("/results", r.Results.GetResults)
		api.Delete("/results", r.Results.EndSession)
		if r.Results.Directory != nil {
			api.Get("/results/:session_id/referrals", r.Results.GetReferrals)
		}
	}

	if r.Facilities != nil {
		api.Get("/facilities", r.Facilities.ListFacilities)
	}
	if r.Metrics != nil {
		api.Get("/metrics", r.Metrics.GetMetrics)
	}
}
