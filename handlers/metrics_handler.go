package handlers

import (
	"database/sql"

	"github.com/fenilmodi00/fingerprint-kiosk/shared"
	"github.com/gofiber/fiber/v2"
)

type MetricsHandler struct {
	DB      *sql.DB
	Metrics []*shared.ServiceMetrics
}

func NewMetricsHandler(db *sql.DB, metrics ...*shared.ServiceMetrics) *MetricsHandler {
	return &MetricsHandler{
		DB:      db,
		Metrics: metrics,
	}
}

// GetMetrics returns per-service counters and, with the postgres backend, pool stats
func (h *MetricsHandler) GetMetrics(c *fiber.Ctx) error {
	services := make(map[string]shared.MetricsSnapshot, len(h.Metrics))
	for _, m := range h.Metrics {
		snapshot := m.GetSnapshot()
		services[snapshot.ServiceName] = snapshot
	}

	response := fiber.Map{
		"success":  true,
		"services": services,
	}

	if h.DB != nil {
		dbStats := h.DB.Stats()
		response["database_stats"] = fiber.Map{
			"open_connections": dbStats.OpenConnections,
			"in_use":           dbStats.InUse,
			"idle":             dbStats.Idle,
			"wait_count":       dbStats.WaitCount,
			"wait_duration_ms": dbStats.WaitDuration.Milliseconds(),
		}
	}

	return c.JSON(response)
}
