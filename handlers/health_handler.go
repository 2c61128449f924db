package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

type HealthHandler struct {
	Backend string
	// DBCheck pings the relay database; nil for the memory backend
	DBCheck func(ctx context.Context) error
}

func NewHealthHandler(backend string, dbCheck func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{Backend: backend, DBCheck: dbCheck}
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	response := fiber.Map{
		"status":        "ok",
		"timestamp":     time.Now().Unix(),
		"store_backend": h.Backend,
	}

	if h.DBCheck != nil {
		if err := h.DBCheck(c.Context()); err != nil {
			response["status"] = "degraded"
			response["database"] = "unreachable"
			return c.Status(fiber.StatusServiceUnavailable).JSON(response)
		}
		response["database"] = "ok"
	}

	return c.JSON(response)
}
