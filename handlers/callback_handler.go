package handlers

import (
	"github.com/fenilmodi00/fingerprint-kiosk/services"
	"github.com/fenilmodi00/fingerprint-kiosk/shared"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

// SessionIDHeader lets a backend pass the dispatch token outside the body
const SessionIDHeader = "X-Session-ID"

type CallbackHandler struct {
	Service *services.CallbackService
}

func NewCallbackHandler(service *services.CallbackService) *CallbackHandler {
	return &CallbackHandler{Service: service}
}

// ProcessCallback receives the ML backend's results for one analysis
func (h *CallbackHandler) ProcessCallback(c *fiber.Ctx) error {
	// Query and header values alias the request buffer; the token outlives it
	// as the relay key.
	queryToken := utils.CopyString(c.Query("sessionId"))
	headerToken := utils.CopyString(c.Get(SessionIDHeader))

	receipt, err := h.Service.Receive(c.Context(), c.Body(), queryToken, headerToken)
	if err != nil {
		serviceErr, ok := shared.AsServiceError(err)
		if ok {
			serviceErr.LogError()
		}
		if ok && serviceErr.Category == shared.ErrorCategoryValidation {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid callback payload",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to process callback",
		})
	}

	return c.JSON(fiber.Map{
		"success":           true,
		"message":           "Processing results received and stored successfully",
		"sessionId":         receipt.Token,
		"data":              receipt.Envelope,
		"shouldStore":       true,
		"navigateToResults": true,
	})
}
