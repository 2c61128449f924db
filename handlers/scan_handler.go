package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"

	"github.com/fenilmodi00/fingerprint-kiosk/models"
	"github.com/fenilmodi00/fingerprint-kiosk/services"
	"github.com/fenilmodi00/fingerprint-kiosk/shared"
	"github.com/gofiber/fiber/v2"
)

type ScanHandler struct {
	Kiosk *services.KioskService
}

func NewScanHandler(kiosk *services.KioskService) *ScanHandler {
	return &ScanHandler{Kiosk: kiosk}
}

// StartScan captures one finger and, with participant data, starts waiting
// for the ML results
func (h *ScanHandler) StartScan(c *fiber.Ctx) error {
	type Request struct {
		FingerName      string          `json:"finger_name"`
		ParticipantData json.RawMessage `json:"participant_data"`
	}
	var req Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	finger, err := models.ParseFingerName(req.FingerName)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid finger name",
		})
	}

	result, err := h.Kiosk.StartScan(c.Context(), finger, req.ParticipantData)
	if err != nil {
		if serviceErr, ok := shared.AsServiceError(err); ok {
			serviceErr.LogError()
			if serviceErr.Category == shared.ErrorCategoryUpstreamDevice || serviceErr.Category == shared.ErrorCategoryTimeout {
				return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
					"success":   false,
					"error":     "Failed to scan fingerprint",
					"retryable": true,
				})
			}
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to scan fingerprint",
		})
	}

	data := fiber.Map{
		"finger_name":  result.File.FingerName,
		"file_name":    result.File.FileName,
		"content_type": result.File.ContentType,
		"image_data":   base64.StdEncoding.EncodeToString(result.File.Content),
		"waiting":      result.Waiting,
	}
	if result.SessionID != "" {
		data["session_id"] = result.SessionID
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

// GetScanStatus reports whether results for a scan have arrived
func (h *ScanHandler) GetScanStatus(c *fiber.Ctx) error {
	status, err := h.Kiosk.ScanStatus(c.Params("session_id"))
	if err != nil {
		return scanNotFound(c, err)
	}

	response := fiber.Map{
		"success":   true,
		"sessionId": status.SessionID,
		"state":     status.State,
		"attempts":  status.Attempts,
	}
	if status.NavigateTo != "" {
		response["navigateTo"] = status.NavigateTo
	}
	return c.JSON(response)
}

// CancelScan stops waiting for a scan's results, e.g. when the view closes
func (h *ScanHandler) CancelScan(c *fiber.Ctx) error {
	sessionID := c.Params("session_id")
	if err := h.Kiosk.CancelScan(sessionID); err != nil {
		return scanNotFound(c, err)
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"sessionId": sessionID,
		"state":     models.PollCancelled,
	})
}

func scanNotFound(c *fiber.Ctx, err error) error {
	if errors.Is(err, services.ErrScanSessionNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "Scan session not found",
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"error":   "Failed to read scan session",
	})
}
