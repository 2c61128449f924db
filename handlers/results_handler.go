package handlers

import (
	"errors"

	"github.com/fenilmodi00/fingerprint-kiosk/models"
	"github.com/fenilmodi00/fingerprint-kiosk/services"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type ResultsHandler struct {
	Lookup    services.ResultLookup
	Kiosk     *services.KioskService
	Directory *services.FacilityDirectory
}

func NewResultsHandler(lookup services.ResultLookup, kiosk *services.KioskService, directory *services.FacilityDirectory) *ResultsHandler {
	return &ResultsHandler{
		Lookup:    lookup,
		Kiosk:     kiosk,
		Directory: directory,
	}
}

// CheckResults is the lookup endpoint the poller asks until results arrive
func (h *ResultsHandler) CheckResults(c *fiber.Ctx) error {
	sessionID := c.Query("sessionId")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Session ID required",
		})
	}

	envelope, found, err := h.Lookup.Lookup(c.Context(), sessionID)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"component":  "ResultsHandler",
			"session_id": sessionID,
		}).WithError(err).Error("Failed to check results")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to check results",
		})
	}

	if !found {
		return c.JSON(models.LookupResponse{
			Success:    true,
			HasResults: false,
			Message:    "Results not yet available",
		})
	}

	return c.JSON(models.LookupResponse{
		Success:             true,
		HasResults:          true,
		Results:             envelope,
		ShouldStoreInClient: true,
	})
}

// GetResults returns the results kept on the kiosk for ?sid= (or ?s=), or the
// current results when neither is given
func (h *ResultsHandler) GetResults(c *fiber.Ctx) error {
	sid := c.Query("sid", c.Query("s"))

	envelope, err := h.Kiosk.LoadResults(c.Context(), sid)
	if err != nil {
		if errors.Is(err, services.ErrResultNotFound) {
			return c.JSON(fiber.Map{
				"success":    true,
				"hasResults": false,
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to load results",
		})
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"hasResults": true,
		"results":    envelope,
	})
}

// EndSession forgets everything the kiosk holds for the current participant
func (h *ResultsHandler) EndSession(c *fiber.Ctx) error {
	h.Kiosk.EndSession(c.Context())
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Session ended",
	})
}

// GetReferrals lists the facilities recommended for a session's results
func (h *ResultsHandler) GetReferrals(c *fiber.Ctx) error {
	sessionID := c.Params("session_id")

	envelope, err := h.Kiosk.LoadResults(c.Context(), sessionID)
	if err != nil {
		if errors.Is(err, services.ErrResultNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"error":   "No results found for session",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to load results",
		})
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"sessionId": envelope.SessionID,
		"pending":   envelope.Pending,
		"referrals": h.Directory.Referrals(envelope, c.Query("city")),
	})
}
