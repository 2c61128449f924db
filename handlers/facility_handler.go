package handlers

import (
	"github.com/fenilmodi00/fingerprint-kiosk/models"
	"github.com/fenilmodi00/fingerprint-kiosk/services"
	"github.com/gofiber/fiber/v2"
)

type FacilityHandler struct {
	Directory *services.FacilityDirectory
}

func NewFacilityHandler(directory *services.FacilityDirectory) *FacilityHandler {
	return &FacilityHandler{Directory: directory}
}

// ListFacilities returns the directory for ?kind=, optionally narrowed by ?city=.
// Without a kind every section is returned.
func (h *FacilityHandler) ListFacilities(c *fiber.Ctx) error {
	city := c.Query("city")
	kinds := []models.FacilityKind{
		models.DiabetesCenter,
		models.DiabetesDoctor,
		models.DiabetesLab,
		models.BloodDonationCenter,
	}

	if kind := c.Query("kind"); kind != "" {
		requested := models.FacilityKind(kind)
		known := false
		for _, k := range kinds {
			if k == requested {
				known = true
				break
			}
		}
		if !known {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid facility kind",
			})
		}
		kinds = []models.FacilityKind{requested}
	}

	sections := make(map[models.FacilityKind][]models.CityFacilities, len(kinds))
	for _, kind := range kinds {
		sections[kind] = h.Directory.List(kind, city)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"cities":  h.Directory.Cities(),
		"data":    sections,
	})
}
