package handlers

import (
	"gamification-engine/models"
	"gamification-engine/services"

	"github.com/gofiber/fiber/v2"
)

// engineError maps engine error kinds to HTTP rejections. Non-engine errors
// surface as 500s.
func engineError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch services.KindOf(err) {
	case services.KindNotFound:
		status = fiber.StatusNotFound
	case services.KindInvalidAmount:
		status = fiber.StatusBadRequest
	case services.KindInvalidState:
		status = fiber.StatusConflict
	case services.KindInsufficientFunds, services.KindIneligible:
		status = fiber.StatusForbidden
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func orgFrom(c *fiber.Ctx) *models.Organisation {
	return c.Locals("organisation").(*models.Organisation)
}
