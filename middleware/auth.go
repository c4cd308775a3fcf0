// middleware/auth.go
package middleware

import (
	"errors"
	"log"

	"gamification-engine/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// APIKeyMiddleware resolves the caller's organisation from the X-API-Key
// header and attaches it to the request context. Every entity lookup behind
// it is scoped to that organisation.
func APIKeyMiddleware(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := c.Get("X-API-Key")
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-API-Key header",
			})
		}

		var org models.Organisation
		if err := db.Where("api_key = ?", apiKey).First(&org).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("❌ [API_KEY] unknown key on %s", c.Path())
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "invalid API key",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "DB error resolving organisation",
			})
		}

		c.Locals("organisation", &org)
		return c.Next()
	}
}
