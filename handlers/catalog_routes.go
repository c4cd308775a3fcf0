// handlers/catalog_routes.go
package handlers

import (
	"gamification-engine/middleware"
	"gamification-engine/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupCatalogRoutes(app *fiber.App, catalog *services.CatalogService, db *gorm.DB) {
	// 🔓 Bootstrap — the only route without an API key
	app.Post("/organisations", catalog.CreateOrganisation)

	// 🔐 Everything else is scoped to the organisation behind X-API-Key
	secured := app.Group("/", middleware.APIKeyMiddleware(db))

	secured.Post("/roles", catalog.CreateRole)
	secured.Get("/roles", catalog.GetRoles)

	secured.Post("/tasks", catalog.CreateTask)
	secured.Get("/tasks", catalog.GetTasks)

	secured.Post("/rules", catalog.CreateRule)
	secured.Get("/rules", catalog.GetRules)

	secured.Post("/goals", catalog.CreateGoal)
	secured.Get("/goals", catalog.GetGoals)

	secured.Post("/rewards", catalog.CreateReward)
	secured.Get("/rewards", catalog.GetRewards)
}
