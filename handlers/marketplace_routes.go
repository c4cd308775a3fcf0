// handlers/marketplace_routes.go
package handlers

import (
	"strconv"
	"time"

	"gamification-engine/middleware"
	"gamification-engine/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const defaultOfferCount = 10

func SetupMarketplaceRoutes(app *fiber.App, market *services.MarketService, players *services.PlayerService, db *gorm.DB) {
	secured := app.Group("/", middleware.APIKeyMiddleware(db))

	secured.Post("/marketplace", func(c *fiber.Ctx) error {
		mp, err := market.EnsureMarketPlace(orgFrom(c))
		if err != nil {
			return engineError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(mp)
	})

	secured.Post("/marketplace/offers", func(c *fiber.Ctx) error {
		var req struct {
			TaskID    string     `json:"task_id" validate:"required"`
			CreatorID string     `json:"creator_id" validate:"required"`
			Name      string     `json:"name" validate:"required"`
			Prize     int64      `json:"prize" validate:"required,min=1"`
			EndDate   *time.Time `json:"end_date"`
			Deadline  *time.Time `json:"deadline"`
		}
		if err := c.BodyParser(&req); err != nil || req.TaskID == "" || req.CreatorID == "" || req.Name == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		offer, err := market.CreateOffer(orgFrom(c), services.CreateOfferInput{
			TaskID:    req.TaskID,
			CreatorID: req.CreatorID,
			Name:      req.Name,
			Prize:     req.Prize,
			EndDate:   req.EndDate,
			Deadline:  req.Deadline,
		})
		if err != nil {
			return engineError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(offer)
	})

	secured.Post("/offers/:id/bids", func(c *fiber.Ctx) error {
		var req struct {
			PlayerID string `json:"player_id" validate:"required"`
			Amount   int64  `json:"amount" validate:"required,min=1"`
		}
		if err := c.BodyParser(&req); err != nil || req.PlayerID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		bid, err := market.PlaceBid(orgFrom(c), c.Params("id"), req.PlayerID, req.Amount)
		if err != nil {
			return engineError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(bid)
	})

	secured.Post("/offers/:id/complete", func(c *fiber.Ctx) error {
		var req struct {
			PlayerID string `json:"player_id" validate:"required"`
		}
		if err := c.BodyParser(&req); err != nil || req.PlayerID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		offer, err := market.CompleteOffer(orgFrom(c), c.Params("id"), req.PlayerID, time.Now())
		if err != nil {
			return engineError(c, err)
		}
		return c.JSON(offer)
	})

	secured.Delete("/offers/:id", func(c *fiber.Ctx) error {
		offer, err := market.CancelOffer(orgFrom(c), c.Params("id"))
		if err != nil {
			return engineError(c, err)
		}
		return c.JSON(offer)
	})

	secured.Put("/offers/:id", func(c *fiber.Ctx) error {
		var req struct {
			Name     *string    `json:"name"`
			EndDate  *time.Time `json:"end_date"`
			Deadline *time.Time `json:"deadline"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		offer, err := market.UpdateOffer(orgFrom(c), c.Params("id"), services.UpdateOfferInput{
			Name:     req.Name,
			EndDate:  req.EndDate,
			Deadline: req.Deadline,
		})
		if err != nil {
			return engineError(c, err)
		}
		return c.JSON(offer)
	})

	secured.Get("/offers/:id/bids", func(c *fiber.Ctx) error {
		bids, err := market.ListBids(orgFrom(c), c.Params("id"))
		if err != nil {
			return engineError(c, err)
		}
		return c.JSON(bids)
	})

	secured.Get("/players/:id/offers", func(c *fiber.Ctx) error {
		org := orgFrom(c)
		player, err := players.FindPlayer(org, c.Params("id"))
		if err != nil {
			return engineError(c, err)
		}
		offers, err := market.OffersByPlayer(org, player.ID)
		if err != nil {
			return engineError(c, err)
		}
		return c.JSON(offers)
	})

	secured.Get("/players/:id/offers/visible", func(c *fiber.Ctx) error {
		org := orgFrom(c)
		player, err := players.FindPlayer(org, c.Params("id"))
		if err != nil {
			return engineError(c, err)
		}
		offers, err := market.VisibleOffers(org, player)
		if err != nil {
			return engineError(c, err)
		}
		return c.JSON(offers)
	})

	secured.Get("/players/:id/offers/recent", func(c *fiber.Ctx) error {
		org := orgFrom(c)
		player, err := players.FindPlayer(org, c.Params("id"))
		if err != nil {
			return engineError(c, err)
		}
		offers, err := market.RecentOffers(org, player, countQuery(c))
		if err != nil {
			return engineError(c, err)
		}
		return c.JSON(offers)
	})

	secured.Get("/players/:id/offers/highest", func(c *fiber.Ctx) error {
		org := orgFrom(c)
		player, err := players.FindPlayer(org, c.Params("id"))
		if err != nil {
			return engineError(c, err)
		}
		offers, err := market.HighestOffers(org, player, countQuery(c))
		if err != nil {
			return engineError(c, err)
		}
		return c.JSON(offers)
	})
}

func countQuery(c *fiber.Ctx) int {
	count, err := strconv.Atoi(c.Query("count"))
	if err != nil || count <= 0 {
		return defaultOfferCount
	}
	return count
}
