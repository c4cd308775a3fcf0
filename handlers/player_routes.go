// handlers/player_routes.go
package handlers

import (
	"time"

	"gamification-engine/middleware"
	"gamification-engine/models"
	"gamification-engine/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupPlayerRoutes(app *fiber.App, players *services.PlayerService, goals *services.GoalService,
	rewards *services.RewardService, catalog *services.CatalogService, db *gorm.DB) {

	secured := app.Group("/", middleware.APIKeyMiddleware(db))

	secured.Post("/players", players.CreatePlayer)
	secured.Get("/players", players.GetPlayers)
	secured.Get("/players/:id", players.GetPlayer)

	secured.Post("/groups", players.CreateGroup)
	secured.Get("/groups", players.GetGroups)
	secured.Get("/groups/:id", players.GetGroup)
	secured.Patch("/groups/:id/members", players.UpdateGroupMembers)

	// Task completion — the entry point of the goal-completion path. A player
	// completing a task never advances its groups; groups complete via the
	// group route with the group as the subject.
	secured.Post("/players/:id/complete-task/:taskId", func(c *fiber.Ctx) error {
		org := orgFrom(c)
		player, err := players.FindPlayer(org, c.Params("id"))
		if err != nil {
			return engineError(c, err)
		}
		return completeTask(c, goals, catalog, player)
	})

	secured.Post("/groups/:id/complete-task/:taskId", func(c *fiber.Ctx) error {
		org := orgFrom(c)
		group, err := players.FindGroup(org, c.Params("id"))
		if err != nil {
			return engineError(c, err)
		}
		return completeTask(c, goals, catalog, group)
	})

	// Administrative reward grants outside of goal completion.
	secured.Post("/players/:id/rewards/grant", func(c *fiber.Ctx) error {
		org := orgFrom(c)
		player, err := players.FindPlayer(org, c.Params("id"))
		if err != nil {
			return engineError(c, err)
		}
		return grantRewards(c, rewards, catalog, player)
	})

	secured.Post("/groups/:id/rewards/grant", func(c *fiber.Ctx) error {
		org := orgFrom(c)
		group, err := players.FindGroup(org, c.Params("id"))
		if err != nil {
			return engineError(c, err)
		}
		return grantRewards(c, rewards, catalog, group)
	})

	// Read side of the reward state, for players and groups alike.
	secured.Get("/players/:id/finished-goals", func(c *fiber.Ctx) error {
		player, err := players.FindPlayer(orgFrom(c), c.Params("id"))
		if err != nil {
			return engineError(c, err)
		}
		return subjectFinishedGoals(c, goals, player)
	})

	secured.Get("/groups/:id/finished-goals", func(c *fiber.Ctx) error {
		group, err := players.FindGroup(orgFrom(c), c.Params("id"))
		if err != nil {
			return engineError(c, err)
		}
		return subjectFinishedGoals(c, goals, group)
	})

	secured.Get("/players/:id/balances", func(c *fiber.Ctx) error {
		player, err := players.FindPlayer(orgFrom(c), c.Params("id"))
		if err != nil {
			return engineError(c, err)
		}
		return subjectBalances(c, player)
	})

	secured.Get("/groups/:id/balances", func(c *fiber.Ctx) error {
		group, err := players.FindGroup(orgFrom(c), c.Params("id"))
		if err != nil {
			return engineError(c, err)
		}
		return subjectBalances(c, group)
	})

	secured.Get("/players/:id/earned-rewards", func(c *fiber.Ctx) error {
		player, err := players.FindPlayer(orgFrom(c), c.Params("id"))
		if err != nil {
			return engineError(c, err)
		}
		return subjectEarnedRewards(c, rewards, player)
	})

	secured.Get("/groups/:id/earned-rewards", func(c *fiber.Ctx) error {
		group, err := players.FindGroup(orgFrom(c), c.Params("id"))
		if err != nil {
			return engineError(c, err)
		}
		return subjectEarnedRewards(c, rewards, group)
	})

	secured.Get("/players/:id/goals/eligible", func(c *fiber.Ctx) error {
		org := orgFrom(c)
		player, err := players.FindPlayer(org, c.Params("id"))
		if err != nil {
			return engineError(c, err)
		}
		eligible, err := goals.EligibleGoals(org, player)
		if err != nil {
			return engineError(c, err)
		}
		return c.JSON(eligible)
	})
}

func completeTask(c *fiber.Ctx, goals *services.GoalService, catalog *services.CatalogService, subject models.Subject) error {
	org := orgFrom(c)
	task, err := catalog.FindTask(org, c.Params("taskId"))
	if err != nil {
		return engineError(c, err)
	}
	finished, err := goals.CompleteTask(org, subject, task, time.Now())
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(fiber.Map{
		"task_id":        task.ID,
		"subject_kind":   subject.SubjectKind(),
		"subject_id":     subject.SubjectID(),
		"finished_goals": finished,
	})
}

func grantRewards(c *fiber.Ctx, rewards *services.RewardService, catalog *services.CatalogService, subject models.Subject) error {
	var req struct {
		RewardIDs []string `json:"reward_ids" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil || len(req.RewardIDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	org := orgFrom(c)
	defs, err := catalog.FindRewards(org, req.RewardIDs)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to resolve rewards"})
	}
	if len(defs) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No such rewards in organisation"})
	}

	finished, err := rewards.Apply(org, subject, defs, time.Now())
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(fiber.Map{
		"granted":        len(defs),
		"finished_goals": finished,
	})
}

func subjectFinishedGoals(c *fiber.Ctx, goals *services.GoalService, subject models.Subject) error {
	finished, err := goals.FinishedGoals(subject)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(finished)
}

func subjectBalances(c *fiber.Ctx, subject models.Subject) error {
	return c.JSON(fiber.Map{
		"coins":  subject.GetCoins(),
		"points": subject.GetPoints(),
	})
}

func subjectEarnedRewards(c *fiber.Ctx, rewards *services.RewardService, subject models.Subject) error {
	kind := models.RewardKind(c.Query("kind"))
	earned, err := rewards.EarnedRewards(subject, kind)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(earned)
}
