// services/player_service.go
package services

import (
	"errors"
	"log"

	"gamification-engine/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// PlayerService manages players and player groups: creation, role and
// membership changes, and the read side of their reward state.
type PlayerService struct {
	DB *gorm.DB
}

func NewPlayerService(db *gorm.DB) *PlayerService {
	return &PlayerService{DB: db}
}

// CreatePlayer creates a player, optionally with roles and a starting coin
// balance.
func (s *PlayerService) CreatePlayer(c *fiber.Ctx) error {
	org := orgFrom(c)
	var req struct {
		Nickname string   `json:"nickname" validate:"required"`
		Coins    int64    `json:"coins" validate:"min=0"`
		RoleIDs  []string `json:"role_ids"`
	}
	if err := c.BodyParser(&req); err != nil || req.Nickname == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Coins < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Starting coins must not be negative"})
	}

	var roles []models.Role
	if len(req.RoleIDs) > 0 {
		if err := s.DB.Where("organisation_id = ? AND id IN ?", org.ID, req.RoleIDs).Find(&roles).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to resolve roles"})
		}
	}

	player := &models.Player{
		OrganisationID: org.ID,
		Nickname:       req.Nickname,
		Coins:          req.Coins,
		Roles:          roles,
	}
	player.LevelIndex, player.LevelLabel = levelForPoints(0)
	if err := s.DB.Create(player).Error; err != nil {
		log.Printf("DB Error creating player: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create player"})
	}
	return c.Status(fiber.StatusCreated).JSON(player)
}

func (s *PlayerService) GetPlayers(c *fiber.Ctx) error {
	var players []models.Player
	if err := s.DB.Where("organisation_id = ?", orgFrom(c).ID).Preload("Roles").Find(&players).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch players"})
	}
	return c.JSON(players)
}

func (s *PlayerService) GetPlayer(c *fiber.Ctx) error {
	player, err := s.FindPlayer(orgFrom(c), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Player not found"})
	}
	return c.JSON(player)
}

// CreateGroup creates a player group with an initial membership list.
func (s *PlayerService) CreateGroup(c *fiber.Ctx) error {
	org := orgFrom(c)
	var req struct {
		Name      string   `json:"name" validate:"required"`
		PlayerIDs []string `json:"player_ids"`
	}
	if err := c.BodyParser(&req); err != nil || req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	var players []models.Player
	if len(req.PlayerIDs) > 0 {
		if err := s.DB.Where("organisation_id = ? AND id IN ?", org.ID, req.PlayerIDs).Find(&players).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to resolve players"})
		}
	}

	group := &models.PlayerGroup{
		OrganisationID: org.ID,
		Name:           req.Name,
		Players:        players,
	}
	group.LevelIndex, group.LevelLabel = levelForPoints(0)
	if err := s.DB.Create(group).Error; err != nil {
		log.Printf("DB Error creating group: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create group"})
	}
	return c.Status(fiber.StatusCreated).JSON(group)
}

func (s *PlayerService) GetGroups(c *fiber.Ctx) error {
	var groups []models.PlayerGroup
	if err := s.DB.Where("organisation_id = ?", orgFrom(c).ID).Preload("Players").Find(&groups).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch groups"})
	}
	return c.JSON(groups)
}

func (s *PlayerService) GetGroup(c *fiber.Ctx) error {
	group, err := s.FindGroup(orgFrom(c), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Group not found"})
	}
	return c.JSON(group)
}

// UpdateGroupMembers adds and removes players from a group's membership list.
// Membership changes never touch the group's own reward state.
func (s *PlayerService) UpdateGroupMembers(c *fiber.Ctx) error {
	org := orgFrom(c)
	group, err := s.FindGroup(org, c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Group not found"})
	}

	var req struct {
		Add    []string `json:"add"`
		Remove []string `json:"remove"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if len(req.Add) > 0 {
		var players []models.Player
		if err := s.DB.Where("organisation_id = ? AND id IN ?", org.ID, req.Add).Find(&players).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to resolve players"})
		}
		if err := s.DB.Model(group).Association("Players").Append(&players); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to add players"})
		}
	}
	if len(req.Remove) > 0 {
		var players []models.Player
		if err := s.DB.Where("organisation_id = ? AND id IN ?", org.ID, req.Remove).Find(&players).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to resolve players"})
		}
		if err := s.DB.Model(group).Association("Players").Delete(&players); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to remove players"})
		}
	}

	fresh, err := s.FindGroup(org, group.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(fresh)
}

// FindPlayer resolves a player with roles, scoped to the organisation.
func (s *PlayerService) FindPlayer(org *models.Organisation, id string) (*models.Player, error) {
	var player models.Player
	err := s.DB.Preload("Roles").Where("id = ? AND organisation_id = ?", id, org.ID).First(&player).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errNotFound("no such player in organisation: %s", id)
		}
		return nil, err
	}
	return &player, nil
}

// FindGroup resolves a player group with members, scoped to the organisation.
func (s *PlayerService) FindGroup(org *models.Organisation, id string) (*models.PlayerGroup, error) {
	var group models.PlayerGroup
	err := s.DB.Preload("Players").Where("id = ? AND organisation_id = ?", id, org.ID).First(&group).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errNotFound("no such group in organisation: %s", id)
		}
		return nil, err
	}
	return &group, nil
}
