// services/catalog_service.go
package services

import (
	"errors"
	"log"

	"gamification-engine/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// CatalogService owns the organisation-scoped catalog: roles, tasks, goal
// rules, goals and reward definitions. Handlers are mounted behind the API
// key middleware which resolves the organisation.
type CatalogService struct {
	DB *gorm.DB
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{DB: db}
}

func orgFrom(c *fiber.Ctx) *models.Organisation {
	return c.Locals("organisation").(*models.Organisation)
}

// CreateOrganisation bootstraps a tenant and generates its API key. The only
// route that does not require an API key.
func (s *CatalogService) CreateOrganisation(c *fiber.Ctx) error {
	var req struct {
		Name string `json:"name" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Name is required"})
	}

	org := &models.Organisation{Name: req.Name}
	if err := s.DB.Create(org).Error; err != nil {
		log.Printf("DB Error creating organisation: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create organisation"})
	}
	return c.Status(fiber.StatusCreated).JSON(org)
}

// CreateRole creates a role used for goal eligibility and offer visibility.
func (s *CatalogService) CreateRole(c *fiber.Ctx) error {
	org := orgFrom(c)
	var req struct {
		Name string `json:"name" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil || req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	role := &models.Role{OrganisationID: org.ID, Name: req.Name}
	if err := s.DB.Create(role).Error; err != nil {
		log.Printf("DB Error creating role: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create role"})
	}
	return c.Status(fiber.StatusCreated).JSON(role)
}

func (s *CatalogService) GetRoles(c *fiber.Ctx) error {
	var roles []models.Role
	if err := s.DB.Where("organisation_id = ?", orgFrom(c).ID).Find(&roles).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch roles"})
	}
	return c.JSON(roles)
}

// CreateTask creates an atomic unit of work. Tradeable tasks may be listed on
// the marketplace; the optional roles narrow offer visibility.
func (s *CatalogService) CreateTask(c *fiber.Ctx) error {
	org := orgFrom(c)
	var req struct {
		Name        string   `json:"name" validate:"required"`
		Description string   `json:"description"`
		Tradeable   bool     `json:"tradeable"`
		RoleIDs     []string `json:"role_ids"`
	}
	if err := c.BodyParser(&req); err != nil || req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	roles, err := s.rolesByIDs(org.ID, req.RoleIDs)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	task := &models.Task{
		OrganisationID: org.ID,
		Name:           req.Name,
		Slug:           slug.Make(req.Name),
		Description:    req.Description,
		Tradeable:      req.Tradeable,
		Roles:          roles,
	}
	if err := s.DB.Create(task).Error; err != nil {
		log.Printf("DB Error creating task: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create task"})
	}
	return c.Status(fiber.StatusCreated).JSON(task)
}

func (s *CatalogService) GetTasks(c *fiber.Ctx) error {
	var tasks []models.Task
	if err := s.DB.Where("organisation_id = ?", orgFrom(c).ID).Preload("Roles").Find(&tasks).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch tasks"})
	}
	return c.JSON(tasks)
}

// CreateRule creates a goal rule: kind "task" with a task list and mode
// all/one, or kind "points" with a threshold.
func (s *CatalogService) CreateRule(c *fiber.Ctx) error {
	org := orgFrom(c)
	var req struct {
		Name           string              `json:"name" validate:"required"`
		Kind           models.RuleKind     `json:"kind" validate:"required,oneof=task points"`
		TaskMode       models.TaskRuleMode `json:"task_mode" validate:"omitempty,oneof=all one"`
		PointThreshold int64               `json:"point_threshold"`
		TaskIDs        []string            `json:"task_ids"`
	}
	if err := c.BodyParser(&req); err != nil || req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	rule := &models.GoalRule{OrganisationID: org.ID, Name: req.Name, Kind: req.Kind}
	switch req.Kind {
	case models.RuleKindTask:
		rule.TaskMode = req.TaskMode
		if rule.TaskMode == "" {
			rule.TaskMode = models.TaskRuleAll
		}
		var tasks []models.Task
		if len(req.TaskIDs) > 0 {
			if err := s.DB.Where("organisation_id = ? AND id IN ?", org.ID, req.TaskIDs).Find(&tasks).Error; err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to resolve tasks"})
			}
		}
		rule.Tasks = tasks
	case models.RuleKindPoints:
		rule.PointThreshold = req.PointThreshold
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Rule kind must be task or points"})
	}

	if err := s.DB.Create(rule).Error; err != nil {
		log.Printf("DB Error creating rule: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create rule"})
	}
	return c.Status(fiber.StatusCreated).JSON(rule)
}

func (s *CatalogService) GetRules(c *fiber.Ctx) error {
	var rules []models.GoalRule
	if err := s.DB.Where("organisation_id = ?", orgFrom(c).ID).Preload("Tasks").Find(&rules).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch rules"})
	}
	return c.JSON(rules)
}

// CreateGoal ties a rule to rewards, eligible roles and the repeatable /
// group-goal policy.
func (s *CatalogService) CreateGoal(c *fiber.Ctx) error {
	org := orgFrom(c)
	var req struct {
		Name       string   `json:"name" validate:"required"`
		RuleID     string   `json:"rule_id" validate:"required"`
		Repeatable *bool    `json:"repeatable"`
		GroupGoal  bool     `json:"group_goal"`
		RewardIDs  []string `json:"reward_ids"`
		RoleIDs    []string `json:"role_ids"`
	}
	if err := c.BodyParser(&req); err != nil || req.Name == "" || req.RuleID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	var rule models.GoalRule
	if err := s.DB.Where("id = ? AND organisation_id = ?", req.RuleID, org.ID).First(&rule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Rule not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	rewards, err := s.FindRewards(org, req.RewardIDs)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to resolve rewards"})
	}
	roles, err := s.rolesByIDs(org.ID, req.RoleIDs)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to resolve roles"})
	}

	repeatable := true
	if req.Repeatable != nil {
		repeatable = *req.Repeatable
	}

	goal := &models.Goal{
		OrganisationID: org.ID,
		Name:           req.Name,
		Slug:           slug.Make(req.Name),
		RuleID:         rule.ID,
		Repeatable:     repeatable,
		GroupGoal:      req.GroupGoal,
		Rewards:        rewards,
		Roles:          roles,
	}
	if err := s.DB.Create(goal).Error; err != nil {
		log.Printf("DB Error creating goal: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create goal"})
	}
	return c.Status(fiber.StatusCreated).JSON(goal)
}

func (s *CatalogService) GetGoals(c *fiber.Ctx) error {
	var goals []models.Goal
	err := s.DB.Where("organisation_id = ?", orgFrom(c).ID).
		Preload("Rule.Tasks").
		Preload("Rewards").
		Preload("Roles").
		Find(&goals).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch goals"})
	}
	return c.JSON(goals)
}

// CreateReward creates a catalog reward definition: a coin or point amount,
// or a permanent badge/achievement.
func (s *CatalogService) CreateReward(c *fiber.Ctx) error {
	org := orgFrom(c)
	var req struct {
		Name        string            `json:"name" validate:"required"`
		Kind        models.RewardKind `json:"kind" validate:"required,oneof=coins points badge achievement"`
		Amount      int64             `json:"amount"`
		Description string            `json:"description"`
		IconURL     string            `json:"icon_url"`
	}
	if err := c.BodyParser(&req); err != nil || req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	switch req.Kind {
	case models.RewardKindCoins, models.RewardKindPoints:
		if req.Amount <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Amount is required for coin and point rewards"})
		}
	case models.RewardKindBadge, models.RewardKindAchievement:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Reward kind must be coins, points, badge or achievement"})
	}

	reward := &models.Reward{
		OrganisationID: org.ID,
		Name:           req.Name,
		Kind:           req.Kind,
		Amount:         req.Amount,
		Description:    req.Description,
		IconURL:        req.IconURL,
	}
	if err := s.DB.Create(reward).Error; err != nil {
		log.Printf("DB Error creating reward: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create reward"})
	}
	return c.Status(fiber.StatusCreated).JSON(reward)
}

func (s *CatalogService) GetRewards(c *fiber.Ctx) error {
	var rewards []models.Reward
	if err := s.DB.Where("organisation_id = ?", orgFrom(c).ID).Find(&rewards).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch rewards"})
	}
	return c.JSON(rewards)
}

// FindTask resolves a task scoped to the organisation.
func (s *CatalogService) FindTask(org *models.Organisation, id string) (*models.Task, error) {
	var task models.Task
	if err := s.DB.Where("id = ? AND organisation_id = ?", id, org.ID).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errNotFound("no such task in organisation: %s", id)
		}
		return nil, err
	}
	return &task, nil
}

// FindRewards resolves reward definitions by id, scoped to the organisation.
func (s *CatalogService) FindRewards(org *models.Organisation, ids []string) ([]models.Reward, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rewards []models.Reward
	err := s.DB.Where("organisation_id = ? AND id IN ?", org.ID, ids).Find(&rewards).Error
	return rewards, err
}

func (s *CatalogService) rolesByIDs(orgID string, ids []string) ([]models.Role, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var roles []models.Role
	err := s.DB.Where("organisation_id = ? AND id IN ?", orgID, ids).Find(&roles).Error
	return roles, err
}
