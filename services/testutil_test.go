package services

import (
	"fmt"
	"strings"
	"testing"

	"gamification-engine/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a per-test in-memory database so tests never share state.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Organisation{},
		&models.Role{},
		&models.Player{},
		&models.PlayerGroup{},
		&models.Task{},
		&models.GoalRule{},
		&models.Goal{},
		&models.FinishedGoal{},
		&models.FinishedTask{},
		&models.Reward{},
		&models.EarnedReward{},
		&models.MarketPlace{},
		&models.Offer{},
		&models.Bid{},
	))
	return db
}

func seedOrg(t *testing.T, db *gorm.DB, name string) *models.Organisation {
	t.Helper()
	org := &models.Organisation{Name: name}
	require.NoError(t, db.Create(org).Error)
	return org
}

func seedRole(t *testing.T, db *gorm.DB, org *models.Organisation, name string) models.Role {
	t.Helper()
	role := models.Role{OrganisationID: org.ID, Name: name}
	require.NoError(t, db.Create(&role).Error)
	return role
}

func seedPlayer(t *testing.T, db *gorm.DB, org *models.Organisation, nickname string, coins int64, roles ...models.Role) *models.Player {
	t.Helper()
	player := &models.Player{
		OrganisationID: org.ID,
		Nickname:       nickname,
		Coins:          coins,
		Roles:          roles,
	}
	player.LevelIndex, player.LevelLabel = levelForPoints(0)
	require.NoError(t, db.Create(player).Error)
	return player
}

func seedGroup(t *testing.T, db *gorm.DB, org *models.Organisation, name string, players ...models.Player) *models.PlayerGroup {
	t.Helper()
	group := &models.PlayerGroup{
		OrganisationID: org.ID,
		Name:           name,
		Players:        players,
	}
	group.LevelIndex, group.LevelLabel = levelForPoints(0)
	require.NoError(t, db.Create(group).Error)
	return group
}

func seedTask(t *testing.T, db *gorm.DB, org *models.Organisation, name string, tradeable bool, roles ...models.Role) *models.Task {
	t.Helper()
	task := &models.Task{
		OrganisationID: org.ID,
		Name:           name,
		Tradeable:      tradeable,
		Roles:          roles,
	}
	require.NoError(t, db.Create(task).Error)
	return task
}

func seedReward(t *testing.T, db *gorm.DB, org *models.Organisation, kind models.RewardKind, name string, amount int64) models.Reward {
	t.Helper()
	reward := models.Reward{
		OrganisationID: org.ID,
		Name:           name,
		Kind:           kind,
		Amount:         amount,
	}
	require.NoError(t, db.Create(&reward).Error)
	return reward
}

func seedTaskRule(t *testing.T, db *gorm.DB, org *models.Organisation, name string, mode models.TaskRuleMode, tasks ...*models.Task) *models.GoalRule {
	t.Helper()
	rule := &models.GoalRule{
		OrganisationID: org.ID,
		Name:           name,
		Kind:           models.RuleKindTask,
		TaskMode:       mode,
	}
	for _, task := range tasks {
		rule.Tasks = append(rule.Tasks, *task)
	}
	require.NoError(t, db.Create(rule).Error)
	return rule
}

func seedPointsRule(t *testing.T, db *gorm.DB, org *models.Organisation, name string, threshold int64) *models.GoalRule {
	t.Helper()
	rule := &models.GoalRule{
		OrganisationID: org.ID,
		Name:           name,
		Kind:           models.RuleKindPoints,
		PointThreshold: threshold,
	}
	require.NoError(t, db.Create(rule).Error)
	return rule
}

func seedGoal(t *testing.T, db *gorm.DB, goal *models.Goal) *models.Goal {
	t.Helper()
	require.NoError(t, db.Create(goal).Error)
	return goal
}

func reloadPlayer(t *testing.T, db *gorm.DB, id string) *models.Player {
	t.Helper()
	var player models.Player
	require.NoError(t, db.Preload("Roles").First(&player, "id = ?", id).Error)
	return &player
}

func reloadGroup(t *testing.T, db *gorm.DB, id string) *models.PlayerGroup {
	t.Helper()
	var group models.PlayerGroup
	require.NoError(t, db.First(&group, "id = ?", id).Error)
	return &group
}

func reloadOffer(t *testing.T, db *gorm.DB, id string) *models.Offer {
	t.Helper()
	var offer models.Offer
	require.NoError(t, db.First(&offer, "id = ?", id).Error)
	return &offer
}

func finishedGoalCount(t *testing.T, db *gorm.DB, goalID string, subject models.Subject) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.FinishedGoal{}).
		Where("goal_id = ? AND subject_kind = ? AND subject_id = ?",
			goalID, subject.SubjectKind(), subject.SubjectID()).
		Count(&n).Error)
	return n
}
